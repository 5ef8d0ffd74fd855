package shape

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// Constructor builds a shape from its descriptor. parent is the structural
// parent, or nil for a top-level shape.
type Constructor func(ctx *Context, data map[string]any, parent Shape) (Shape, error)

// Registry maps descriptor type tags to constructors. It is safe for
// concurrent use and is typically shared by every render of a process.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// DefaultRegistry returns a new registry holding every built-in shape kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for tag, c := range map[string]Constructor{
		"rect":    NewRect,
		"ellipse": NewEllipse,
		"label":   NewLabel,
		"line":    NewLine,
		"polygon": NewPolygon,
		"image":   NewImage,
		"grid":    NewGrid,
		"row":     NewRow,
		"column":  NewColumn,
		"tile":    NewTile,
	} {
		r.MustRegister(tag, c)
	}
	return r
}

// Register adds a constructor under tag. Registering a tag twice fails.
func (r *Registry) Register(tag string, c Constructor) error {
	if tag == "" {
		return errs.New(errs.ErrCodeInvalidInput, "shape type tag is empty")
	}
	if c == nil {
		return errs.New(errs.ErrCodeInvalidInput, "nil constructor for shape type %q", tag)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ctors[tag]; ok {
		return errs.New(errs.ErrCodeInvalidInput, "shape type %q already registered", tag)
	}
	r.ctors[tag] = c
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(tag string, c Constructor) {
	if err := r.Register(tag, c); err != nil {
		panic(fmt.Sprintf("shape: %v", err))
	}
}

// Lookup returns the constructor registered under tag.
func (r *Registry) Lookup(tag string) (Constructor, error) {
	r.mu.RLock()
	c, ok := r.ctors[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.ErrCodeShapeTypeNotFound, "unknown shape type %q (available: %v)", tag, r.Types())
	}
	return c, nil
}

// Types returns the registered tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.ctors))
	for t := range r.ctors {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[tag]
	return ok
}

// Build constructs a shape from a descriptor using the context's registry.
// If construction fails, ids registered by the shape's descendants are
// removed from scope again.
func (c *Context) Build(data map[string]any, parent Shape) (Shape, error) {
	raw, ok := data["type"]
	if !ok {
		return nil, errs.New(errs.ErrCodePreset, "shape descriptor has no type (keys: %v)", sortedKeys(data))
	}
	tag, ok := raw.(string)
	if !ok {
		return nil, errs.New(errs.ErrCodePreset, "shape type must be a string, got %T", raw)
	}
	ctor, err := c.Registry.Lookup(tag)
	if err != nil {
		return nil, err
	}
	mark := len(c.order)
	s, err := ctor(c, data, parent)
	if err != nil {
		c.dropScope(mark)
		return nil, err
	}
	return s, nil
}

// BuildAll constructs top-level shapes in order and registers them in
// scope as they are built, so later shapes may reference earlier ones as
// their parent.
func (c *Context) BuildAll(descs []map[string]any) ([]Shape, error) {
	shapes := make([]Shape, 0, len(descs))
	for i, d := range descs {
		s, err := c.Build(d, nil)
		if err != nil {
			return nil, wrap(err, "shape %d", i)
		}
		if err := c.AddShape(s); err != nil {
			return nil, err
		}
		shapes = append(shapes, s)
	}
	return shapes, nil
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
