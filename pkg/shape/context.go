package shape

import (
	"image"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// EnvNoCache disables per-shape memoization when set to a true value.
const EnvNoCache = "FRAMESTAMP_NO_CACHE"

// Options configure a render [Context].
type Options struct {
	// Raster draws leaf shapes. Required for rendering, optional for
	// geometry-only use such as validation and inspection.
	Raster Rasterizer
	// Images loads image shape sources.
	Images ImageLoader
	// Registry maps type tags to constructors. Defaults to DefaultRegistry().
	Registry *Registry
	// Variables are the runtime variables of this render.
	Variables map[string]any
	// TemplateVariables are the variables declared by the template.
	TemplateVariables map[string]any
	// Defaults are the template defaults, consulted for missing parameters
	// and percent bases.
	Defaults map[string]any
	// Source is the frame being stamped. May be nil.
	Source image.Image
	// Width and Height give the canvas size. When zero they are taken from
	// Source.
	Width, Height int
	// Debug overlays every shape's bounding box.
	Debug bool
	// NoCache disables memoization. It is also enabled by EnvNoCache.
	NoCache bool
	// Logger receives resolution warnings. Defaults to a discarding logger.
	Logger *log.Logger
}

// Context is the state shared by all shapes of one render: the id scope,
// variables, defaults and external capabilities. A Context is used by a
// single goroutine; concurrent renders each build their own.
type Context struct {
	Raster   Rasterizer
	Images   ImageLoader
	Registry *Registry
	Source   image.Image
	Logger   *log.Logger

	variables         map[string]any
	templateVariables map[string]any
	defaults          map[string]any
	width, height     int
	debug             bool
	noCache           bool

	scope    map[string]Shape
	order    []Shape
	root     *Node
	warnings []string
}

// NewContext creates a render context.
func NewContext(opts Options) *Context {
	w, h := opts.Width, opts.Height
	if opts.Source != nil {
		b := opts.Source.Bounds()
		if w == 0 {
			w = b.Dx()
		}
		if h == 0 {
			h = b.Dy()
		}
	}
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	noCache := opts.NoCache
	if v, err := strconv.ParseBool(os.Getenv(EnvNoCache)); err == nil && v {
		noCache = true
	}

	c := &Context{
		Raster:            opts.Raster,
		Images:            opts.Images,
		Registry:          opts.Registry,
		Source:            opts.Source,
		Logger:            opts.Logger,
		variables:         orEmpty(opts.Variables),
		templateVariables: orEmpty(opts.TemplateVariables),
		defaults:          orEmpty(opts.Defaults),
		width:             w,
		height:            h,
		debug:             opts.Debug,
		noCache:           noCache,
		scope:             make(map[string]Shape),
	}
	c.root = newRoot(c)
	return c
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Size returns the canvas size.
func (c *Context) Size() (int, int) { return c.width, c.height }

// Debug reports whether debug overlays are enabled.
func (c *Context) Debug() bool { return c.debug }

// Root returns the canvas pseudo-shape every top-level shape is placed in.
func (c *Context) Root() Shape { return c.root.self }

// Unit returns one percent of the source height, the template's relative
// length unit.
func (c *Context) Unit() float64 { return float64(c.height) / 100 }

// Defaults returns the template defaults.
func (c *Context) Defaults() map[string]any { return c.defaults }

// AddShape registers s in the id scope. Shapes without an id are accepted
// and ignored; a duplicate id is a PresetError.
func (c *Context) AddShape(s Shape) error {
	id := s.Base().ID()
	if id == "" {
		return nil
	}
	if _, ok := c.scope[id]; ok {
		return errs.New(errs.ErrCodePreset, "duplicate shape id %q", id)
	}
	c.scope[id] = s
	c.order = append(c.order, s)
	return nil
}

// dropScope unregisters every shape added after the first mark shapes.
func (c *Context) dropScope(mark int) {
	for _, s := range c.order[mark:] {
		delete(c.scope, s.Base().ID())
	}
	c.order = c.order[:mark]
}

// Lookup returns the shape registered under id.
func (c *Context) Lookup(id string) (Shape, bool) {
	s, ok := c.scope[id]
	return s, ok
}

// IDs returns the registered ids in registration order.
func (c *Context) IDs() []string {
	ids := make([]string, 0, len(c.order))
	for _, s := range c.order {
		ids = append(ids, s.Base().ID())
	}
	return ids
}

// Warn records a non-fatal problem and logs it.
func (c *Context) Warn(msg string, keyvals ...any) {
	c.warnings = append(c.warnings, msg)
	c.Logger.Warn(msg, keyvals...)
}

// Warnings returns the warnings recorded so far.
func (c *Context) Warnings() []string { return slices.Clone(c.warnings) }

// Variable looks name up in the runtime variables, the template variables,
// the template defaults and finally the render variables, in that order.
func (c *Context) Variable(name string) (any, bool) {
	for _, m := range []map[string]any{c.variables, c.templateVariables, c.defaults} {
		if v, ok := m[name]; ok {
			return v, true
		}
	}
	switch name {
	case "source_width":
		return float64(c.width), true
	case "source_height":
		return float64(c.height), true
	case "unit":
		return c.Unit(), true
	}
	return nil, false
}

// Variables returns a merged copy of every variable visible to shapes.
func (c *Context) Variables() map[string]any {
	out := map[string]any{
		"source_width":  float64(c.width),
		"source_height": float64(c.height),
		"unit":          c.Unit(),
	}
	maps.Copy(out, c.defaults)
	maps.Copy(out, c.templateVariables)
	maps.Copy(out, c.variables)
	return out
}
