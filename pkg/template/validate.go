package template

import (
	"fmt"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/shape"
)

// Issue is one structural problem found by [Validate].
type Issue struct {
	// Path locates the descriptor, e.g. "shapes[2].shapes[0]".
	Path string
	Err  error
}

func (i Issue) Error() string { return fmt.Sprintf("%s: %v", i.Path, i.Err) }

func (i Issue) Unwrap() error { return i.Err }

// Validate checks the template's shape tree against reg without resolving
// any parameter. It returns every issue found, in document order.
func Validate(t *Template, reg *shape.Registry) []Issue {
	if reg == nil {
		reg = shape.DefaultRegistry()
	}
	v := &validator{reg: reg, ids: make(map[string]string)}
	for i, d := range t.Shapes {
		v.shape(fmt.Sprintf("shapes[%d]", i), d, false)
	}
	return v.issues
}

type validator struct {
	reg    *shape.Registry
	ids    map[string]string // id -> path of the declaring shape
	issues []Issue
}

func (v *validator) add(path string, err error) {
	v.issues = append(v.issues, Issue{Path: path, Err: err})
}

func (v *validator) shape(path string, d map[string]any, repeated bool) {
	kind, ok := d["type"].(string)
	switch {
	case !ok:
		v.add(path, errs.New(errs.ErrCodePreset, "shape type not defined"))
	case !v.reg.Has(kind):
		v.add(path, errs.New(errs.ErrCodeShapeTypeNotFound, "unknown shape type %q", kind))
	}

	if p, has := d["parent"]; has {
		ref, ok := p.(string)
		switch {
		case !ok:
			v.add(path, errs.New(errs.ErrCodePreset, "parent must be a shape id, got %T", p))
		case ref == "" || ref == "parent" || ref == "self":
		case ref == d["id"]:
			v.add(path, errs.New(errs.ErrCodeRecursion, "shape %q is its own parent", ref))
		default:
			if _, declared := v.ids[ref]; !declared {
				v.add(path, errs.New(errs.ErrCodeUnresolvedReference, "parent %q is not declared before this shape", ref))
			}
		}
	}

	if raw, has := d["id"]; has {
		id, ok := raw.(string)
		switch {
		case !ok:
			v.add(path, errs.New(errs.ErrCodePreset, "id must be a string, got %T", raw))
		case repeated:
			v.add(path, errs.New(errs.ErrCodePreset, "repeated tile child cannot have an id (got %q)", id))
		default:
			if err := errs.ValidateShapeID(id); err != nil {
				v.add(path, err)
			} else if prev, dup := v.ids[id]; dup {
				v.add(path, errs.New(errs.ErrCodePreset, "duplicate shape id %q (first declared at %s)", id, prev))
			} else {
				v.ids[id] = path
			}
		}
	}

	key := "shapes"
	children, has := d[key]
	if !has {
		key = "children"
		children, has = d[key]
	}
	if !has || children == nil {
		return
	}
	list, ok := children.([]any)
	if !ok {
		v.add(path, errs.New(errs.ErrCodePreset, "%s must be a list, got %T", key, children))
		return
	}
	for i, c := range list {
		cpath := fmt.Sprintf("%s.%s[%d]", path, key, i)
		cd, ok := c.(map[string]any)
		if !ok {
			v.add(cpath, errs.New(errs.ErrCodePreset, "child must be a shape descriptor, got %T", c))
			continue
		}
		if skip, _ := cd["skip"].(bool); skip {
			continue
		}
		v.shape(cpath, cd, repeated || kind == "tile")
	}
}
