package template

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// Template is one named stamp layout.
type Template struct {
	Name        string           `json:"name,omitempty"`
	Description string           `json:"description,omitempty"`
	Defaults    map[string]any   `json:"defaults,omitempty"`
	Variables   map[string]any   `json:"variables,omitempty"`
	Shapes      []map[string]any `json:"shapes"`
}

// File is a decoded template file.
type File struct {
	Path      string
	Templates []*Template
}

// Names returns the template names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Templates))
	for i, t := range f.Templates {
		names[i] = t.Name
	}
	return names
}

// Select returns the template called name. An empty name selects the only
// template of a single-template file.
func (f *File) Select(name string) (*Template, error) {
	if len(f.Templates) == 0 {
		return nil, errs.New(errs.ErrCodeInvalidTemplate, "%s holds no templates", f.label())
	}
	if name == "" {
		if len(f.Templates) == 1 {
			return f.Templates[0], nil
		}
		return nil, errs.New(errs.ErrCodeInvalidTemplate, "%s holds %d templates, choose one of %v", f.label(), len(f.Templates), f.Names())
	}
	if err := errs.ValidateTemplateName(name); err != nil {
		return nil, err
	}
	i := slices.IndexFunc(f.Templates, func(t *Template) bool { return t.Name == name })
	if i < 0 {
		return nil, errs.New(errs.ErrCodeTemplateNotFound, "template %q not found in %s (have %v)", name, f.label(), f.Names())
	}
	return f.Templates[i], nil
}

func (f *File) label() string {
	if f.Path == "" {
		return "template file"
	}
	return f.Path
}

// Hash returns a stable content hash of the template. Map keys are
// serialized in sorted order, so equal templates hash equally regardless
// of key order or source format. Templates JSON cannot encode, such as
// TOML nan and inf values, hash their Go syntax representation instead,
// which also prints map keys in sorted order.
func Hash(t *Template) string {
	data, err := json.Marshal(t)
	if err != nil {
		data = fmt.Appendf([]byte("gosyntax:"), "%#v", *t)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Clone returns a deep copy of t.
func (t *Template) Clone() *Template {
	out := &Template{
		Name:        t.Name,
		Description: t.Description,
		Defaults:    cloneMap(t.Defaults),
		Variables:   cloneMap(t.Variables),
		Shapes:      make([]map[string]any, len(t.Shapes)),
	}
	for i, s := range t.Shapes {
		out.Shapes[i] = cloneMap(s)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
