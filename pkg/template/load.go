package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tailscale/hujson"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// Format identifies a template file encoding.
type Format string

const (
	// FormatJSON is JSON with optional // and /* */ comments and trailing
	// commas.
	FormatJSON Format = "json"
	// FormatTOML is TOML; shapes are written as [[shapes]] tables.
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from a file extension. Anything that is
// not .toml is read as JSON.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatJSON
}

// Load reads and decodes the template file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "template %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidTemplate, err, "%s", path)
	}
	f.Path = path
	return f, nil
}

// Read decodes a template file from r. Read does not close r.
func Read(r io.Reader, format Format) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes a template file held in memory.
func Parse(data []byte, format Format) (*File, error) {
	var root map[string]any
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &root); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidTemplate, err, "decode toml")
		}
	case FormatJSON, "":
		std, err := Standardize(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(std, &root); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidTemplate, err, "decode json")
		}
	default:
		return nil, errs.New(errs.ErrCodeInvalidFormat, "unknown template format %q", format)
	}
	if root == nil {
		return nil, errs.New(errs.ErrCodeInvalidTemplate, "template file must be an object")
	}
	root = normalize(root).(map[string]any)

	f := &File{}
	raw, multi := root["templates"]
	if !multi {
		t, err := fromMap(root)
		if err != nil {
			return nil, err
		}
		f.Templates = []*Template{t}
		return f, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, errs.New(errs.ErrCodeInvalidTemplate, "templates must be a list")
	}
	seen := make(map[string]bool)
	for i, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, errs.New(errs.ErrCodeInvalidTemplate, "templates[%d] must be an object", i)
		}
		t, err := fromMap(m)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidTemplate, err, "templates[%d]", i)
		}
		if t.Name != "" && seen[t.Name] {
			return nil, errs.New(errs.ErrCodeInvalidTemplate, "duplicate template name %q", t.Name)
		}
		seen[t.Name] = true
		f.Templates = append(f.Templates, t)
	}
	return f, nil
}

func fromMap(m map[string]any) (*Template, error) {
	t := &Template{}
	var ok bool
	if v, has := m["name"]; has {
		if t.Name, ok = v.(string); !ok {
			return nil, errs.New(errs.ErrCodeInvalidTemplate, "name must be a string, got %T", v)
		}
	}
	if v, has := m["description"]; has {
		if t.Description, ok = v.(string); !ok {
			return nil, errs.New(errs.ErrCodeInvalidTemplate, "description must be a string, got %T", v)
		}
	}
	for key, dst := range map[string]*map[string]any{"defaults": &t.Defaults, "variables": &t.Variables} {
		v, has := m[key]
		if !has || v == nil {
			continue
		}
		if *dst, ok = v.(map[string]any); !ok {
			return nil, errs.New(errs.ErrCodeInvalidTemplate, "%s must be an object, got %T", key, v)
		}
	}

	raw, has := m["shapes"]
	if !has || raw == nil {
		return t, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errs.New(errs.ErrCodeInvalidTemplate, "shapes must be a list, got %T", raw)
	}
	for i, e := range list {
		d, ok := e.(map[string]any)
		if !ok {
			return nil, errs.New(errs.ErrCodeInvalidTemplate, "shapes[%d] must be an object, got %T", i, e)
		}
		t.Shapes = append(t.Shapes, d)
	}
	return t, nil
}

// normalize converts decoded TOML values to the shapes JSON decoding
// produces: []any lists, float64 numbers and string timestamps.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []map[string]any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return v
}

// Standardize converts JSONC (JSON with // and /* */ comments and
// trailing commas) to standard JSON. Comments and trailing commas become
// spaces, so decoder errors still report the original offsets. data is
// not modified.
func Standardize(data []byte) ([]byte, error) {
	out, err := hujson.Standardize(bytes.Clone(data))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidTemplate, err, "decode jsonc")
	}
	return out, nil
}
