package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/template"
)

// parseVars turns repeated --var key=value flags into runtime variables.
// Values that read as numbers, booleans, JSON lists or objects keep that
// type; everything else is a string. A value may be quoted to force a
// string.
func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errs.New(errs.ErrCodeInvalidInput, "variable %q must be key=value", p)
		}
		vars[k] = parseValue(v)
	}
	return vars, nil
}

func parseValue(s string) any {
	if n, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil && strings.ToLower(s) == s {
		return b
	}
	if len(s) >= 2 && (s[0] == '[' || s[0] == '{' || s[0] == '"') {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}

// loadVarsFile reads variables from a JSON or TOML object.
func loadVarsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "variables file %s", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	vars := map[string]any{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &vars)
	} else {
		var std []byte
		if std, err = template.Standardize(data); err == nil {
			err = json.Unmarshal(std, &vars)
		}
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "variables file %s", path)
	}
	for k, v := range vars {
		if i, ok := v.(int64); ok {
			vars[k] = float64(i)
		}
	}
	return vars, nil
}

// varFlags collects the variable flags shared by the rendering commands.
type varFlags struct {
	pairs []string
	file  string
}

// resolve merges the variables file with --var pairs, pairs winning.
func (f *varFlags) resolve() (map[string]any, error) {
	vars := map[string]any{}
	if f.file != "" {
		fromFile, err := loadVarsFile(f.file)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			vars[k] = v
		}
	}
	pairs, err := parseVars(f.pairs)
	if err != nil {
		return nil, err
	}
	for k, v := range pairs {
		vars[k] = v
	}
	return vars, nil
}
