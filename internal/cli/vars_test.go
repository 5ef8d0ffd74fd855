package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"12", 12.0},
		{"-1.5", -1.5},
		{"1e3", 1000.0},
		{"true", true},
		{"false", false},
		{"True", "True"},
		{"sh010", "sh010"},
		{"", ""},
		{"inf", "inf"},
		{"NaN", "NaN"},
		{`"42"`, "42"},
		{"[1, 2]", []any{1.0, 2.0}},
		{`{"a": "b"}`, map[string]any{"a": "b"}},
		{"[not json", "[not json"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseValue(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"shot=sh010", "frame=1001", "note=a=b", " artist = kim"})
	if err != nil {
		t.Fatalf("parseVars() error = %v", err)
	}
	want := map[string]any{"shot": "sh010", "frame": 1001.0, "note": "a=b", "artist": " kim"}
	if !reflect.DeepEqual(vars, want) {
		t.Errorf("parseVars() = %v, want %v", vars, want)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseVars([]string{bad}); !errs.Is(err, errs.ErrCodeInvalidInput) {
			t.Errorf("parseVars(%q) error = %v, want %s", bad, err, errs.ErrCodeInvalidInput)
		}
	}
}

func TestLoadVarsFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		file string
		data string
	}{
		{"json", "vars.json", `{"shot": "sh010", "frame": 7} // trailing comment`},
		{"toml", "vars.toml", "shot = \"sh010\"\nframe = 7\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}
			vars, err := loadVarsFile(path)
			if err != nil {
				t.Fatalf("loadVarsFile() error = %v", err)
			}
			if vars["shot"] != "sh010" || vars["frame"] != 7.0 {
				t.Errorf("loadVarsFile() = %#v", vars)
			}
		})
	}

	if _, err := loadVarsFile(filepath.Join(dir, "missing.json")); !errs.Is(err, errs.ErrCodeFileNotFound) {
		t.Errorf("loadVarsFile(missing) error = %v, want %s", err, errs.ErrCodeFileNotFound)
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("[1, 2]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadVarsFile(bad); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("loadVarsFile(list) error = %v, want %s", err, errs.ErrCodeInvalidInput)
	}
}

func TestVarFlagsPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.json")
	if err := os.WriteFile(path, []byte(`{"shot": "sh010", "take": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	f := varFlags{file: path, pairs: []string{"take=3"}}
	vars, err := f.resolve()
	if err != nil {
		t.Fatal(err)
	}
	if vars["shot"] != "sh010" || vars["take"] != 3.0 {
		t.Errorf("resolve() = %v, want file values with --var overriding take", vars)
	}
}
