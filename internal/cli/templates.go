package cli

import (
	"os"
	"path/filepath"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/template"
)

// loadTemplate reads the template file at path and selects name. A file
// holding several templates opens the interactive picker when no name is
// given and the session is interactive.
func (c *CLI) loadTemplate(path, name string) (*template.Template, error) {
	f, err := template.Load(path)
	if err != nil {
		return nil, err
	}
	if name == "" && len(f.Templates) > 1 && isTerminal(os.Stdin) && isTerminal(os.Stderr) {
		t, err := pickTemplate(f.Templates)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, errs.New(errs.ErrCodeInvalidInput, "no template selected")
		}
		return t, nil
	}
	t, err := f.Select(name)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("loaded template", "file", path, "name", t.Name, "shapes", len(t.Shapes))
	return t, nil
}

// templateDir is the directory relative image and font references of a
// template resolve against.
func templateDir(path string) string {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return filepath.Dir(path)
	}
	return dir
}
