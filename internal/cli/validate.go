package cli

import (
	"context"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/imageio"
	"github.com/matzehuels/framestamp/pkg/inspect"
	"github.com/matzehuels/framestamp/pkg/scene"
	"github.com/matzehuels/framestamp/pkg/template"
)

type validateOpts struct {
	name    string
	vars    varFlags
	resolve bool
	width   int
	height  int
}

func (c *CLI) validateCommand() *cobra.Command {
	opts := validateOpts{width: defaultWidth, height: defaultHeight}

	cmd := &cobra.Command{
		Use:   "validate <template>",
		Short: "Check a template file for structural errors",
		Long: `Validate checks every template in a file (or the one chosen with --name)
for unknown shape types, bad or duplicate ids and dangling parent references.

With --resolve the templates are also built over a test card and every
shape's geometry is resolved, which catches missing variables and bad
expressions. Pass the variables a real render would see with --var.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd.Context(), args[0], &opts)
		},
	}

	addTemplateFlags(cmd, &opts.name, &opts.vars)
	cmd.Flags().BoolVar(&opts.resolve, "resolve", false, "also resolve geometry over a test card")
	cmd.Flags().IntVar(&opts.width, "width", opts.width, "test card width")
	cmd.Flags().IntVar(&opts.height, "height", opts.height, "test card height")

	return cmd
}

func (c *CLI) runValidate(ctx context.Context, path string, opts *validateOpts) error {
	f, err := template.Load(path)
	if err != nil {
		return err
	}
	templates := f.Templates
	if opts.name != "" {
		t, err := f.Select(opts.name)
		if err != nil {
			return err
		}
		templates = []*template.Template{t}
	}
	vars, err := opts.vars.resolve()
	if err != nil {
		return err
	}

	sc := c.newScene(templateDir(path), false)
	problems := 0
	for _, t := range templates {
		label := t.Name
		if label == "" {
			label = path
		}
		issues := template.Validate(t, sc.Registry())
		for _, is := range issues {
			printError("%s %s: %s", label, is.Path, errs.UserMessage(is.Err))
		}
		n := len(issues)
		if opts.resolve && n == 0 {
			if n, err = resolveGeometry(sc, label, t, vars, opts); err != nil {
				printError("%s: %s", label, errs.UserMessage(err))
				n = 1
			}
		}
		if n == 0 {
			printSuccess("%s: %d shapes", label, len(t.Shapes))
		}
		problems += n
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if problems > 0 {
		return errs.New(errs.ErrCodeInvalidTemplate, "%s: %d problems", path, problems)
	}
	return nil
}

// resolveGeometry builds t over a test card and reports shapes whose
// geometry does not resolve. It returns the number of such shapes.
func resolveGeometry(sc *scene.Scene, label string, t *template.Template, vars map[string]any, opts *validateOpts) (int, error) {
	report, err := inspect.Build(sc, imageio.Checker(opts.width, opts.height, checkerCell), t, vars)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range report.Entries {
		if e.Error != "" {
			printError("%s %s: %s", label, e.Path, e.Error)
			n++
		}
	}
	for _, w := range report.Warnings {
		printWarning("%s: %s", label, w)
	}
	return n, nil
}
