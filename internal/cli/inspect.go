package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/framestamp/pkg/inspect"
)

type inspectOpts struct {
	name    string
	vars    varFlags
	width   int
	height  int
	jsonOut bool
}

func (c *CLI) inspectCommand() *cobra.Command {
	opts := inspectOpts{width: defaultWidth, height: defaultHeight}

	cmd := &cobra.Command{
		Use:   "inspect <template> [frame]",
		Short: "Show the resolved geometry of every shape",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 2 {
				input = args[1]
			}
			return c.runInspect(cmd.Context(), args[0], input, &opts)
		},
	}

	addTemplateFlags(cmd, &opts.name, &opts.vars)
	cmd.Flags().IntVar(&opts.width, "width", opts.width, "test card width")
	cmd.Flags().IntVar(&opts.height, "height", opts.height, "test card height")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the report as JSON")

	return cmd
}

func (c *CLI) runInspect(_ context.Context, tplPath, input string, opts *inspectOpts) error {
	report, err := c.buildReport(tplPath, input, opts.name, &opts.vars, opts.width, opts.height)
	if err != nil {
		return err
	}
	if opts.jsonOut {
		return report.WriteJSON(os.Stdout)
	}

	fmt.Println(StyleTitle.Render(report.Template) + StyleDim.Render(fmt.Sprintf("  %dx%d", report.Width, report.Height)))
	fmt.Println(renderReport(report))
	for _, w := range report.Warnings {
		printWarning("%s", w)
	}
	return nil
}

// buildReport loads a template and resolves it over the input frame or a
// test card.
func (c *CLI) buildReport(tplPath, input, name string, vf *varFlags, width, height int) (*inspect.Report, error) {
	tpl, err := c.loadTemplate(tplPath, name)
	if err != nil {
		return nil, err
	}
	vars, err := vf.resolve()
	if err != nil {
		return nil, err
	}
	src, err := loadSource(input, width, height)
	if err != nil {
		return nil, err
	}
	return inspect.Build(c.newScene(templateDir(tplPath), false), src, tpl, vars)
}
