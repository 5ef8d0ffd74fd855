package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/inspect"
)

const (
	treeFormatDOT = "dot"
	treeFormatSVG = "svg"
)

type treeOpts struct {
	inspectOpts
	output string
	format string
}

func (c *CLI) treeCommand() *cobra.Command {
	opts := treeOpts{inspectOpts: inspectOpts{width: defaultWidth, height: defaultHeight}}

	cmd := &cobra.Command{
		Use:   "tree <template> [frame]",
		Short: "Export the shape hierarchy as a Graphviz graph",
		Long: `Tree draws how the shapes of a template nest: composite shapes point to
their children and dashed edges point from a shape to the shapes that use it
as their parent. The graph is written as DOT or rendered to SVG.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 2 {
				input = args[1]
			}
			return c.runTree(cmd.Context(), args[0], input, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "dot or svg (default: from the output extension, else dot)")
	addTemplateFlags(cmd, &opts.name, &opts.vars)
	cmd.Flags().IntVar(&opts.width, "width", opts.width, "test card width")
	cmd.Flags().IntVar(&opts.height, "height", opts.height, "test card height")

	return cmd
}

func (c *CLI) runTree(ctx context.Context, tplPath, input string, opts *treeOpts) error {
	format, err := treeFormat(opts.format, opts.output)
	if err != nil {
		return err
	}
	report, err := c.buildReport(tplPath, input, opts.name, &opts.vars, opts.width, opts.height)
	if err != nil {
		return err
	}

	data := []byte(inspect.ToDOT(report))
	if format == treeFormatSVG {
		if data, err = inspect.RenderSVG(ctx, string(data)); err != nil {
			return err
		}
	}

	if opts.output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	printSuccess("Exported %d shapes", len(report.Entries))
	printFile(opts.output)
	return nil
}

func treeFormat(flag, output string) (string, error) {
	f := strings.ToLower(flag)
	if f == "" {
		f = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
		if f != treeFormatSVG {
			f = treeFormatDOT
		}
	}
	switch f {
	case treeFormatDOT, "gv", treeFormatSVG:
		if f == "gv" {
			f = treeFormatDOT
		}
		return f, nil
	}
	return "", errs.New(errs.ErrCodeInvalidFormat, "invalid tree format %q (must be 'dot' or 'svg')", flag)
}
