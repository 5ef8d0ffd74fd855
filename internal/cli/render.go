package cli

import (
	"context"
	"image"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/imageio"
	"github.com/matzehuels/framestamp/pkg/pipeline"
)

const (
	defaultWidth  = 1920 // test card width when no input frame is given
	defaultHeight = 1080
	checkerCell   = 64
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output  string
	name    string
	vars    varFlags
	format  string
	quality int
	frame   int
	width   int
	height  int
	debug   bool
}

func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{width: defaultWidth, height: defaultHeight}

	cmd := &cobra.Command{
		Use:   "render <template> [frame]",
		Short: "Stamp a template onto one frame",
		Long: `Render draws a template over a single frame and writes the result.

Without a frame a checkerboard test card of --width x --height is used,
which is handy while designing a template.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 2 {
				input = args[1]
			}
			return c.runRender(cmd.Context(), args[0], input, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <frame>_stamped.<ext>)")
	addTemplateFlags(cmd, &opts.name, &opts.vars)
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: png, jpeg (default: from the output extension)")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", 0, "JPEG quality 1-100")
	cmd.Flags().IntVar(&opts.frame, "frame", 0, "value of the $frame variable")
	cmd.Flags().IntVar(&opts.width, "width", opts.width, "test card width")
	cmd.Flags().IntVar(&opts.height, "height", opts.height, "test card height")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "outline every shape's bounding box")

	return cmd
}

// addTemplateFlags registers the template selection and variable flags.
func addTemplateFlags(cmd *cobra.Command, name *string, vars *varFlags) {
	cmd.Flags().StringVarP(name, "name", "n", "", "template to use from a multi-template file")
	cmd.Flags().StringArrayVar(&vars.pairs, "var", nil, "runtime variable key=value (repeatable)")
	cmd.Flags().StringVar(&vars.file, "vars-file", "", "JSON or TOML file of runtime variables")
	_ = cmd.RegisterFlagCompletionFunc("name", completeTemplateName)
	if cmd.ValidArgsFunction == nil {
		cmd.ValidArgsFunction = completeTemplateFile
	}
}

func (c *CLI) runRender(ctx context.Context, tplPath, input string, opts *renderOpts) error {
	prog := newProgress(c.Logger)

	tpl, err := c.loadTemplate(tplPath, opts.name)
	if err != nil {
		return err
	}
	vars, err := opts.vars.resolve()
	if err != nil {
		return err
	}
	if _, ok := vars[pipeline.VarFrame]; !ok {
		vars[pipeline.VarFrame] = float64(opts.frame)
	}

	src, err := loadSource(input, opts.width, opts.height)
	if err != nil {
		return err
	}
	if input != "" {
		if _, ok := vars[pipeline.VarFile]; !ok {
			vars[pipeline.VarFile] = filepath.Base(input)
		}
	}

	output := opts.output
	if output == "" {
		output = defaultOutput(input, tpl.Name, opts.format)
	}
	if input != "" && samePath(input, output) {
		return errs.New(errs.ErrCodeInvalidPath, "refusing to overwrite the input frame %s", input)
	}
	if opts.format != "" {
		f, err := imageio.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		output = strings.TrimSuffix(output, filepath.Ext(output)) + "." + string(f)
	}

	sc := c.newScene(templateDir(tplPath), opts.debug)
	c.Logger.Infof("Rendering %s", tplPath)
	res, err := sc.RenderContext(ctx, input, src, tpl, vars)
	if err != nil {
		return err
	}

	quality := opts.quality
	if quality == 0 {
		quality = c.Config.Quality
	}
	if err := imageio.Save(output, res.Image, quality); err != nil {
		return err
	}
	prog.done("Rendered " + filepath.Base(output))

	for _, w := range res.Warnings {
		printWarning("%s", w)
	}
	printSuccess("Stamped %s", StyleValue.Render(tpl.Name))
	printFile(output)
	printFrameStats(res.Shapes, res.Duration, false)
	return nil
}

// loadSource opens the input frame, or makes a test card without one.
func loadSource(input string, width, height int) (image.Image, error) {
	if input != "" {
		return imageio.Open(input)
	}
	if width <= 0 || height <= 0 {
		return nil, errs.New(errs.ErrCodeInvalidInput, "test card size %dx%d must be positive", width, height)
	}
	return imageio.Checker(width, height, checkerCell), nil
}

// defaultOutput derives an output path next to the input, or from the
// template name for a test card.
func defaultOutput(input, tplName, format string) string {
	if input == "" {
		name := tplName
		if name == "" {
			name = "stamp"
		}
		ext := "png"
		if format != "" {
			ext = format
		}
		return name + "." + ext
	}
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_stamped" + ext
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
