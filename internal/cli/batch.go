package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/imageio"
	"github.com/matzehuels/framestamp/pkg/pipeline"
)

type batchOpts struct {
	output     string
	name       string
	vars       varFlags
	pattern    string
	limit      int
	firstFrame int
	workers    int
	format     string
	quality    int
	debug      bool
	noCache    bool
	refresh    bool
}

func (c *CLI) batchCommand() *cobra.Command {
	opts := batchOpts{pattern: pipeline.DefaultPattern, firstFrame: 1}

	cmd := &cobra.Command{
		Use:   "batch <template> <frames-dir>",
		Short: "Stamp a template onto a frame sequence",
		Long: `Batch stamps every frame in a directory, in file name order, in parallel.

Each frame sees the variables frame (its number, counting from
--first-frame), file (its base name) and total_frames. Frames that fail are
reported and skipped. Stamped frames are cached by template, frame content
and variables, so re-running an unchanged sequence is fast.`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return templateExtensions, cobra.ShellCompDirectiveFilterFileExt
			}
			return nil, cobra.ShellCompDirectiveFilterDirs
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") && opts.workers < 1 {
				return errs.New(errs.ErrCodeInvalidInput, "--workers must be at least 1")
			}
			return c.runBatch(cmd.Context(), args[0], args[1], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (required)")
	addTemplateFlags(cmd, &opts.name, &opts.vars)
	cmd.Flags().StringVar(&opts.pattern, "pattern", opts.pattern, "glob selecting frames in the directory")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "stamp at most this many frames")
	cmd.Flags().IntVar(&opts.firstFrame, "first-frame", opts.firstFrame, "number of the first frame")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "parallel renders (default: config or CPU count)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: png, jpeg (default: keep each frame's)")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", 0, "JPEG quality 1-100")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "outline every shape's bounding box")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the frame cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render frames even when cached")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (c *CLI) runBatch(ctx context.Context, tplPath, dir string, opts *batchOpts) error {
	tpl, err := c.loadTemplate(tplPath, opts.name)
	if err != nil {
		return err
	}
	vars, err := opts.vars.resolve()
	if err != nil {
		return err
	}
	inputs, err := pipeline.Collect(dir, opts.pattern, opts.limit)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		printWarning("No frames match %s in %s", opts.pattern, dir)
		return nil
	}

	workers := opts.workers
	if workers == 0 {
		workers = c.Config.Workers
	}
	quality := opts.quality
	if quality == 0 {
		quality = c.Config.Quality
	}

	runner := c.newRunner(ctx, c.newScene(templateDir(tplPath), opts.debug), opts.noCache)
	defer runner.Close()

	spinner := newSpinner(ctx, fmt.Sprintf("Stamping 0/%d frames", len(inputs)))
	spinner.Start()
	res, err := runner.Run(ctx, pipeline.Options{
		Template:   tpl,
		Inputs:     inputs,
		Output:     opts.output,
		Format:     imageio.Format(opts.format),
		Quality:    quality,
		Vars:       vars,
		FirstFrame: opts.firstFrame,
		Workers:    workers,
		Debug:      opts.debug,
		Refresh:    opts.refresh,
		Progress: func(done, total int) {
			spinner.SetMessage(fmt.Sprintf("Stamping %d/%d frames", done, total))
		},
	})
	spinner.Stop()
	if err != nil {
		return err
	}

	failed := res.Failed()
	if len(failed) == 0 {
		printSuccess("Stamped %d frames", len(res.Frames))
	} else {
		printWarning("Stamped %d of %d frames", len(res.Frames)-len(failed), len(res.Frames))
		for _, f := range failed {
			printDetail("%s: %s", f.Input, errs.UserMessage(f.Err))
		}
	}
	printFile(opts.output)
	printBatchStats(res.Stats.Rendered, res.Stats.Cached, res.Stats.Failed, res.Stats.Duration)

	if len(failed) > 0 {
		return errs.New(errs.ErrCodeRenderFailed, "%d frames failed", len(failed))
	}
	return nil
}
