// Package pipeline stamps a template over a sequence of frames.
//
// The pipeline collects the frames of a directory, renders each one in a
// bounded worker pool and writes the results to an output directory under
// the same file names. Every frame receives three variables on top of the
// runtime ones:
//
//   - frame: the frame number (FirstFrame plus the position in the sequence)
//   - file: the input path
//   - total_frames: the number of frames in the run
//
// A frame that fails is logged and skipped; the run continues.
//
// # Usage
//
//	runner := pipeline.NewRunner(sc, cache, nil, logger)
//	inputs, err := pipeline.Collect("plates/sh010", "*.png", 0)
//	res, err := runner.Run(ctx, pipeline.Options{
//	    Template: tpl,
//	    Inputs:   inputs,
//	    Output:   "stamped/sh010",
//	    Vars:     map[string]any{"shot": "sh010"},
//	})
package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/imageio"
	"github.com/matzehuels/framestamp/pkg/template"
)

// Frame variable names.
const (
	VarFrame       = "frame"
	VarFile        = "file"
	VarTotalFrames = "total_frames"
)

const (
	// DefaultPattern matches every file in the source directory.
	DefaultPattern = "*.*"

	// DefaultCacheTTL is how long rendered frames stay cached.
	DefaultCacheTTL = 7 * 24 * time.Hour
)

// DefaultWorkers is the worker count used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// VarsFunc returns extra variables for the frame at index i.
type VarsFunc func(i int, file string, total int) map[string]any

// Options configure one run.
type Options struct {
	Template *template.Template
	// Inputs are the frame paths, in sequence order.
	Inputs []string
	// Output is the directory receiving the stamped frames.
	Output string
	// Format overrides the output encoding. Empty keeps each input's
	// extension.
	Format imageio.Format
	// Quality is the JPEG quality.
	Quality int
	// Vars are the runtime variables shared by every frame.
	Vars map[string]any
	// FrameVars adds per-frame variables after the built-in ones.
	FrameVars VarsFunc
	// FirstFrame is the number of the first frame.
	FirstFrame int
	Workers    int
	Debug      bool
	// Refresh re-renders frames even when cached.
	Refresh bool
	// Progress is called after each frame with the number done so far.
	// Calls may come from several goroutines.
	Progress func(done, total int)

	Logger *log.Logger

	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults. It
// is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Template == nil {
		return errs.New(errs.ErrCodeInvalidInput, "template is required")
	}
	if o.Output == "" {
		return errs.New(errs.ErrCodeInvalidInput, "output directory is required")
	}
	if o.Format != "" {
		f, err := imageio.ParseFormat(string(o.Format))
		if err != nil {
			return err
		}
		o.Format = f
	}
	if o.Quality <= 0 {
		o.Quality = imageio.DefaultQuality
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// OutputPath returns where the stamped version of input is written.
func (o *Options) OutputPath(input string) string {
	name := filepath.Base(input)
	if o.Format != "" {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + "." + string(o.Format)
	}
	return filepath.Join(o.Output, name)
}

// FrameVariables merges the runtime variables with those of frame i.
func (o *Options) FrameVariables(i int, input string) map[string]any {
	total := len(o.Inputs)
	vars := make(map[string]any, len(o.Vars)+3)
	for k, v := range o.Vars {
		vars[k] = v
	}
	vars[VarFrame] = float64(o.FirstFrame + i)
	vars[VarFile] = input
	vars[VarTotalFrames] = float64(total)
	if o.FrameVars != nil {
		for k, v := range o.FrameVars(i, input, total) {
			vars[k] = v
		}
	}
	return vars
}

// Result summarizes a run.
type Result struct {
	RunID  string
	Frames []FrameResult
	Stats  Stats
}

// Failed returns the frames that could not be rendered.
func (r *Result) Failed() []FrameResult {
	var out []FrameResult
	for _, f := range r.Frames {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// FrameResult describes one frame of a run.
type FrameResult struct {
	Index    int
	Input    string
	Output   string
	CacheHit bool
	Warnings []string
	Duration time.Duration
	Err      error
}

// Stats counts the outcome of a run.
type Stats struct {
	Rendered int
	Cached   int
	Failed   int
	Duration time.Duration
}

// Collect returns the files of dir matching pattern in lexical order, at
// most limit of them when limit is positive.
func Collect(dir, pattern string, limit int) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "source directory %s", dir)
	}
	if !info.IsDir() {
		return nil, errs.New(errs.ErrCodeInvalidPath, "%s is not a directory", dir)
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "pattern %q", pattern)
	}

	files := matches[:0]
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}
