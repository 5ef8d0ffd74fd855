package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/framestamp/pkg/cache"
	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/imageio"
	"github.com/matzehuels/framestamp/pkg/observability"
	"github.com/matzehuels/framestamp/pkg/scene"
	"github.com/matzehuels/framestamp/pkg/template"
)

// Runner renders frame sequences with caching. It holds no per-run state,
// so one Runner may serve concurrent runs.
type Runner struct {
	Scene  *scene.Scene
	Cache  cache.Cache
	Keyer  cache.Keyer
	TTL    time.Duration
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching and a nil
// keyer uses cache.DefaultKeyer.
func NewRunner(sc *scene.Scene, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Scene: sc, Cache: c, Keyer: keyer, TTL: DefaultCacheTTL, Logger: logger}
}

// Run renders every input of opts. Frame failures are recorded in the
// result and do not stop the run; the returned error is reserved for
// invalid options, an unusable output directory and cancellation.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if r.Scene == nil {
		return nil, errs.New(errs.ErrCodeInternal, "runner has no scene")
	}
	if err := os.MkdirAll(opts.Output, 0o755); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "create output directory %s", opts.Output)
	}

	start := time.Now()
	runID := uuid.NewString()
	logger := opts.Logger.With("run", runID[:8])
	total := len(opts.Inputs)
	tplHash := template.Hash(opts.Template)

	observability.Render().OnBatchStart(ctx, runID, total)
	logger.Info("starting batch", "template", opts.Template.Name, "frames", total, "workers", opts.Workers)

	res := &Result{RunID: runID, Frames: make([]FrameResult, total)}
	var done atomic.Int64
	var progressMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, input := range opts.Inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr := r.frame(gctx, &opts, tplHash, i, input)
			res.Frames[i] = fr
			if fr.Err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Error("frame failed", "file", filepath.Base(input), "err", errs.UserMessage(fr.Err))
			} else {
				for _, w := range fr.Warnings {
					logger.Warn(w, "file", filepath.Base(input))
				}
			}
			n := int(done.Add(1))
			if opts.Progress != nil {
				progressMu.Lock()
				opts.Progress(n, total)
				progressMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	for _, f := range res.Frames {
		switch {
		case f.Err != nil:
			res.Stats.Failed++
		case f.CacheHit:
			res.Stats.Cached++
		default:
			res.Stats.Rendered++
		}
	}
	res.Stats.Duration = time.Since(start)
	observability.Render().OnBatchComplete(ctx, runID, res.Stats.Rendered+res.Stats.Cached, res.Stats.Failed, res.Stats.Duration)
	logger.Info("batch complete",
		"rendered", res.Stats.Rendered,
		"cached", res.Stats.Cached,
		"failed", res.Stats.Failed,
		"duration", res.Stats.Duration.Round(time.Millisecond))
	return res, nil
}

// frame renders (or fetches from cache) one frame and writes it.
func (r *Runner) frame(ctx context.Context, opts *Options, tplHash string, i int, input string) (fr FrameResult) {
	start := time.Now()
	fr = FrameResult{Index: i, Input: input, Output: opts.OutputPath(input)}
	defer func() { fr.Duration = time.Since(start) }()

	if samePath(fr.Input, fr.Output) {
		fr.Err = errs.New(errs.ErrCodeInvalidPath, "output %s would overwrite its input", fr.Output)
		return fr
	}

	format := opts.Format
	if format == "" {
		f, err := imageio.FormatFromPath(input)
		if err != nil {
			fr.Err = err
			return fr
		}
		format = f
	}

	src, err := imageio.Open(input)
	if err != nil {
		fr.Err = err
		return fr
	}
	vars := opts.FrameVariables(i, input)
	key := r.Keyer.FrameKey(tplHash, imageio.Hash(src), cache.FrameKeyOpts{
		Vars:    vars,
		Format:  string(format),
		Quality: opts.Quality,
		Debug:   opts.Debug,
		Assets:  r.Scene.Assets(opts.Template, vars),
	})

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			fr.CacheHit = true
			fr.Err = writeFile(fr.Output, data)
			return fr
		} else if err != nil {
			opts.Logger.Debug("cache lookup failed", "err", err)
		}
	}

	out, err := r.Scene.RenderContext(ctx, input, src, opts.Template, vars)
	if err != nil {
		fr.Err = err
		return fr
	}
	fr.Warnings = out.Warnings

	var buf bytes.Buffer
	if err := imageio.Encode(&buf, out.Image, format, opts.Quality); err != nil {
		fr.Err = err
		return fr
	}
	if err := writeFile(fr.Output, buf.Bytes()); err != nil {
		fr.Err = err
		return fr
	}
	if err := r.Cache.Set(ctx, key, buf.Bytes(), r.TTL); err != nil {
		opts.Logger.Debug("cache write failed", "err", err)
	}
	return fr
}

// Close releases the runner's cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidPath, err, "write %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ErrCodeInvalidPath, err, "write %s", path)
	}
	return nil
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
