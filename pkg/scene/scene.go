// Package scene renders a template onto a frame.
//
// A [Scene] holds the capabilities shared across renders (rasterizer, image
// loader, shape registry, logger). Each call to [Scene.Render] builds a
// fresh [shape.Context], instantiates the template's top-level shapes in
// declaration order, and composites their layers over a copy of the source
// frame. Scenes are safe for concurrent use as long as the rasterizer and
// image loader are.
package scene

import (
	"context"
	"image"
	"image/draw"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/observability"
	"github.com/matzehuels/framestamp/pkg/shape"
	"github.com/matzehuels/framestamp/pkg/template"
)

// EnvDebug turns on the debug overlay when set to a true value.
const EnvDebug = "FRAMESTAMP_DEBUG"

// Options configure a [Scene].
type Options struct {
	Raster   shape.Rasterizer
	Images   shape.ImageLoader
	Registry *shape.Registry
	// Debug overlays every shape's bounding box. Also enabled by EnvDebug.
	Debug bool
	// NoCache disables per-shape memoization.
	NoCache bool
	Logger  *log.Logger
}

// Scene renders templates.
type Scene struct {
	opts Options
}

// New creates a scene.
func New(opts Options) *Scene {
	if opts.Registry == nil {
		opts.Registry = shape.DefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvDebug)); err == nil && v {
		opts.Debug = true
	}
	return &Scene{opts: opts}
}

// Registry returns the shape registry templates are built against.
func (s *Scene) Registry() *shape.Registry {
	return s.opts.Registry
}

// Result is the output of one render.
type Result struct {
	Image *image.RGBA
	// Shapes is the number of top-level shapes drawn.
	Shapes   int
	Warnings []string
	Duration time.Duration
}

// Build instantiates tpl's shapes against source without drawing them.
// The returned context holds the populated scope; geometry can be queried
// through the shapes' nodes.
func (s *Scene) Build(source image.Image, tpl *template.Template, vars map[string]any) (*shape.Context, []shape.Shape, error) {
	if tpl == nil {
		return nil, nil, errs.New(errs.ErrCodeInvalidInput, "template is required")
	}
	if source == nil {
		return nil, nil, errs.New(errs.ErrCodeInvalidInput, "source image is required")
	}
	ctx := shape.NewContext(shape.Options{
		Raster:            s.opts.Raster,
		Images:            s.opts.Images,
		Registry:          s.opts.Registry,
		Variables:         vars,
		TemplateVariables: tpl.Variables,
		Defaults:          tpl.Defaults,
		Source:            source,
		Debug:             s.opts.Debug,
		NoCache:           s.opts.NoCache,
		Logger:            s.opts.Logger.With("template", tpl.Name),
	})
	shapes, err := ctx.BuildAll(tpl.Shapes)
	if err != nil {
		return nil, nil, err
	}
	return ctx, shapes, nil
}

// Render draws tpl over source and returns the stamped frame.
func (s *Scene) Render(source image.Image, tpl *template.Template, vars map[string]any) (*image.RGBA, error) {
	res, err := s.RenderContext(context.Background(), "", source, tpl, vars)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// RenderContext is Render with cancellation between shapes and render
// hooks. frame labels the input in hook events.
func (s *Scene) RenderContext(ctx context.Context, frame string, source image.Image, tpl *template.Template, vars map[string]any) (*Result, error) {
	start := time.Now()
	name := ""
	if tpl != nil {
		name = tpl.Name
	}
	observability.Render().OnFrameStart(ctx, name, frame)

	res, err := s.render(ctx, source, tpl, vars)
	shapes := 0
	if res != nil {
		res.Duration = time.Since(start)
		shapes = res.Shapes
	}
	observability.Render().OnFrameComplete(ctx, name, frame, shapes, time.Since(start), err)
	return res, err
}

func (s *Scene) render(ctx context.Context, source image.Image, tpl *template.Template, vars map[string]any) (*Result, error) {
	if s.opts.Raster == nil {
		return nil, errs.New(errs.ErrCodeInternal, "scene has no rasterizer")
	}
	sc, shapes, err := s.Build(source, tpl, vars)
	if err != nil {
		return nil, err
	}

	canvas := Canvas(source)
	for i, sh := range shapes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		layer, err := sh.Base().Render()
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeRenderFailed, err, "render %s (shape %d)", sh.Base(), i)
		}
		shape.Composite(canvas, layer)
	}
	return &Result{Image: canvas, Shapes: len(shapes), Warnings: sc.Warnings()}, nil
}

// Canvas returns an RGBA copy of src with its origin moved to zero.
func Canvas(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
