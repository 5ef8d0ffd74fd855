// Package pkg holds the framestamp libraries.
//
// Framestamp draws template-driven overlays (slates, burn-ins, labels,
// logos, grids of thumbnails) onto image frames. A template is a tree of
// shape descriptors whose parameters may be literals, percentages of the
// parent, references to other shapes, runtime variables or expressions.
//
// # Layout
//
//  1. [geom] - points, rectangles, affine transforms
//  2. [expr] - the expression language behind "=..." parameters
//  3. [shape] - parameter resolution, shape nodes, grids, tiles, the registry
//  4. [template] - loading and validating template files
//  5. [scene] - rendering a template over a frame
//  6. [raster], [fonts], [imageio] - drawing, fonts, frame I/O
//  7. [pipeline], [cache] - stamping frame sequences with a result cache
//  8. [inspect], [server], [config] - geometry reports, HTTP service, settings
//
// # Quick Start
//
//	f, _ := template.Load("slate.json")
//	tpl, _ := f.Select("")
//	sc := scene.New(scene.Options{Raster: raster.New(nil), Images: raster.NewImageLoader(".", 0)})
//	frame, _ := imageio.Open("plate.1001.png")
//	out, _ := sc.Render(frame, tpl, map[string]any{"shot": "sh010", "frame": 1001.0})
//	_ = imageio.Save("stamped.1001.png", out, 0)
package pkg
