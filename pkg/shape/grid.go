package shape

import (
	"image"
	"math"
	"strconv"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/expr"
	"github.com/matzehuels/framestamp/pkg/geom"
)

// Grid lays its children out in rows and columns, one child per cell, in
// row-major order.
//
// Parameters: rows and columns (a count or "auto"), horizontal_spacing
// (h_spacing), vertical_spacing (v_spacing), max_row_height,
// max_column_width, rows_height and columns_width (index to size, negative
// indices count from the end), fit_to_content_height, and border
// ({enabled, width, color}) to outline the cells. Children are listed
// under "shapes"; those marked "skip: true" are ignored.
//
// Each child sees the local variables index, row and column.
type Grid struct {
	*Node
	noDraw

	rows, columns int
	children      []Shape
	cells         []*box

	laid    bool
	laying  bool
	layout  []geom.Cell
	heights []float64
}

// NewGrid constructs a grid shape.
func NewGrid(ctx *Context, data map[string]any, parent Shape) (Shape, error) {
	return newGrid(ctx, "grid", data, parent, nil)
}

// NewRow constructs a single-row grid: one column per child.
func NewRow(ctx *Context, data map[string]any, parent Shape) (Shape, error) {
	return newGrid(ctx, "row", data, parent, map[string]any{"rows": 1.0, "columns": "auto"})
}

// NewColumn constructs a single-column grid: one row per child.
func NewColumn(ctx *Context, data map[string]any, parent Shape) (Shape, error) {
	return newGrid(ctx, "column", data, parent, map[string]any{"rows": "auto", "columns": 1.0})
}

func newGrid(ctx *Context, kind string, data map[string]any, parent Shape, fixed map[string]any) (Shape, error) {
	g := &Grid{}
	n, err := NewNode(g, ctx, kind, data, parent)
	if err != nil {
		return nil, err
	}
	g.Node = n
	for k, v := range fixed {
		if v == "auto" && n.Has(k) {
			continue
		}
		n.data[k] = v
	}

	descs, err := childDescriptors(n)
	if err != nil {
		return nil, err
	}
	if g.rows, g.columns, err = g.dimensions(len(descs)); err != nil {
		return nil, err
	}

	for i, d := range descs {
		cell := newBox(ctx, g, func() (geom.Rect, error) {
			cells, err := g.Cells()
			if err != nil {
				return geom.Rect{}, err
			}
			return cells[i].Rect, nil
		}, 0, nil)
		cell.local = map[string]any{
			"index":  float64(i),
			"row":    float64(i / g.columns),
			"column": float64(i % g.columns),
		}
		child, err := ctx.Build(d, cell)
		if err != nil {
			return nil, wrap(err, "%s: child %d", g, i)
		}
		g.cells = append(g.cells, cell)
		g.children = append(g.children, child)
	}
	if err := registerChildren(ctx, g.Node, g.children); err != nil {
		return nil, err
	}
	return g, nil
}

// childDescriptors returns the "shapes" (alias "children") descriptors
// that are not skipped.
func childDescriptors(n *Node) ([]map[string]any, error) {
	raw, ok := n.data["shapes"]
	if !ok {
		raw, ok = n.data["children"]
	}
	if !ok || raw == nil {
		return nil, nil
	}
	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case []map[string]any:
		for _, d := range v {
			list = append(list, d)
		}
	default:
		return nil, errs.New(errs.ErrCodePreset, "%s: children must be a list, got %T", n, raw)
	}

	out := make([]map[string]any, 0, len(list))
	for i, e := range list {
		d, ok := e.(map[string]any)
		if !ok {
			return nil, errs.New(errs.ErrCodePreset, "%s: child %d is %T, want a shape descriptor", n, i, e)
		}
		skip, err := toBool(expr.Normalize(d["skip"]), func() error {
			return errs.New(errs.ErrCodeInvalidParameterType, "%s: child %d: skip must be a boolean", n, i)
		})
		if err != nil {
			return nil, err
		}
		if !skip {
			out = append(out, d)
		}
	}
	return out, nil
}

// registerChildren adds children to scope only if no id collides, either
// among the children or with shapes already in scope.
func registerChildren(ctx *Context, owner *Node, children []Shape) error {
	seen := make(map[string]bool)
	for _, c := range children {
		id := c.Base().ID()
		if id == "" {
			continue
		}
		if _, taken := ctx.Lookup(id); taken || seen[id] || id == owner.ID() {
			return errs.New(errs.ErrCodePreset, "%s: duplicate shape id %q", owner, id)
		}
		seen[id] = true
	}
	for _, c := range children {
		if err := ctx.AddShape(c); err != nil {
			return err
		}
	}
	return nil
}

func (g *Grid) dimensions(count int) (int, int, error) {
	rows, rowsAuto, err := g.count("rows")
	if err != nil {
		return 0, 0, err
	}
	cols, colsAuto, err := g.count("columns")
	if err != nil {
		return 0, 0, err
	}
	switch {
	case rowsAuto && colsAuto:
		rows = max(1, count/2)
		cols = rows
	case rowsAuto:
		rows = max(1, int(math.Ceil(float64(count)/float64(cols))))
	case colsAuto:
		cols = max(1, int(math.Ceil(float64(count)/float64(rows))))
	}
	return rows, cols, nil
}

func (g *Grid) count(key string) (int, bool, error) {
	v, err := g.Param(key, Default("auto"))
	if err != nil {
		return 0, false, err
	}
	if v == nil || v == "auto" {
		return 0, true, nil
	}
	f, ok := expr.ToFloat(v)
	if !ok {
		return 0, false, errs.New(errs.ErrCodeInvalidParameterType, "%s: %s must be a count or \"auto\", got %v", g, key, v)
	}
	if f < 1 {
		return 0, false, errs.New(errs.ErrCodeConfiguration, "%s: %s must be at least 1, got %v", g, key, f)
	}
	return int(f), false, nil
}

// Dimensions returns the resolved row and column counts.
func (g *Grid) Dimensions() (rows, columns int) { return g.rows, g.columns }

// Children returns the grid's children in layout order.
func (g *Grid) Children() []Shape { return g.children }

func (g *Grid) invalidateChildren() {
	g.laid = false
	g.layout = nil
	g.heights = nil
	for _, c := range g.cells {
		c.Invalidate()
	}
	for _, c := range g.children {
		c.Base().Invalidate()
	}
}

// Cells returns one cell per child, relative to the grid's draw origin.
func (g *Grid) Cells() ([]geom.Cell, error) {
	if g.laid {
		return g.layout, nil
	}
	if g.laying {
		return nil, errs.New(errs.ErrCodeRecursion, "%s: cell layout depends on itself", g)
	}
	g.laying = true
	defer func() { g.laying = false }()

	cells, heights, err := g.GenerateCells(len(g.children), nil)
	if err != nil {
		return nil, err
	}
	g.layout, g.heights, g.laid = cells, heights, true

	fit, err := g.Bool("fit_to_content_height", Default(false))
	if err != nil || !fit {
		g.laid = err == nil
		return g.layout, err
	}
	grown, err := g.fitContent()
	if err != nil {
		g.laid = false
		return nil, err
	}
	if grown != nil {
		g.invalidateChildren()
		cells, heights, err := g.GenerateCells(len(g.children), grown)
		if err != nil {
			return nil, err
		}
		g.layout, g.heights, g.laid = cells, heights, true
	}
	return g.layout, nil
}

// fitContent grows every row to its tallest child. It returns the new row
// heights, or nil when nothing changed.
func (g *Grid) fitContent() ([]float64, error) {
	heights := append([]float64(nil), g.heights...)
	changed := false
	for i, c := range g.children {
		row := i / g.columns
		h, err := c.Base().Height()
		if err != nil {
			return nil, err
		}
		if h > heights[row] {
			heights[row] = h
			changed = true
		}
	}
	if !changed {
		return nil, nil
	}
	return heights, nil
}

// GenerateCells computes count cells in row-major order. Rows beyond the
// configured count continue downward with the default row height. When
// heights is non-nil it overrides the computed row heights.
func (g *Grid) GenerateCells(count int, heights []float64) ([]geom.Cell, []float64, error) {
	hs, err := g.Number("horizontal_spacing", Aliases("h_spacing"), Default(0.0))
	if err != nil {
		return nil, nil, err
	}
	vs, err := g.Number("vertical_spacing", Aliases("v_spacing"), Default(0.0))
	if err != nil {
		return nil, nil, err
	}
	w, err := g.WidthDraw()
	if err != nil {
		return nil, nil, err
	}
	h, err := g.HeightDraw()
	if err != nil {
		return nil, nil, err
	}

	colOverrides, err := g.overrides("columns_width")
	if err != nil {
		return nil, nil, err
	}
	maxCol, err := g.Number("max_column_width", Default(0.0))
	if err != nil {
		return nil, nil, err
	}
	widths, _ := distribute(g.columns, w-hs*float64(g.columns-1), colOverrides, maxCol)

	rowHeights, share := heights, 0.0
	if rowHeights == nil {
		rowOverrides, err := g.overrides("rows_height")
		if err != nil {
			return nil, nil, err
		}
		maxRow, err := g.Number("max_row_height", Default(0.0))
		if err != nil {
			return nil, nil, err
		}
		rowHeights, share = distribute(g.rows, h-vs*float64(g.rows-1), rowOverrides, maxRow)
	} else if len(rowHeights) > 0 {
		share = rowHeights[len(rowHeights)-1]
	}

	needRows := 0
	if count > 0 {
		needRows = (count-1)/g.columns + 1
	}
	for len(rowHeights) < needRows {
		rowHeights = append(rowHeights, share)
	}

	xs := offsets(widths, hs)
	ys := offsets(rowHeights, vs)
	cells := make([]geom.Cell, count)
	for i := range cells {
		r, c := i/g.columns, i%g.columns
		cells[i] = geom.Cell{
			Rect:   geom.R(xs[c], ys[r], widths[c], rowHeights[r]),
			Row:    r,
			Column: c,
		}
	}
	return cells, rowHeights, nil
}

// overrides reads an index-to-size mapping given either as a map with
// integer keys or as a list whose null entries are skipped.
func (g *Grid) overrides(key string) (map[int]float64, error) {
	if _, ok := g.Raw(key); !ok {
		return nil, nil
	}
	v, err := g.Param(key)
	if err != nil {
		return nil, err
	}
	out := make(map[int]float64)
	add := func(idx int, size any) error {
		f, ok := expr.ToFloat(size)
		if !ok {
			return errs.New(errs.ErrCodeInvalidParameterType, "%s: %s[%d] must be a number, got %v", g, key, idx, size)
		}
		out[idx] = f
		return nil
	}
	switch m := v.(type) {
	case map[string]any:
		for k, size := range m {
			idx, err := strconv.Atoi(k)
			if err != nil {
				return nil, errs.New(errs.ErrCodeInvalidParameterType, "%s: %s key %q is not an index", g, key, k)
			}
			if err := add(idx, size); err != nil {
				return nil, err
			}
		}
	case []any:
		for i, size := range m {
			if size == nil {
				continue
			}
			if err := add(i, size); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errs.New(errs.ErrCodeInvalidParameterType, "%s: %s must be a map or a list", g, key)
	}
	return out, nil
}

// distribute splits total among n slots. Overridden slots get exactly their
// size; the others share what remains evenly, capped at limit when limit
// is positive. It also returns the shared size.
func distribute(n int, total float64, overrides map[int]float64, limit float64) ([]float64, float64) {
	sizes := make([]float64, n)
	fixed := make([]bool, n)
	used := 0.0
	for idx, size := range overrides {
		if idx < 0 {
			idx += n
		}
		if idx < 0 || idx >= n || fixed[idx] {
			continue
		}
		sizes[idx] = size
		fixed[idx] = true
		used += size
	}
	free := 0
	for _, f := range fixed {
		if !f {
			free++
		}
	}
	share := 0.0
	if free > 0 {
		share = max(0, (total-used)/float64(free))
		if limit > 0 {
			share = min(share, limit)
		}
	}
	for i := range sizes {
		if !fixed[i] {
			sizes[i] = share
		}
	}
	return sizes, share
}

func offsets(sizes []float64, spacing float64) []float64 {
	out := make([]float64, len(sizes))
	pos := 0.0
	for i, s := range sizes {
		out[i] = pos
		pos += s + spacing
	}
	return out
}

// RenderLayer composites the children in order and outlines the cells when
// a border is configured.
func (g *Grid) RenderLayer() (*image.RGBA, error) {
	w, h := g.ctx.Size()
	img := Blank(w, h)

	dw, err := g.WidthDraw()
	if err != nil {
		return nil, err
	}
	dh, err := g.HeightDraw()
	if err != nil {
		return nil, err
	}
	if dw <= 0 || dh <= 0 {
		g.ctx.Warn("grid has zero area", "shape", g.String(), "width", dw, "height", dh)
	}

	for _, c := range g.children {
		layer, err := c.Base().Render()
		if err != nil {
			return nil, err
		}
		Composite(img, layer)
	}
	if err := g.drawCellBorders(img); err != nil {
		return nil, err
	}
	return img, nil
}

func (g *Grid) drawCellBorders(img *image.RGBA) error {
	if _, ok := g.Raw("border"); !ok {
		return nil
	}
	stroke, ok, err := border(g.Node, 1)
	if err != nil || !ok || g.ctx.Raster == nil {
		return err
	}
	cells, err := g.Cells()
	if err != nil {
		return err
	}
	origin, err := g.DrawRect()
	if err != nil {
		return err
	}
	m, err := g.Transform()
	if err != nil {
		return err
	}
	w, h := g.ctx.Size()
	layer := g.ctx.Raster.NewLayer(w, h)
	for _, c := range cells {
		r := c.Rect.Translate(origin.X, origin.Y)
		if err := layer.StrokePolyline(transformed(r, m), stroke.color, stroke.width, true, false); err != nil {
			return err
		}
	}
	Composite(img, layer.Image())
	return nil
}
