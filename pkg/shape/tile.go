package shape

import (
	"cmp"
	"image"
	"math"
	"math/rand/v2"
	"slices"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/expr"
	"github.com/matzehuels/framestamp/pkg/geom"
)

// Tile repeats its children over a lattice covering the canvas, cycling
// through them in order (or at random with random_order).
//
// Parameters: tile_width and tile_height (100), spacing [x, y] with the
// horizontal_spacing (h_spacing) and vertical_spacing (v_spacing)
// overrides, pivot [x, y] relative to the draw origin, grid_rotate,
// row_offset and column_offset for brick patterns, max_rows, max_columns,
// random_order and random_seed. The tile's own rotate is always 0.
//
// Each repetition sees the local variables tile_index (count of visible
// repetitions before it) and global_index (lattice position).
type Tile struct {
	*Node
	noDraw

	children []Shape
	visible  int
}

// NewTile constructs a tile shape. Children may not declare ids.
func NewTile(ctx *Context, data map[string]any, parent Shape) (Shape, error) {
	t := &Tile{}
	n, err := NewNode(t, ctx, "tile", data, parent)
	if err != nil {
		return nil, err
	}
	t.Node = n

	descs, err := childDescriptors(n)
	if err != nil {
		return nil, err
	}
	for i, d := range descs {
		if id, ok := d["id"]; ok {
			return nil, errs.New(errs.ErrCodePreset, "%s: repeated child %d cannot have an id (got %v)", t, i, id)
		}
		child, err := ctx.Build(d, t)
		if err != nil {
			return nil, wrap(err, "%s: child %d", t, i)
		}
		t.children = append(t.children, child)
	}
	return t, nil
}

// ResolveRotate pins the tile's own rotation to zero; use grid_rotate.
func (t *Tile) ResolveRotate() (float64, error) { return 0, nil }

// Children returns the child templates.
func (t *Tile) Children() []Shape { return t.children }

// Visible returns how many repetitions the last render drew.
func (t *Tile) Visible() int { return t.visible }

func (t *Tile) invalidateChildren() {
	for _, c := range t.children {
		c.Base().Invalidate()
	}
}

// Lattice describes a tiling pattern.
type Lattice struct {
	// Width and Height give the area to cover.
	Width, Height float64
	// TileWidth and TileHeight give the size of one repetition.
	TileWidth, TileHeight float64
	// SpacingX and SpacingY are the gaps between repetitions.
	SpacingX, SpacingY float64
	Pivot              geom.Point
	// Rotate turns the whole pattern counter-clockwise about Pivot, in
	// degrees.
	Rotate float64
	// RowOffset shifts odd rows horizontally; ColumnOffset shifts odd
	// columns vertically.
	RowOffset, ColumnOffset float64
	// MaxRows and MaxColumns keep only the rows and columns nearest the
	// pivot. Zero means unlimited.
	MaxRows, MaxColumns int
}

// MaxTilePoints bounds the number of repetitions a lattice may produce
// after max_rows and max_columns are applied.
const MaxTilePoints = 1 << 18

// GenerateCoords returns the top-left corners of every repetition, sorted
// row-major and rotated about the pivot. The unrotated lattice spans four
// times the larger area extent around the pivot, so any rotation still
// covers the area. Lattices larger than MaxTilePoints are rejected.
func GenerateCoords(l Lattice) ([]geom.Point, error) {
	if l.TileWidth <= 0 || l.TileHeight <= 0 {
		return nil, errs.New(errs.ErrCodeConfiguration, "tile size must be positive, got %gx%g", l.TileWidth, l.TileHeight)
	}
	stepX, stepY := l.TileWidth+l.SpacingX, l.TileHeight+l.SpacingY
	if stepX <= 0 || stepY <= 0 {
		return nil, errs.New(errs.ErrCodeConfiguration, "tile step must be positive, got %gx%g", stepX, stepY)
	}

	extent := max(l.Width, l.Height)
	spanX := max(extent-math.Mod(extent, l.TileWidth), l.TileWidth)
	spanY := max(extent-math.Mod(extent, l.TileHeight), l.TileHeight)
	startX := floorMod(l.Pivot.X, spanX) - 2*spanX
	startY := floorMod(l.Pivot.Y, spanY) - 2*spanY

	if 4*spanY/stepY > math.MaxInt32 || 4*spanX/stepX > math.MaxInt32 {
		return nil, errs.New(errs.ErrCodeConfiguration, "tile step %gx%g is too small for a %g extent", stepX, stepY, extent)
	}
	rows, cols := capped(4*spanY/stepY, l.MaxRows), capped(4*spanX/stepX, l.MaxColumns)
	if rows*cols > MaxTilePoints {
		return nil, errs.New(errs.ErrCodeConfiguration,
			"tile lattice of %gx%g repetitions exceeds %d; use a larger tile or set max_rows and max_columns",
			rows, cols, MaxTilePoints)
	}

	nRows, nCols := int(math.Ceil(4*spanY/stepY)), int(math.Ceil(4*spanX/stepX))
	r0, r1 := nearestRange(startY, stepY, nRows, l.MaxRows, l.Pivot.Y)
	pts := make([]geom.Point, 0, int(rows*cols))
	for r := r0; r < r1; r++ {
		y := startY + float64(r)*stepY
		dx := 0.0
		if r%2 == 1 {
			dx = l.RowOffset
		}
		c0, c1 := nearestRange(startX+dx, stepX, nCols, l.MaxColumns, l.Pivot.X)
		for c := c0; c < c1; c++ {
			dy := 0.0
			if c%2 == 1 {
				dy = l.ColumnOffset
			}
			pts = append(pts, geom.Pt(startX+float64(c)*stepX+dx, y+dy))
		}
	}
	slices.SortStableFunc(pts, func(a, b geom.Point) int {
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})
	for i, p := range pts {
		pts[i] = geom.Rotate(p, l.Pivot, -l.Rotate)
	}
	return pts, nil
}

// capped returns ceil(n), limited to limit when limit is positive.
func capped(n float64, limit int) float64 {
	n = math.Ceil(n)
	if limit > 0 && float64(limit) < n {
		return float64(limit)
	}
	return n
}

// nearestRange returns the index window [lo, hi) of the limit lattice
// positions start+i*step (0 <= i < n) closest to target. Ties keep the
// lower index. A non-positive limit keeps all n positions.
func nearestRange(start, step float64, n, limit int, target float64) (int, int) {
	if limit <= 0 || n <= limit {
		return 0, n
	}
	dist := func(i int) float64 { return math.Abs(start + float64(i)*step - target) }
	lo := int(math.Floor((target - start) / step))
	lo = min(max(lo, 0), n-1)
	if lo+1 < n && dist(lo+1) < dist(lo) {
		lo++
	}
	hi := lo + 1
	for hi-lo < limit {
		switch {
		case lo == 0:
			hi++
		case hi == n:
			lo--
		case dist(lo-1) <= dist(hi):
			lo--
		default:
			hi++
		}
	}
	return lo, hi
}

func floorMod(a, b float64) float64 {
	return a - b*math.Floor(a/b)
}

// lattice resolves the tile parameters.
func (t *Tile) lattice() (Lattice, error) {
	var l Lattice
	var err error
	num := func(dst *float64, key string, def float64, aliases ...string) {
		if err == nil {
			*dst, err = t.Number(key, Default(def), Aliases(aliases...))
		}
	}
	num(&l.TileWidth, "tile_width", 100)
	num(&l.TileHeight, "tile_height", 100)
	num(&l.Rotate, "grid_rotate", 0)
	num(&l.RowOffset, "row_offset", 0)
	num(&l.ColumnOffset, "column_offset", 0)
	if err != nil {
		return l, err
	}

	if _, ok := t.Raw("spacing"); ok {
		sp, err := t.Point("spacing")
		if err != nil {
			return l, err
		}
		l.SpacingX, l.SpacingY = sp.X, sp.Y
	}
	if _, ok := t.Raw("horizontal_spacing", "h_spacing"); ok {
		num(&l.SpacingX, "horizontal_spacing", 0, "h_spacing")
	}
	if _, ok := t.Raw("vertical_spacing", "v_spacing"); ok {
		num(&l.SpacingY, "vertical_spacing", 0, "v_spacing")
	}
	if err != nil {
		return l, err
	}

	if l.Pivot, err = t.Point("pivot", Default([]any{0.0, 0.0})); err != nil {
		return l, err
	}
	if l.MaxRows, err = t.limit("max_rows"); err != nil {
		return l, err
	}
	if l.MaxColumns, err = t.limit("max_columns"); err != nil {
		return l, err
	}

	p := t.Parent().Base()
	if l.Width, err = p.Width(); err != nil {
		return l, err
	}
	l.Height, err = p.Height()
	return l, err
}

func (t *Tile) limit(key string) (int, error) {
	v, err := t.Param(key, Default(nil))
	if err != nil || v == nil {
		return 0, err
	}
	f, ok := expr.ToFloat(v)
	if !ok {
		return 0, errs.New(errs.ErrCodeInvalidParameterType, "%s: %s must be a number, got %v", t, key, v)
	}
	return max(0, int(f)), nil
}

// RenderLayer binds each child template to the lattice cells in turn and
// composites the repetitions that intersect the canvas.
func (t *Tile) RenderLayer() (*image.RGBA, error) {
	w, h := t.ctx.Size()
	img := Blank(w, h)
	t.visible = 0
	if len(t.children) == 0 {
		return img, nil
	}

	l, err := t.lattice()
	if err != nil {
		return nil, wrap(err, "%s", t)
	}
	coords, err := GenerateCoords(l)
	if err != nil {
		return nil, wrap(err, "%s", t)
	}
	pick, err := t.picker()
	if err != nil {
		return nil, err
	}

	canvas := geom.R(0, 0, float64(w), float64(h))
	pivot := geom.Pt(l.TileWidth/2, l.TileHeight/2)
	hidden := 0
	for i, p := range coords {
		child := t.children[pick(i)]
		cell := fixedBox(t.ctx, t, geom.R(p.X, p.Y, l.TileWidth, l.TileHeight), l.Rotate, &pivot)
		n := child.Base()
		n.SetParent(cell)
		n.SetLocal(map[string]any{
			"tile_index":   float64(t.visible),
			"global_index": float64(i),
		})

		bounds, err := n.Bounds()
		if err != nil {
			return nil, err
		}
		if !bounds.Intersects(canvas) {
			hidden++
			continue
		}
		layer, err := n.Render()
		if err != nil {
			return nil, err
		}
		Composite(img, layer)
		t.visible++
	}
	t.ctx.Logger.Debug("tile rendered", "shape", t.String(), "visible", t.visible, "hidden", hidden)
	return img, nil
}

// picker returns the child index for lattice position i.
func (t *Tile) picker() (func(int) int, error) {
	random, err := t.Bool("random_order", Default(false))
	if err != nil {
		return nil, err
	}
	count := len(t.children)
	if !random {
		return func(i int) int { return i % count }, nil
	}
	seed, err := t.Number("random_seed", Default(0.0))
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(uint64(int64(seed)), 0x5eed))
	return func(int) int { return rng.IntN(count) }, nil
}
