// Package inspect reports the resolved geometry of a template.
//
// A [Report] lists every shape of a built scene in depth-first order with
// its outer box, rotation and nesting. Reports are printed as tables by
// the CLI, served as JSON by the HTTP service, and exported as a Graphviz
// tree with [ToDOT] and [RenderSVG].
package inspect

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"strconv"

	"github.com/matzehuels/framestamp/pkg/geom"
	"github.com/matzehuels/framestamp/pkg/scene"
	"github.com/matzehuels/framestamp/pkg/shape"
	"github.com/matzehuels/framestamp/pkg/template"
)

// Entry is one shape of a report.
type Entry struct {
	// Index is the entry's position in Report.Entries.
	Index int    `json:"index"`
	Path  string `json:"path"`
	Depth int    `json:"depth"`
	Kind  string `json:"type"`
	ID    string `json:"id,omitempty"`
	// Owner is the index of the composite holding this shape, -1 at top level.
	Owner int `json:"owner"`
	// Ref is the index of the shape named by "parent", -1 when the shape is
	// positioned against its owner or the canvas.
	Ref      int       `json:"ref"`
	Rect     geom.Rect `json:"rect"`
	Rotate   float64   `json:"rotate,omitempty"`
	Enabled  bool      `json:"enabled"`
	Children int       `json:"children,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Label is a one-line description such as "rect#bar 0,0 1920x80".
func (e Entry) Label() string {
	name := e.Kind
	if e.ID != "" {
		name += "#" + e.ID
	}
	if e.Error != "" {
		return name + " (error)"
	}
	return fmt.Sprintf("%s %s,%s %sx%s", name, num(e.Rect.X), num(e.Rect.Y), num(e.Rect.Width), num(e.Rect.Height))
}

// Report is the resolved geometry of one template over one frame size.
type Report struct {
	Template string   `json:"template"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Entries  []Entry  `json:"shapes"`
	Warnings []string `json:"warnings,omitempty"`
}

// Build instantiates tpl over source and reports its shapes. Geometry
// errors of individual shapes are recorded on their entries.
func Build(sc *scene.Scene, source image.Image, tpl *template.Template, vars map[string]any) (*Report, error) {
	ctx, shapes, err := sc.Build(source, tpl, vars)
	if err != nil {
		return nil, err
	}
	r := FromShapes(ctx, shapes)
	r.Template = tpl.Name
	return r, nil
}

// FromShapes reports already built shapes.
func FromShapes(ctx *shape.Context, shapes []shape.Shape) *Report {
	w, h := ctx.Size()
	b := &builder{
		report: &Report{Width: w, Height: h},
		index:  make(map[*shape.Node]int),
		root:   ctx.Root().Base(),
	}
	for i, s := range shapes {
		b.walk(s, fmt.Sprintf("shapes[%d]", i), 0, -1)
	}
	b.linkRefs()
	b.report.Warnings = ctx.Warnings()
	return b.report
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Find returns the first entry with the given id.
func (r *Report) Find(id string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

type builder struct {
	report *Report
	index  map[*shape.Node]int
	nodes  []*shape.Node
	root   *shape.Node
}

func (b *builder) walk(s shape.Shape, path string, depth, owner int) {
	n := s.Base()
	e := Entry{
		Index: len(b.report.Entries),
		Path:  path,
		Depth: depth,
		Kind:  n.Kind(),
		ID:    n.ID(),
		Owner: owner,
		Ref:   -1,
	}
	if err := fill(&e, n); err != nil {
		e.Error = err.Error()
	}

	var children []shape.Shape
	if p, ok := s.(shape.Parent); ok {
		children = p.Children()
		e.Children = len(children)
	}
	b.index[n] = e.Index
	b.nodes = append(b.nodes, n)
	b.report.Entries = append(b.report.Entries, e)

	for i, c := range children {
		b.walk(c, fmt.Sprintf("%s.shapes[%d]", path, i), depth+1, e.Index)
	}
}

// linkRefs records "parent" references once every shape has an index.
func (b *builder) linkRefs() {
	for i, n := range b.nodes {
		p := n.Parent()
		if p == nil {
			continue
		}
		pn := p.Base()
		if pn == b.root {
			continue
		}
		j, ok := b.index[pn]
		if !ok || j == b.report.Entries[i].Owner {
			continue
		}
		b.report.Entries[i].Ref = j
	}
}

func fill(e *Entry, n *shape.Node) error {
	enabled, err := n.Enabled()
	if err != nil {
		return err
	}
	e.Enabled = enabled
	r, err := n.Rect()
	if err != nil {
		return err
	}
	e.Rect = r
	rot, err := n.GlobalRotate()
	if err != nil {
		return err
	}
	e.Rotate = rot
	return nil
}

// num prints v with at most two decimals.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
