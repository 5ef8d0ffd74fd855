package inspect

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// ToDOT converts a report into a Graphviz digraph. Composition edges are
// solid; "parent" references are dashed.
func ToDOT(r *Report) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=12];\n")
	fmt.Fprintf(&buf, "  canvas [label=%q, shape=folder, fillcolor=\"#eeeeee\"];\n",
		fmt.Sprintf("%s %dx%d", orDefault(r.Template, "template"), r.Width, r.Height))
	buf.WriteString("\n")

	for _, e := range r.Entries {
		fmt.Fprintf(&buf, "  n%d [%s];\n", e.Index, nodeAttrs(e))
	}
	buf.WriteString("\n")
	for _, e := range r.Entries {
		from := "canvas"
		if e.Owner >= 0 {
			from = fmt.Sprintf("n%d", e.Owner)
		}
		fmt.Fprintf(&buf, "  %s -> n%d;\n", from, e.Index)
		if e.Ref >= 0 {
			fmt.Fprintf(&buf, "  n%d -> n%d [style=dashed, color=\"#888888\", arrowhead=open];\n", e.Ref, e.Index)
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(e Entry) string {
	attrs := []string{fmt.Sprintf("label=%q", e.Label())}
	switch {
	case e.Error != "":
		attrs = append(attrs, `fillcolor="#f8d7da"`, fmt.Sprintf("tooltip=%q", e.Error))
	case !e.Enabled:
		attrs = append(attrs, `style="rounded,dashed"`, `fontcolor="#999999"`)
	case e.Children > 0:
		attrs = append(attrs, `fillcolor="#dde8f7"`)
	}
	return strings.Join(attrs, ", ")
}

// RenderSVG lays out a DOT graph with the embedded Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errs.Wrap(errs.ErrCodeRenderFailed, err, "render DOT")
	}
	return buf.Bytes(), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
