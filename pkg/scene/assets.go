package scene

import (
	"slices"
	"strings"

	"github.com/matzehuels/framestamp/pkg/shape"
	"github.com/matzehuels/framestamp/pkg/template"
)

// maxAssetRef is the longest string treated as a possible file reference.
const maxAssetRef = 4096

// Assets fingerprints the files a render of tpl with vars may read: every
// string in the template or the variables that names an image or font
// file is stamped with its path, size and modification time. The result is
// sorted, so it changes exactly when one of those files does.
func (s *Scene) Assets(tpl *template.Template, vars map[string]any) []string {
	var stampers []shape.AssetStamper
	for _, v := range []any{s.opts.Images, s.opts.Raster} {
		if st, ok := v.(shape.AssetStamper); ok {
			stampers = append(stampers, st)
		}
	}
	if len(stampers) == 0 || tpl == nil {
		return nil
	}

	refs := map[string]bool{}
	collect := func(v any) { collectRefs(v, refs) }
	collect(tpl.Defaults)
	collect(tpl.Variables)
	for _, sh := range tpl.Shapes {
		collect(sh)
	}
	collect(vars)

	var out []string
	for ref := range refs {
		for _, st := range stampers {
			if stamp, ok := st.Stamp(ref); ok {
				out = append(out, stamp)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func collectRefs(v any, refs map[string]bool) {
	switch v := v.(type) {
	case string:
		if v != "" && len(v) <= maxAssetRef && !strings.ContainsAny(v, "\n$=") && !strings.HasPrefix(v, "data:") {
			refs[v] = true
		}
	case map[string]any:
		for _, e := range v {
			collectRefs(e, refs)
		}
	case []any:
		for _, e := range v {
			collectRefs(e, refs)
		}
	case []map[string]any:
		for _, e := range v {
			collectRefs(e, refs)
		}
	}
}
