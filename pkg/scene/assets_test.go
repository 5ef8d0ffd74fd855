package scene

import (
	"image"
	"reflect"
	"testing"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// fileImages stamps the names in files and loads nothing.
type fileImages map[string]string

func (f fileImages) Load(ref string) (image.Image, error) {
	return nil, errs.New(errs.ErrCodeFileNotFound, "%s", ref)
}

func (f fileImages) Stamp(ref string) (string, bool) {
	s, ok := f[ref]
	return s, ok
}

func TestAssets(t *testing.T) {
	tpl := mustTemplate(t, `{
		"defaults": {"label": {"font_name": "Brand"}},
		"variables": {"logo": "logo.png"},
		"shapes": [
			{"type": "image", "source": "$logo"},
			{"type": "grid", "shapes": [{"type": "image", "source": "badge.png", "mask": "=$unit"}]},
			{"type": "rect", "color": "red"}
		]
	}`)
	files := fileImages{
		"logo.png":  "/t/logo.png:10:1",
		"badge.png": "/t/badge.png:20:2",
		"Brand":     "/f/Brand.ttf:30:3",
		"shot.png":  "/t/shot.png:40:4",
	}
	sc := New(Options{Raster: rectRaster{}, Images: files})

	tests := []struct {
		name string
		vars map[string]any
		want []string
	}{
		{"template only", nil, []string{"/f/Brand.ttf:30:3", "/t/badge.png:20:2", "/t/logo.png:10:1"}},
		{"variable names a file", map[string]any{"logo": "shot.png"}, []string{"/f/Brand.ttf:30:3", "/t/badge.png:20:2", "/t/logo.png:10:1", "/t/shot.png:40:4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sc.Assets(tpl, tt.vars); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Assets() = %v, want %v", got, tt.want)
			}
		})
	}

	files["logo.png"] = "/t/logo.png:10:9"
	if got := sc.Assets(tpl, nil); got[2] != "/t/logo.png:10:9" {
		t.Errorf("Assets() after edit = %v, want the new logo stamp", got)
	}
	if got := New(Options{Raster: rectRaster{}}).Assets(tpl, nil); got != nil {
		t.Errorf("Assets() without stampers = %v, want nil", got)
	}
}
