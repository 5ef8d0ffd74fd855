package shape

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// Image draws a picture scaled into its box.
//
// "source" is a file path, a base64 payload, a data URI, or "$source" for
// the frame being stamped. With keep_aspect (default true) a single given
// dimension derives the other from the source, and two given dimensions
// fit the picture inside them. Optional: mask (grayscale alpha image),
// transparency (0 to 1), multiply_color.
type Image struct {
	*Node
}

// NewImage constructs an image shape.
func NewImage(ctx *Context, data map[string]any, parent Shape) (Shape, error) {
	s := &Image{}
	n, err := NewNode(s, ctx, "image", data, parent)
	if err != nil {
		return nil, err
	}
	s.Node = n
	return s, nil
}

// Source returns the decoded source picture.
func (s *Image) Source() (image.Image, error) {
	v, err := s.memo("@source", func() (any, error) {
		return s.load("source", true)
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

func (s *Image) load(key string, allowFrame bool) (image.Image, error) {
	raw, ok := s.Raw(key)
	if !ok {
		return nil, errs.New(errs.ErrCodeParameterNotFound, "%s: missing parameter %q", s, key)
	}
	if raw == "$source" || raw == "${source}" {
		if !allowFrame || s.ctx.Source == nil {
			return nil, errs.New(errs.ErrCodeUnresolvedReference, "%s: no source frame available for %q", s, key)
		}
		return s.ctx.Source, nil
	}
	v, err := s.Param(key)
	if err != nil {
		return nil, err
	}
	switch src := v.(type) {
	case image.Image:
		return src, nil
	case string:
		if s.ctx.Images == nil {
			return nil, errs.New(errs.ErrCodeInternal, "%s: no image loader configured", s)
		}
		img, err := s.ctx.Images.Load(src)
		if err != nil {
			return nil, wrap(err, "%s: load %s", s, key)
		}
		return img, nil
	}
	return nil, errs.New(errs.ErrCodeInvalidParameterType, "%s: %q must be an image reference, got %T", s, key, v)
}

func (s *Image) size() ([2]float64, error) {
	v, err := s.memo("@size", func() (any, error) {
		src, err := s.Source()
		if err != nil {
			return nil, err
		}
		b := src.Bounds()
		sw, sh := float64(b.Dx()), float64(b.Dy())
		if sw == 0 || sh == 0 {
			return nil, errs.New(errs.ErrCodeConfiguration, "%s: source image is empty", s)
		}
		w, hasW, err := s.ExplicitSize(0)
		if err != nil {
			return nil, err
		}
		h, hasH, err := s.ExplicitSize(1)
		if err != nil {
			return nil, err
		}
		keep, err := s.Bool("keep_aspect", Default(true))
		if err != nil {
			return nil, err
		}
		switch {
		case !hasW && !hasH:
			return [2]float64{sw, sh}, nil
		case hasW && !hasH:
			if keep {
				return [2]float64{w, w * sh / sw}, nil
			}
			return [2]float64{w, sh}, nil
		case !hasW && hasH:
			if keep {
				return [2]float64{h * sw / sh, h}, nil
			}
			return [2]float64{sw, h}, nil
		}
		if keep {
			scale := min(w/sw, h/sh)
			return [2]float64{sw * scale, sh * scale}, nil
		}
		return [2]float64{w, h}, nil
	})
	if err != nil {
		return [2]float64{}, err
	}
	return v.([2]float64), nil
}

func (s *Image) ResolveWidth() (float64, error) {
	sz, err := s.size()
	return sz[0], err
}

func (s *Image) ResolveHeight() (float64, error) {
	sz, err := s.size()
	return sz[1], err
}

// Pixels returns the source resized to the draw box with mask and
// multiply color applied.
func (s *Image) Pixels() (*image.NRGBA, error) {
	v, err := s.memo("@pixels", func() (any, error) {
		src, err := s.Source()
		if err != nil {
			return nil, err
		}
		box, err := s.DrawRect()
		if err != nil {
			return nil, err
		}
		w, h := int(math.Round(box.Width)), int(math.Round(box.Height))
		if w <= 0 || h <= 0 {
			return (*image.NRGBA)(nil), nil
		}
		img := imaging.Resize(src, w, h, imaging.Lanczos)

		if _, ok := s.Raw("multiply_color"); ok {
			c, err := s.Color("multiply_color")
			if err != nil {
				return nil, err
			}
			multiply(img, c)
		}
		if _, ok := s.Raw("mask"); ok {
			m, err := s.load("mask", false)
			if err != nil {
				return nil, err
			}
			applyMask(img, imaging.Grayscale(imaging.Resize(m, w, h, imaging.Lanczos)))
		}
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*image.NRGBA), nil
}

func (s *Image) Draw(l Layer) error {
	img, err := s.Pixels()
	if err != nil || img == nil {
		return err
	}
	box, err := s.DrawRect()
	if err != nil {
		return err
	}
	t, err := s.Number("transparency", Default(0.0))
	if err != nil {
		return err
	}
	opacity := 1 - math.Max(0, math.Min(1, t))
	return l.DrawImage(img, box, opacity)
}

func multiply(img *image.NRGBA, c color.Color) {
	m := color.NRGBAModel.Convert(c).(color.NRGBA)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(uint16(img.Pix[i]) * uint16(m.R) / 255)
		img.Pix[i+1] = uint8(uint16(img.Pix[i+1]) * uint16(m.G) / 255)
		img.Pix[i+2] = uint8(uint16(img.Pix[i+2]) * uint16(m.B) / 255)
		img.Pix[i+3] = uint8(uint16(img.Pix[i+3]) * uint16(m.A) / 255)
	}
}

// applyMask scales img's alpha by the mask's gray level. Both images have
// the same size and zero origin.
func applyMask(img, mask *image.NRGBA) {
	for i := 0; i+3 < len(img.Pix) && i < len(mask.Pix); i += 4 {
		img.Pix[i+3] = uint8(uint16(img.Pix[i+3]) * uint16(mask.Pix[i]) / 255)
	}
}
