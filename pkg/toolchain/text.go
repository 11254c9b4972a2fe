package toolchain

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"k8s.io/klog/v2"

	"github.com/tstromberg/photomark/pkg/watermark"
)

var (
	barColor  = color.NRGBA{R: 0, G: 0, B: 0, A: 140}
	textColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

type textDrawer struct {
	font *opentype.Font
}

// newTextDrawer loads a TrueType font from path, or Go Regular if path is empty.
func newTextDrawer(path string) (*textDrawer, error) {
	ttf := goregular.TTF
	if path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		ttf = bs
	}

	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &textDrawer{font: f}, nil
}

// overlay draws the translucent bar and text of o onto a copy of img.
func (td *textDrawer) overlay(img image.Image, o watermark.Overlay) (*image.RGBA, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	// The geometry was computed from a probe of the same file; clamp anyway.
	top := min(max(0, o.BarTop), h)
	draw.Draw(dst, image.Rect(0, top, w, h), image.NewUniform(barColor), image.Point{}, draw.Over)

	face, err := opentype.NewFace(td.font, &opentype.FaceOptions{
		Size:    float64(o.PointSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	defer face.Close()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(o.Margin, h-o.TextOffset),
	}
	d.DrawString(td.printable(o.Text))

	return dst, nil
}

// printable drops runes the font has no glyph for, such as emoji.
func (td *textDrawer) printable(s string) string {
	var buf sfnt.Buffer
	var sb strings.Builder
	for _, r := range s {
		gi, err := td.font.GlyphIndex(&buf, r)
		if err != nil || gi == 0 {
			klog.V(2).Infof("no glyph for %q", r)
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimLeft(sb.String(), " ")
}
