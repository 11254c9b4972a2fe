// Package watermark lays out the camera-settings bar burned onto full-size images.
package watermark

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tstromberg/photomark/pkg/exifmeta"
	"k8s.io/klog/v2"
)

const (
	// Margin is the left inset of the text, in pixels.
	Margin = 20

	// Separator joins the text fragments.
	Separator = "   "

	minPointSize = 14
	minBarHeight = 50
)

// Dimensions are the pixel dimensions of an image.
type Dimensions struct {
	Width  int
	Height int
}

// Geometry is the bar and text placement for one image.
type Geometry struct {
	PointSize int
	BarHeight int
	// BarTop is the y coordinate of the bar's upper edge.
	BarTop int
	// TextOffset is the distance from the bottom of the image to the text baseline.
	TextOffset int
	Margin     int
}

// Overlay is everything a Renderer needs to draw the bar.
type Overlay struct {
	Dimensions
	Geometry
	Text string
}

// Renderer probes and draws onto image files.
type Renderer interface {
	Probe(ctx context.Context, path string) (Dimensions, error)
	Composite(ctx context.Context, src, dst string, o Overlay) error
}

// Layout computes the bar geometry for an image. A pointSize above zero overrides the width-based size.
func Layout(d Dimensions, pointSize int) Geometry {
	ps := pointSize
	if ps <= 0 {
		ps = max(minPointSize, round(float64(d.Width)*0.028))
	}
	bar := max(minBarHeight, round(float64(ps)*2.2))

	return Geometry{
		PointSize:  ps,
		BarHeight:  bar,
		BarTop:     max(0, d.Height-bar),
		TextOffset: round(float64(bar) * 0.35),
		Margin:     Margin,
	}
}

// Fragments returns the displayed pieces of r, omitting empty fields.
func Fragments(r exifmeta.Record) []string {
	model := r.Model
	if model == "" {
		model = exifmeta.DefaultModel
	}

	fs := []string{"📷 " + model}
	if r.FNumber != "" {
		fs = append(fs, "● f/"+r.FNumber)
	}
	if r.Exposure != "" {
		fs = append(fs, "● "+r.Exposure)
	}
	if r.ISO != "" {
		fs = append(fs, "● ISO "+r.ISO)
	}
	return fs
}

// Text returns the single display line for r.
func Text(r exifmeta.Record) string {
	return strings.Join(Fragments(r), Separator)
}

var escaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `"`, `\"`)

// Escape backslash-escapes characters that would terminate a quoted drawing string.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Apply burns the metadata bar for r onto src, writing dst. src and dst may be the same file.
func Apply(ctx context.Context, rr Renderer, src, dst string, r exifmeta.Record, pointSize int) error {
	d, err := rr.Probe(ctx, src)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	o := Overlay{
		Dimensions: d,
		Geometry:   Layout(d, pointSize),
		Text:       Text(r),
	}
	klog.V(1).Infof("watermark %s (%dx%d): %+v %q", dst, d.Width, d.Height, o.Geometry, o.Text)

	if err := rr.Composite(ctx, src, dst, o); err != nil {
		return fmt.Errorf("composite: %w", err)
	}
	return nil
}

func round(f float64) int {
	return int(math.Round(f))
}
