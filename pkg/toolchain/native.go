package toolchain

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/HugoSmits86/nativewebp"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"k8s.io/klog/v2"

	"github.com/tstromberg/photomark/pkg/exifmeta"
	"github.com/tstromberg/photomark/pkg/watermark"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 92

// Native processes images in-process with bild.
type Native struct {
	src     exifmeta.Source
	closer  io.Closer
	text    *textDrawer
	quality int
}

// NewNative returns an in-process toolchain.
func NewNative(o Options) (*Native, error) {
	td, err := newTextDrawer(o.Font)
	if err != nil {
		return nil, &UnavailableError{Tool: "font", Err: err}
	}

	n := &Native{
		src:     exifmeta.GoexifSource{},
		text:    td,
		quality: o.Quality,
	}
	if n.quality <= 0 {
		n.quality = DefaultQuality
	}

	switch o.Metadata {
	case "", MetadataGoexif:
	case MetadataExiftool:
		es, err := exifmeta.NewExiftoolSource()
		if err != nil {
			return nil, &UnavailableError{Tool: "exiftool", Err: err}
		}
		n.src = es
		n.closer = es
	default:
		return nil, fmt.Errorf("unknown metadata source %q", o.Metadata)
	}

	return n, nil
}

// Check implements Toolchain.
func (n *Native) Check(_ context.Context) error {
	if n.text == nil {
		return &UnavailableError{Tool: "font", Err: fmt.Errorf("no font loaded")}
	}
	return nil
}

// Close releases the metadata source.
func (n *Native) Close() error {
	if n.closer == nil {
		return nil
	}
	return n.closer.Close()
}

// Fields implements exifmeta.Source.
func (n *Native) Fields(ctx context.Context, path string) (exifmeta.Fields, error) {
	fs, err := n.src.Fields(ctx, path)
	return fs, stepErr(StepFields, path, err)
}

// Probe implements watermark.Renderer.
func (n *Native) Probe(_ context.Context, path string) (watermark.Dimensions, error) {
	d, err := probe(path)
	return d, stepErr(StepProbe, path, err)
}

func probe(path string) (watermark.Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return watermark.Dimensions{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	ic, _, err := image.DecodeConfig(f)
	if err != nil {
		return watermark.Dimensions{}, fmt.Errorf("unable to decode: %w", err)
	}
	if ic.Width == 0 || ic.Height == 0 {
		return watermark.Dimensions{}, fmt.Errorf("empty image: %dx%d", ic.Width, ic.Height)
	}

	return watermark.Dimensions{Width: ic.Width, Height: ic.Height}, nil
}

// Normalize implements Toolchain. Re-encoding the pixels leaves all metadata behind.
func (n *Native) Normalize(_ context.Context, src, dst string) error {
	img, err := imgio.Open(src)
	if err != nil {
		return stepErr(StepNormalize, src, fmt.Errorf("imgio.Open: %w", err))
	}

	o := exifmeta.Orientation(src)
	klog.V(1).Infof("normalizing %s (orientation %d) -> %s", src, o, dst)

	return stepErr(StepNormalize, dst, save(dst, orient(img, o), n.quality))
}

// Resize implements Toolchain.
func (n *Native) Resize(_ context.Context, src, dst string, b Box, quality int) error {
	img, err := imgio.Open(src)
	if err != nil {
		return stepErr(StepResize, src, fmt.Errorf("imgio.Open: %w", err))
	}

	if img.Bounds().Dy() == 0 {
		return stepErr(StepResize, src, fmt.Errorf("no Y for %+v", img.Bounds()))
	}

	if img.Bounds().Dx() == 0 {
		return stepErr(StepResize, src, fmt.Errorf("no X for %+v", img.Bounds()))
	}

	x, y := fit(img.Bounds().Dx(), img.Bounds().Dy(), b)
	klog.V(1).Infof("resizing %s %+v -> %dx%d: %s", src, img.Bounds(), x, y, dst)

	if x != img.Bounds().Dx() || y != img.Bounds().Dy() {
		img = transform.Resize(img, x, y, transform.Lanczos)
	}

	if quality <= 0 {
		quality = n.quality
	}
	return stepErr(StepResize, dst, save(dst, img, quality))
}

// Composite implements watermark.Renderer.
func (n *Native) Composite(_ context.Context, src, dst string, o watermark.Overlay) error {
	img, err := imgio.Open(src)
	if err != nil {
		return stepErr(StepComposite, src, fmt.Errorf("imgio.Open: %w", err))
	}

	out, err := n.text.overlay(img, o)
	if err != nil {
		return stepErr(StepComposite, src, err)
	}
	return stepErr(StepComposite, dst, save(dst, out, n.quality))
}

// fit returns the largest size within b with the aspect ratio of w×h.
func fit(w, h int, b Box) (int, int) {
	if w <= b.Width && h <= b.Height {
		return w, h
	}
	scale := math.Min(float64(b.Width)/float64(w), float64(b.Height)/float64(h))
	return max(1, int(math.Round(float64(w)*scale))), max(1, int(math.Round(float64(h)*scale)))
}

func save(path string, img image.Image, quality int) error {
	enc, err := encoder(path, quality)
	if err != nil {
		return err
	}
	if err := imgio.Save(path, img, enc); err != nil {
		klog.Errorf("save failed: %s", err)
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func encoder(path string, quality int) (imgio.Encoder, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg":
		return imgio.JPEGEncoder(quality), nil
	case ".png":
		return imgio.PNGEncoder(), nil
	case ".gif":
		return func(w io.Writer, img image.Image) error {
			return gif.Encode(w, img, nil)
		}, nil
	case ".webp":
		// Lossless only: quality does not apply.
		return func(w io.Writer, img image.Image) error {
			return nativewebp.Encode(w, img, nil)
		}, nil
	default:
		return nil, fmt.Errorf("no encoder for %q", ext)
	}
}
