package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/tstromberg/photomark/pkg/exifmeta"
	"github.com/tstromberg/photomark/pkg/watermark"
)

const (
	magickBarFill  = "rgba(0,0,0,0.55)"
	magickTextFill = "white"
)

// Magick shells out to ImageMagick.
type Magick struct {
	convert  []string
	identify []string
	font     string
	quality  int
}

// NewMagick locates ImageMagick 7 ("magick"), falling back to the version 6 "convert" and "identify" commands.
func NewMagick(o Options) (*Magick, error) {
	m := &Magick{font: o.Font, quality: o.Quality}
	if m.quality <= 0 {
		m.quality = DefaultQuality
	}

	if o.MagickBinary != "" {
		m.convert = []string{o.MagickBinary}
		m.identify = []string{o.MagickBinary, "identify"}
		return m, nil
	}

	if p, err := exec.LookPath("magick"); err == nil {
		m.convert = []string{p}
		m.identify = []string{p, "identify"}
		return m, nil
	}

	c, err := exec.LookPath("convert")
	if err != nil {
		return nil, &UnavailableError{Tool: "imagemagick", Err: err}
	}
	i, err := exec.LookPath("identify")
	if err != nil {
		return nil, &UnavailableError{Tool: "imagemagick", Err: err}
	}
	m.convert = []string{c}
	m.identify = []string{i}
	return m, nil
}

// Check implements Toolchain.
func (m *Magick) Check(ctx context.Context) error {
	out, err := run(ctx, append(m.convert, "-version"))
	if err != nil {
		return &UnavailableError{Tool: m.convert[0], Err: err}
	}
	klog.V(1).Infof("using %s", strings.SplitN(string(out), "\n", 2)[0])
	return nil
}

// Close implements io.Closer.
func (m *Magick) Close() error { return nil }

// fieldFormat asks identify for one EXIF property per line, in exifmeta.FieldNames order.
func fieldFormat() string {
	ps := make([]string, len(exifmeta.FieldNames))
	for i, n := range exifmeta.FieldNames {
		ps[i] = "%[EXIF:" + n + "]"
	}
	return strings.Join(ps, `\n`)
}

// Fields implements exifmeta.Source.
func (m *Magick) Fields(ctx context.Context, path string) (exifmeta.Fields, error) {
	out, err := run(ctx, append(m.identify, "-format", fieldFormat(), firstFrame(path)))
	if err != nil {
		return nil, stepErr(StepFields, path, err)
	}
	return parseFields(out), nil
}

func parseFields(out []byte) exifmeta.Fields {
	fs := exifmeta.Fields{}
	lines := strings.Split(strings.ReplaceAll(string(out), "\r\n", "\n"), "\n")
	for i, n := range exifmeta.FieldNames {
		if i >= len(lines) {
			break
		}
		if v := strings.TrimSpace(lines[i]); v != "" {
			fs[n] = v
		}
	}
	return fs
}

// Probe implements watermark.Renderer.
func (m *Magick) Probe(ctx context.Context, path string) (watermark.Dimensions, error) {
	out, err := run(ctx, append(m.identify, "-format", "%w %h", firstFrame(path)))
	if err != nil {
		return watermark.Dimensions{}, stepErr(StepProbe, path, err)
	}
	d, err := parseDimensions(out)
	return d, stepErr(StepProbe, path, err)
}

func parseDimensions(out []byte) (watermark.Dimensions, error) {
	fs := strings.Fields(string(out))
	if len(fs) < 2 {
		return watermark.Dimensions{}, fmt.Errorf("unexpected identify output %q", out)
	}
	w, err := strconv.Atoi(fs[0])
	if err != nil {
		return watermark.Dimensions{}, fmt.Errorf("width: %w", err)
	}
	h, err := strconv.Atoi(fs[1])
	if err != nil {
		return watermark.Dimensions{}, fmt.Errorf("height: %w", err)
	}
	if w <= 0 || h <= 0 {
		return watermark.Dimensions{}, fmt.Errorf("empty image: %dx%d", w, h)
	}
	return watermark.Dimensions{Width: w, Height: h}, nil
}

// Normalize implements Toolchain.
func (m *Magick) Normalize(ctx context.Context, src, dst string) error {
	_, err := run(ctx, append(m.convert, firstFrame(src), "-auto-orient", "-strip", dst))
	return stepErr(StepNormalize, src, err)
}

// Resize implements Toolchain.
func (m *Magick) Resize(ctx context.Context, src, dst string, b Box, quality int) error {
	if quality <= 0 {
		quality = m.quality
	}
	_, err := run(ctx, append(m.convert, resizeArgs(src, dst, b, quality)...))
	return stepErr(StepResize, src, err)
}

func resizeArgs(src, dst string, b Box, quality int) []string {
	return []string{
		firstFrame(src),
		"-resize", fmt.Sprintf("%dx%d>", b.Width, b.Height),
		"-quality", strconv.Itoa(quality),
		dst,
	}
}

// Composite implements watermark.Renderer.
func (m *Magick) Composite(ctx context.Context, src, dst string, o watermark.Overlay) error {
	_, err := run(ctx, append(m.convert, compositeArgs(src, dst, o, m.font, m.quality)...))
	return stepErr(StepComposite, src, err)
}

func compositeArgs(src, dst string, o watermark.Overlay, font string, quality int) []string {
	args := []string{
		firstFrame(src),
		"-fill", magickBarFill,
		"-draw", fmt.Sprintf("rectangle 0,%d %d,%d", o.BarTop, o.Width-1, o.Height-1),
	}
	if font != "" {
		args = append(args, "-font", font)
	}
	return append(args,
		"-fill", magickTextFill,
		"-pointsize", strconv.Itoa(o.PointSize),
		"-gravity", "SouthWest",
		"-draw", fmt.Sprintf("text %d,%d '%s'", o.Margin, o.TextOffset, watermark.Escape(o.Text)),
		"-quality", strconv.Itoa(quality),
		dst,
	)
}

func firstFrame(path string) string {
	return path + "[0]"
}

func run(ctx context.Context, argv []string) ([]byte, error) {
	klog.V(2).Infof("exec: %q", argv)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w\noutput: %s", argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
