// Package pipeline turns source photos into watermarked full-size images and thumbnails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"
	"k8s.io/klog/v2"

	"github.com/tstromberg/photomark/pkg/exifmeta"
	"github.com/tstromberg/photomark/pkg/toolchain"
	"github.com/tstromberg/photomark/pkg/watermark"
)

var (
	// FullBox bounds the watermarked full-size tier.
	FullBox = toolchain.Box{Width: 1024, Height: 1024}
	// ThumbBox bounds the thumbnail tier.
	ThumbBox = toolchain.Box{Width: 512, Height: 512}
)

const (
	// FallbackQuality is the JPEG quality used when resizing straight from the original.
	FallbackQuality = 85
	// ThumbPointSize is the fixed watermark size for fallback thumbnails.
	ThumbPointSize = 12

	placeholderPrefix = "ERROR PROCESSING: "
)

// Outcome is how processing of one source ended.
type Outcome int

const (
	// Success means the primary path produced both tiers.
	Success Outcome = iota
	// FallbackSuccess means the primary path failed and the fallback produced both tiers.
	FallbackSuccess
	// Failure means both paths failed and placeholders were written.
	Failure
	// Skipped means the outputs were already up to date.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case FallbackSuccess:
		return "fallback"
	case Failure:
		return "failure"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result describes the processing of one source.
type Result struct {
	Source  string
	Full    string
	Thumb   string
	Outcome Outcome
	Record  exifmeta.Record
	// Err is the primary path error for FallbackSuccess, and the fallback error for Failure.
	Err error
}

// Processor runs the per-file state machine against a toolchain.
type Processor struct {
	c  *Config
	tc toolchain.Toolchain
}

// New returns a Processor writing into the directories named by c.
func New(c *Config, tc toolchain.Toolchain) *Processor {
	return &Processor{c: c, tc: tc}
}

// Process produces both tiers for src. Failures never escape: they end up in the Result.
func (p *Processor) Process(ctx context.Context, src string) Result {
	base := filepath.Base(src)
	r := Result{
		Source: src,
		Full:   filepath.Join(p.c.FullDir, base),
		Thumb:  filepath.Join(p.c.ThumbDir, base),
	}

	if !p.c.Force && upToDate(src, r.Full, r.Thumb) {
		klog.V(1).Infof("%s is up to date", src)
		r.Outcome = Skipped
		return r
	}

	// Read before anything touches the file: normalizing strips what we are reading.
	r.Record = exifmeta.Read(ctx, p.tc, src)

	perr := p.primary(ctx, src, r.Full, r.Thumb, r.Record)
	if perr == nil {
		r.Outcome = Success
		return r
	}
	klog.Warningf("primary processing of %s failed, trying fallback: %v", base, perr)

	rec, ferr := p.fallback(ctx, src, r.Full, r.Thumb)
	r.Record = rec
	if ferr == nil {
		r.Outcome = FallbackSuccess
		r.Err = perr
		return r
	}
	klog.Errorf("fallback processing of %s failed: %v", base, ferr)

	r.Outcome = Failure
	r.Err = ferr
	for _, dst := range []string{r.Full, r.Thumb} {
		if err := writePlaceholder(dst, base, ferr); err != nil {
			klog.Errorf("unable to write placeholder %s: %v", dst, err)
		}
	}
	return r
}

// scratch holds the intermediate files of one primary attempt, named after the source.
type scratch struct {
	orig, norm, full, thumb string
}

func newScratch(dir, src string) scratch {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := func(tag string) string {
		return filepath.Join(dir, fmt.Sprintf("%s.%s%s", stem, tag, ext))
	}
	return scratch{orig: name("orig"), norm: name("norm"), full: name("full"), thumb: name("thumb")}
}

func (s scratch) remove() {
	for _, p := range []string{s.orig, s.norm, s.full, s.thumb} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			klog.Warningf("unable to remove %s: %v", p, err)
		}
	}
}

// primary normalizes a scratch copy of src, resizes it into both tiers, and watermarks the full tier.
func (p *Processor) primary(ctx context.Context, src, full, thumb string, rec exifmeta.Record) error {
	if err := os.MkdirAll(p.c.TempDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	s := newScratch(p.c.TempDir, src)
	defer s.remove()

	if err := copy.Copy(src, s.orig); err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	d, err := p.tc.Probe(ctx, s.orig)
	if err != nil {
		return err
	}
	klog.V(1).Infof("%s: %dx%d", src, d.Width, d.Height)

	if err := p.tc.Normalize(ctx, s.orig, s.norm); err != nil {
		return err
	}

	if err := p.tc.Resize(ctx, s.norm, s.full, FullBox, p.c.Quality); err != nil {
		return err
	}

	if err := p.tc.Resize(ctx, s.norm, s.thumb, ThumbBox, p.c.Quality); err != nil {
		return err
	}

	if err := watermark.Apply(ctx, p.tc, s.full, full, rec, 0); err != nil {
		return fmt.Errorf("watermark: %w", err)
	}

	if err := copy.Copy(s.thumb, thumb); err != nil {
		return fmt.Errorf("copy thumb: %w", err)
	}

	return nil
}

// fallback resizes the untouched original straight into both tiers and watermarks each of them.
// Metadata is read again rather than reused from the primary attempt.
func (p *Processor) fallback(ctx context.Context, src, full, thumb string) (exifmeta.Record, error) {
	rec := exifmeta.Read(ctx, p.tc, src)

	if err := p.tc.Resize(ctx, src, full, FullBox, FallbackQuality); err != nil {
		return rec, err
	}

	if err := p.tc.Resize(ctx, src, thumb, ThumbBox, FallbackQuality); err != nil {
		return rec, err
	}

	if err := watermark.Apply(ctx, p.tc, full, full, rec, 0); err != nil {
		return rec, fmt.Errorf("watermark full: %w", err)
	}

	if err := watermark.Apply(ctx, p.tc, thumb, thumb, rec, ThumbPointSize); err != nil {
		return rec, fmt.Errorf("watermark thumb: %w", err)
	}

	return rec, nil
}

// Placeholder returns the text written in place of an image that could not be produced.
func Placeholder(name string, err error) string {
	return fmt.Sprintf("%s%s\n%v", placeholderPrefix, name, err)
}

func writePlaceholder(path, name string, err error) error {
	return os.WriteFile(path, []byte(Placeholder(name, err)), 0o644)
}

// isPlaceholder reports whether path holds placeholder text rather than an image.
func isPlaceholder(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, len(placeholderPrefix))
	n, _ := f.Read(buf)
	return string(buf[:n]) == placeholderPrefix
}

// upToDate reports whether both outputs exist, are newer than src, and are real images.
func upToDate(src string, outs ...string) bool {
	sst, err := os.Stat(src)
	if err != nil {
		return false
	}

	for _, o := range outs {
		dst, err := os.Stat(o)
		if err != nil {
			klog.V(2).Infof("updating %s: does not exist", o)
			return false
		}
		if sst.ModTime().After(dst.ModTime()) {
			klog.V(1).Infof("updating %s: source newer", o)
			return false
		}
		if isPlaceholder(o) {
			klog.V(1).Infof("updating %s: previous attempt failed", o)
			return false
		}
	}
	return true
}

// Summary counts outcomes across a run.
type Summary struct {
	Results []Result
	Counts  map[Outcome]int
}

// Run processes every source image in c.InDir, one at a time.
// It returns an error only when the run cannot start; per-file failures are in the Summary.
func Run(ctx context.Context, c *Config, tc toolchain.Toolchain) (*Summary, error) {
	if err := tc.Check(ctx); err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}

	for _, d := range []string{c.FullDir, c.ThumbDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}

	srcs, err := Find(c.InDir)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	klog.Infof("processing %d images: %s -> %s, %s", len(srcs), c.InDir, c.FullDir, c.ThumbDir)

	p := New(c, tc)
	s := &Summary{Counts: map[Outcome]int{}}
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		r := p.Process(ctx, src)
		klog.Infof("%s: %s", filepath.Base(src), r.Outcome)
		s.Results = append(s.Results, r)
		s.Counts[r.Outcome]++
	}

	klog.Infof("done: %d ok, %d via fallback, %d failed, %d skipped",
		s.Counts[Success], s.Counts[FallbackSuccess], s.Counts[Failure], s.Counts[Skipped])
	return s, nil
}

// IsUnavailable reports whether err means the toolchain cannot run at all.
func IsUnavailable(err error) bool {
	return errors.Is(err, toolchain.ErrUnavailable)
}
