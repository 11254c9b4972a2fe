// Package toolchain provides the image operations the pipeline is built on.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tstromberg/photomark/pkg/exifmeta"
	"github.com/tstromberg/photomark/pkg/watermark"
)

// Steps, as reported in StepError.
const (
	StepFields    = "fields"
	StepProbe     = "probe"
	StepNormalize = "normalize"
	StepResize    = "resize"
	StepComposite = "composite"
)

// Backend names.
const (
	BackendNative = "native"
	BackendMagick = "magick"
)

// Metadata source names for the native backend.
const (
	MetadataGoexif   = "goexif"
	MetadataExiftool = "exiftool"
)

// Box bounds a resize. Images are shrunk to fit and never enlarged.
type Box struct {
	Width  int
	Height int
}

// Toolchain can read, probe, normalize, resize and annotate image files.
type Toolchain interface {
	exifmeta.Source
	watermark.Renderer

	// Check verifies the toolchain can run at all.
	Check(ctx context.Context) error
	// Normalize applies the EXIF orientation and drops all embedded metadata.
	Normalize(ctx context.Context, src, dst string) error
	// Resize scales src to fit within b, preserving the aspect ratio.
	Resize(ctx context.Context, src, dst string, b Box, quality int) error

	io.Closer
}

// Options configure New.
type Options struct {
	Backend  string
	Metadata string
	// Font is a TrueType file for the native backend, or a font name for ImageMagick.
	Font string
	// Quality is the JPEG quality used when re-encoding.
	Quality int
	// MagickBinary overrides ImageMagick discovery.
	MagickBinary string
}

// New returns the toolchain selected by o.
func New(o Options) (Toolchain, error) {
	switch o.Backend {
	case "", BackendNative:
		return NewNative(o)
	case BackendMagick:
		return NewMagick(o)
	default:
		return nil, fmt.Errorf("unknown toolchain %q", o.Backend)
	}
}

// ErrUnavailable matches every UnavailableError.
var ErrUnavailable = errors.New("image toolchain unavailable")

// UnavailableError means a required tool cannot be invoked at all.
type UnavailableError struct {
	Tool string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Tool, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is reports whether target is ErrUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// StepError is a failed operation on one file.
type StepError struct {
	Step string
	Path string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Step, e.Path, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepErr(step, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Path: path, Err: err}
}
