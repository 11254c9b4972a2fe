package exifmeta

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/barasher/go-exiftool"
	"k8s.io/klog/v2"
)

// ExiftoolSource reads metadata through a long-running exiftool process.
type ExiftoolSource struct {
	et *exiftool.Exiftool
}

// NewExiftoolSource starts exiftool. Callers must Close the source.
func NewExiftoolSource() (*ExiftoolSource, error) {
	et, err := exiftool.NewExiftool(exiftool.NoPrintConversion())
	if err != nil {
		return nil, fmt.Errorf("exiftool: %w", err)
	}
	return &ExiftoolSource{et: et}, nil
}

// Close stops the exiftool process.
func (s *ExiftoolSource) Close() error {
	return s.et.Close()
}

// Fields implements Source.
func (s *ExiftoolSource) Fields(_ context.Context, path string) (Fields, error) {
	fis := s.et.ExtractMetadata(path)
	if len(fis) == 0 {
		return nil, fmt.Errorf("extract %q: no result", path)
	}
	fi := fis[0]
	if fi.Err != nil {
		return nil, fmt.Errorf("extract fail for %q: %w", path, fi.Err)
	}

	for k, v := range fi.Fields {
		klog.V(3).Infof("%q=%v", k, v)
	}
	return exiftoolFields(fi), nil
}

// exiftoolFields maps exiftool's tag names onto Fields.
//
// exiftool converts APEX tags to f-stops and seconds even with print conversion
// disabled, so ApertureValue and ShutterSpeedValue are mapped back to APEX units.
func exiftoolFields(fi exiftool.FileMetadata) Fields {
	fs := Fields{}

	if m, err := fi.GetString("Model"); err == nil {
		fs[Model] = m
	}

	if n, err := fi.GetFloat("FNumber"); err == nil {
		fs[FNumber] = formatFloat(n)
	}

	if n, err := fi.GetFloat("ApertureValue"); err == nil && n > 0 {
		fs[ApertureValue] = formatFloat(2 * math.Log2(n))
	}

	if t, err := fi.GetFloat("ExposureTime"); err == nil {
		fs[ExposureTime] = formatFloat(t)
	}

	if t, err := fi.GetFloat("ShutterSpeedValue"); err == nil && t > 0 {
		fs[ShutterSpeedValue] = formatFloat(-math.Log2(t))
	}

	if iso, err := fi.GetString("ISO"); err == nil {
		fs[ISOSpeedRatings] = iso
	}

	if iso, err := fi.GetString("ISOSpeed"); err == nil {
		fs[PhotographicSensitivity] = iso
	}

	return fs
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
