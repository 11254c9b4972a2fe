package exifmeta

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// GoexifSource reads EXIF tags in-process. Rational tags are reported raw as "a/b".
type GoexifSource struct{}

var goexifFields = map[string]exif.FieldName{
	Model:             exif.Model,
	FNumber:           exif.FNumber,
	ApertureValue:     exif.ApertureValue,
	ExposureTime:      exif.ExposureTime,
	ShutterSpeedValue: exif.ShutterSpeedValue,
	ISOSpeedRatings:   exif.ISOSpeedRatings,
	// EXIF 2.3 renamed tag 0x8827; goexif only knows the old name.
}

// Fields implements Source.
func (GoexifSource) Fields(_ context.Context, path string) (Fields, error) {
	x, err := decodeExif(path)
	if err != nil {
		return nil, err
	}

	fs := Fields{}
	for name, fn := range goexifFields {
		if v := tagString(x, fn); v != "" {
			fs[name] = v
		}
	}
	return fs, nil
}

// Orientation returns the EXIF orientation (1-8) of the image at path, or 1 if unknown.
func Orientation(path string) int {
	x, err := decodeExif(path)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

func decodeExif(path string) (*exif.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return nil, fmt.Errorf("decode exif %q: %w", path, err)
	}
	return x, nil
}

func tagString(x *exif.Exif, fn exif.FieldName) string {
	tag, err := x.Get(fn)
	if err != nil {
		return ""
	}

	if num, den, err := tag.Rat2(0); err == nil {
		return fmt.Sprintf("%d/%d", num, den)
	}
	if i, err := tag.Int(0); err == nil {
		return strconv.Itoa(i)
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}
