// Package exifmeta extracts camera settings from image metadata for display.
package exifmeta

import (
	"context"
	"math"
	"strings"

	"k8s.io/klog/v2"
)

// Candidate field names, queried together in a single pass.
const (
	Model                   = "Model"
	FNumber                 = "FNumber"
	ApertureValue           = "ApertureValue"
	ExposureTime            = "ExposureTime"
	ShutterSpeedValue       = "ShutterSpeedValue"
	ISOSpeedRatings         = "ISOSpeedRatings"
	PhotographicSensitivity = "PhotographicSensitivity"
)

// FieldNames lists every field a Source is asked for.
var FieldNames = []string{
	Model,
	FNumber,
	ApertureValue,
	ExposureTime,
	ShutterSpeedValue,
	ISOSpeedRatings,
	PhotographicSensitivity,
}

// DefaultModel is shown when no camera model can be found.
const DefaultModel = "Camera"

// Fields holds raw metadata values keyed by field name. Missing fields are absent or empty.
type Fields map[string]string

// Source extracts raw metadata fields from an image file.
type Source interface {
	Fields(ctx context.Context, path string) (Fields, error)
}

// Record is the display-ready camera metadata for one image.
type Record struct {
	Model    string
	FNumber  string
	Exposure string
	ISO      string
}

// Read extracts a Record from path. It never fails: unreadable metadata yields the default record.
func Read(ctx context.Context, src Source, path string) Record {
	fs, err := src.Fields(ctx, path)
	if err != nil {
		klog.V(1).Infof("unable to read metadata for %s: %v", path, err)
		fs = Fields{}
	}

	for _, k := range FieldNames {
		klog.V(2).Infof("%s: %q=%q", path, k, fs[k])
	}

	return Resolve(fs)
}

// Resolve turns raw fields into a Record, applying APEX conversions where direct values are missing.
func Resolve(fs Fields) Record {
	r := Record{
		Model:    strings.TrimSpace(fs[Model]),
		FNumber:  resolveFNumber(fs),
		Exposure: resolveExposure(fs),
		ISO:      firstNonEmpty(fs[ISOSpeedRatings], fs[PhotographicSensitivity]),
	}
	if r.Model == "" {
		r.Model = DefaultModel
	}
	return r
}

func resolveFNumber(fs Fields) string {
	if n, ok := positive(ParseValue(fs[FNumber])); ok {
		return oneDecimal(n)
	}

	av, ok := ParseValue(fs[ApertureValue]).Float()
	if !ok {
		return ""
	}
	return oneDecimal(math.Pow(math.Sqrt2, av))
}

func resolveExposure(fs Fields) string {
	// Cameras write "0/1" when the exposure is unknown.
	v := ParseValue(fs[ExposureTime])
	if t, ok := positive(v); ok {
		if v.Kind() == Rational {
			return v.String()
		}
		return formatSeconds(t)
	}

	tv, ok := ParseValue(fs[ShutterSpeedValue]).Float()
	if !ok {
		return ""
	}
	return formatSeconds(math.Pow(2, -tv))
}

// positive returns the value of v if it is a number greater than zero.
func positive(v Value) (float64, bool) {
	x, ok := v.Float()
	if !ok || x <= 0 {
		return 0, false
	}
	return x, true
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
