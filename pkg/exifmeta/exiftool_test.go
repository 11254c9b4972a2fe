package exifmeta

import (
	"testing"

	"github.com/barasher/go-exiftool"
	"github.com/google/go-cmp/cmp"
)

func TestExiftoolFields(t *testing.T) {
	cases := []struct {
		name string
		in   map[string]interface{}
		want Record
	}{
		{
			name: "empty",
			in:   map[string]interface{}{},
			want: Record{Model: "Camera"},
		},
		{
			name: "direct values",
			in: map[string]interface{}{
				"Model":        "Canon EOS R5",
				"FNumber":      4.0,
				"ExposureTime": 0.004,
				"ISO":          float64(800),
			},
			want: Record{Model: "Canon EOS R5", FNumber: "4", Exposure: "1/250", ISO: "800"},
		},
		{
			name: "converted apex values map back",
			in: map[string]interface{}{
				"ApertureValue":     2.8,
				"ShutterSpeedValue": 0.004,
			},
			want: Record{Model: "Camera", FNumber: "2.8", Exposure: "1/250"},
		},
		{
			name: "long apex shutter",
			in:   map[string]interface{}{"ShutterSpeedValue": "2"},
			want: Record{Model: "Camera", Exposure: "2s"},
		},
		{
			name: "non-positive apex values are ignored",
			in:   map[string]interface{}{"ApertureValue": 0.0, "ShutterSpeedValue": -1.0},
			want: Record{Model: "Camera"},
		},
		{
			name: "iso speed is the second candidate",
			in:   map[string]interface{}{"ISOSpeed": "3200"},
			want: Record{Model: "Camera", ISO: "3200"},
		},
		{
			name: "iso wins over iso speed",
			in:   map[string]interface{}{"ISO": "100", "ISOSpeed": "3200"},
			want: Record{Model: "Camera", ISO: "100"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := exiftoolFields(exiftool.FileMetadata{File: "a.jpg", Fields: tc.in})
			if diff := cmp.Diff(tc.want, Resolve(fs)); diff != "" {
				t.Errorf("Resolve(exiftoolFields()) mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExiftoolFieldsApexUnits(t *testing.T) {
	fs := exiftoolFields(exiftool.FileMetadata{Fields: map[string]interface{}{
		"ApertureValue":     4.0,
		"ShutterSpeedValue": 0.125,
	}})
	want := Fields{ApertureValue: "4", ShutterSpeedValue: "3"}
	if diff := cmp.Diff(want, fs); diff != "" {
		t.Errorf("exiftoolFields() mismatch (-want +got):\n%s", diff)
	}
}
