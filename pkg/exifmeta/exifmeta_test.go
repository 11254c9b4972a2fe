package exifmeta

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tstromberg/photomark/internal/exiftest"
)

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
		want float64
	}{
		{in: "", kind: Unresolved},
		{in: "   ", kind: Unresolved},
		{in: "abc", kind: Unresolved},
		{in: "1/0", kind: Unresolved},
		{in: "x/2", kind: Unresolved},
		{in: "2/", kind: Unresolved},
		{in: "NaN", kind: Unresolved},
		{in: "28/10", kind: Rational, want: 2.8},
		{in: " 1/250 ", kind: Rational, want: 0.004},
		{in: "5.6", kind: Decimal, want: 5.6},
		{in: "400", kind: Decimal, want: 400},
		{in: "-1.5", kind: Decimal, want: -1.5},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			v := ParseValue(tc.in)
			if v.Kind() != tc.kind {
				t.Fatalf("ParseValue(%q).Kind() = %v, want %v", tc.in, v.Kind(), tc.kind)
			}
			got, ok := v.Float()
			if ok != (tc.kind != Unresolved) {
				t.Fatalf("Float() ok = %v", ok)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Float() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		in   Fields
		want Record
	}{
		{
			name: "empty",
			in:   Fields{},
			want: Record{Model: "Camera"},
		},
		{
			name: "direct fields",
			in:   Fields{Model: "Nikon D90", FNumber: "2.8", ExposureTime: "1/250", ISOSpeedRatings: "400"},
			want: Record{Model: "Nikon D90", FNumber: "2.8", Exposure: "1/250", ISO: "400"},
		},
		{
			name: "rational f-number",
			in:   Fields{FNumber: "28/10"},
			want: Record{Model: "Camera", FNumber: "2.8"},
		},
		{
			name: "whole f-number drops .0",
			in:   Fields{FNumber: "80/10"},
			want: Record{Model: "Camera", FNumber: "8"},
		},
		{
			name: "apex aperture",
			in:   Fields{ApertureValue: "3"},
			want: Record{Model: "Camera", FNumber: "2.8"},
		},
		{
			name: "direct f-number wins over apex",
			in:   Fields{FNumber: "4", ApertureValue: "3"},
			want: Record{Model: "Camera", FNumber: "4"},
		},
		{
			name: "unparseable f-number falls back to apex",
			in:   Fields{FNumber: "n/a", ApertureValue: "4"},
			want: Record{Model: "Camera", FNumber: "4"},
		},
		{
			name: "decimal exposure below a second",
			in:   Fields{ExposureTime: "0.004"},
			want: Record{Model: "Camera", Exposure: "1/250"},
		},
		{
			name: "decimal exposure above a second",
			in:   Fields{ExposureTime: "2.5"},
			want: Record{Model: "Camera", Exposure: "2.5s"},
		},
		{
			name: "whole seconds",
			in:   Fields{ExposureTime: "30"},
			want: Record{Model: "Camera", Exposure: "30s"},
		},
		{
			name: "apex shutter speed",
			in:   Fields{ShutterSpeedValue: "8"},
			want: Record{Model: "Camera", Exposure: "1/256"},
		},
		{
			name: "negative apex shutter speed is long exposure",
			in:   Fields{ShutterSpeedValue: "-2"},
			want: Record{Model: "Camera", Exposure: "4s"},
		},
		{
			name: "zero exposure falls back to apex",
			in:   Fields{ExposureTime: "0", ShutterSpeedValue: "1"},
			want: Record{Model: "Camera", Exposure: "1/2"},
		},
		{
			name: "zero rational exposure falls back to apex",
			in:   Fields{ExposureTime: "0/1", ShutterSpeedValue: "8"},
			want: Record{Model: "Camera", Exposure: "1/256"},
		},
		{
			name: "negative rational exposure is dropped",
			in:   Fields{ExposureTime: "-1/250"},
			want: Record{Model: "Camera"},
		},
		{
			name: "zero rational f-number falls back to apex",
			in:   Fields{FNumber: "0/1", ApertureValue: "3"},
			want: Record{Model: "Camera", FNumber: "2.8"},
		},
		{
			name: "zero f-number without apex",
			in:   Fields{FNumber: "0"},
			want: Record{Model: "Camera"},
		},
		{
			name: "iso from second candidate",
			in:   Fields{PhotographicSensitivity: "1600"},
			want: Record{Model: "Camera", ISO: "1600"},
		},
		{
			name: "first iso candidate wins",
			in:   Fields{ISOSpeedRatings: "200", PhotographicSensitivity: "1600"},
			want: Record{Model: "Camera", ISO: "200"},
		},
		{
			name: "blank model",
			in:   Fields{Model: "  "},
			want: Record{Model: "Camera"},
		},
		{
			name: "garbage everywhere",
			in:   Fields{FNumber: "?", ApertureValue: "x", ExposureTime: "/", ShutterSpeedValue: "1/0"},
			want: Record{Model: "Camera"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.in)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApertureValueConversion(t *testing.T) {
	for av := -1.0; av <= 12; av += 0.25 {
		in := strconv.FormatFloat(av, 'f', -1, 64)
		got := Resolve(Fields{ApertureValue: in}).FNumber

		want := strconv.FormatFloat(math.Round(math.Pow(math.Sqrt2, av)*10)/10, 'f', 1, 64)
		want = strings.TrimSuffix(want, ".0")
		if got != want {
			t.Errorf("ApertureValue %s: got f/%s, want f/%s", in, got, want)
		}
	}
}

func TestShutterSpeedValueConversion(t *testing.T) {
	for tv := -5.0; tv <= 13; tv += 0.5 {
		in := strconv.FormatFloat(tv, 'f', -1, 64)
		got := Resolve(Fields{ShutterSpeedValue: in}).Exposure

		secs := math.Pow(2, -tv)
		var want string
		if secs < 1 {
			want = fmt.Sprintf("1/%d", int64(math.Round(1/secs)))
		} else {
			want = strings.TrimSuffix(strconv.FormatFloat(math.Round(secs*10)/10, 'f', 1, 64), ".0") + "s"
		}
		if got != want {
			t.Errorf("ShutterSpeedValue %s: got %q, want %q", in, got, want)
		}
	}
}

type fakeSource struct {
	fields Fields
	err    error
}

func (f fakeSource) Fields(context.Context, string) (Fields, error) {
	return f.fields, f.err
}

func TestReadNeverFails(t *testing.T) {
	got := Read(context.Background(), fakeSource{err: errors.New("boom")}, "x.jpg")
	if diff := cmp.Diff(Record{Model: "Camera"}, got); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
}

func TestGoexifSource(t *testing.T) {
	dir := t.TempDir()
	p := exiftest.WriteFile(t, dir, "a.jpg", exiftest.JPEG(t, 32, 24, exiftest.Tags{
		Model:             "Nikon D90",
		Orientation:       6,
		FNumber:           exiftest.Rat{Num: 28, Den: 10},
		ExposureTime:      exiftest.Rat{Num: 1, Den: 250},
		ShutterSpeedValue: exiftest.SRat{Num: 8, Den: 1},
		ApertureValue:     exiftest.Rat{Num: 3, Den: 1},
		ISO:               400,
	}))

	fs, err := GoexifSource{}.Fields(context.Background(), p)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}

	want := Fields{
		Model:             "Nikon D90",
		FNumber:           "28/10",
		ApertureValue:     "3/1",
		ExposureTime:      "1/250",
		ShutterSpeedValue: "8/1",
		ISOSpeedRatings:   "400",
	}
	if diff := cmp.Diff(want, fs); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}

	if o := Orientation(p); o != 6 {
		t.Errorf("Orientation() = %d, want 6", o)
	}

	r := Read(context.Background(), GoexifSource{}, p)
	if diff := cmp.Diff(Record{Model: "Nikon D90", FNumber: "2.8", Exposure: "1/250", ISO: "400"}, r); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
}

func TestGoexifSourceNoExif(t *testing.T) {
	dir := t.TempDir()
	p := exiftest.WriteFile(t, dir, "plain.txt", []byte("not an image"))

	if _, err := (GoexifSource{}).Fields(context.Background(), p); err == nil {
		t.Fatal("expected error for file without EXIF")
	}
	if o := Orientation(p); o != 1 {
		t.Errorf("Orientation() = %d, want 1", o)
	}
}
