// Package exiftest builds image files with EXIF segments for tests.
package exiftest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/HugoSmits86/nativewebp"
)

// Rat is an unsigned EXIF rational.
type Rat struct{ Num, Den uint32 }

// SRat is a signed EXIF rational.
type SRat struct{ Num, Den int32 }

// Tags selects which EXIF tags to embed. Zero values are omitted.
type Tags struct {
	Model             string
	Orientation       uint16
	FNumber           Rat
	ApertureValue     Rat
	ExposureTime      Rat
	ShutterSpeedValue SRat
	ISO               uint16
}

const (
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSRational = 10
)

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

var le = binary.LittleEndian

// Pixels returns a w×h image with a horizontal gradient.
func Pixels(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 200, A: 255})
		}
	}
	return img
}

// JPEG encodes a w×h image and inserts an EXIF APP1 segment carrying tags.
func JPEG(t testing.TB, w, h int, tags Tags) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Pixels(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return Splice(t, buf.Bytes(), tags)
}

// WebP encodes a w×h image as lossless WebP. It carries no metadata.
func WebP(t testing.TB, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, Pixels(w, h), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// Splice inserts an EXIF APP1 segment right after the SOI marker of data.
func Splice(t testing.TB, data []byte, tags Tags) []byte {
	t.Helper()

	app1 := APP1(t, tags)
	out := append([]byte{}, data[:2]...)
	out = append(out, app1...)
	return append(out, data[2:]...)
}

// APP1 returns a complete APP1 segment (marker included) holding tags.
func APP1(t testing.TB, tags Tags) []byte {
	t.Helper()

	payload := append([]byte("Exif\x00\x00"), tiff(tags)...)
	length := len(payload) + 2
	if length > 0xFFFF {
		t.Fatalf("exif payload too large: %d", length)
	}
	seg := []byte{0xFF, 0xE1, byte(length >> 8), byte(length)}
	return append(seg, payload...)
}

// WriteFile writes data to name inside dir and returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func tiff(tags Tags) []byte {
	var ifd0, sub []entry

	if tags.Model != "" {
		s := append([]byte(tags.Model), 0)
		ifd0 = append(ifd0, entry{0x0110, typeASCII, uint32(len(s)), s})
	}
	if tags.Orientation != 0 {
		ifd0 = append(ifd0, entry{0x0112, typeShort, 1, short(tags.Orientation)})
	}

	if tags.ExposureTime.Den != 0 {
		sub = append(sub, entry{0x829A, typeRational, 1, rat(tags.ExposureTime.Num, tags.ExposureTime.Den)})
	}
	if tags.FNumber.Den != 0 {
		sub = append(sub, entry{0x829D, typeRational, 1, rat(tags.FNumber.Num, tags.FNumber.Den)})
	}
	if tags.ISO != 0 {
		sub = append(sub, entry{0x8827, typeShort, 1, short(tags.ISO)})
	}
	if tags.ShutterSpeedValue.Den != 0 {
		sub = append(sub, entry{0x9201, typeSRational, 1, rat(uint32(tags.ShutterSpeedValue.Num), uint32(tags.ShutterSpeedValue.Den))})
	}
	if tags.ApertureValue.Den != 0 {
		sub = append(sub, entry{0x9202, typeRational, 1, rat(tags.ApertureValue.Num, tags.ApertureValue.Den)})
	}

	const ifd0Offset = 8
	if len(sub) > 0 {
		// Pointer value is patched in below once the IFD0 size is known.
		ifd0 = append(ifd0, entry{0x8769, typeLong, 1, make([]byte, 4)})
	}
	sortEntries(ifd0)
	subOffset := ifd0Offset + ifdSize(ifd0)
	for i := range ifd0 {
		if ifd0[i].tag == 0x8769 {
			le.PutUint32(ifd0[i].data, uint32(subOffset))
		}
	}

	out := []byte{'I', 'I', 42, 0, ifd0Offset, 0, 0, 0}
	out = append(out, ifd(ifd0, ifd0Offset)...)
	if len(sub) > 0 {
		sortEntries(sub)
		out = append(out, ifd(sub, subOffset)...)
	}
	return out
}

func sortEntries(es []entry) {
	sort.Slice(es, func(i, j int) bool { return es[i].tag < es[j].tag })
}

// ifdSize is the size of the directory plus its out-of-line data.
func ifdSize(es []entry) int {
	n := 2 + 12*len(es) + 4
	for _, e := range es {
		if len(e.data) > 4 {
			n += len(e.data)
		}
	}
	return n
}

// ifd serializes es located at offset, with out-of-line values following the directory.
func ifd(es []entry, offset int) []byte {
	dataOffset := offset + 2 + 12*len(es) + 4
	dir := make([]byte, 2, 2+12*len(es)+4)
	le.PutUint16(dir, uint16(len(es)))
	var data []byte

	for _, e := range es {
		b := make([]byte, 12)
		le.PutUint16(b[0:], e.tag)
		le.PutUint16(b[2:], e.typ)
		le.PutUint32(b[4:], e.count)
		if len(e.data) <= 4 {
			copy(b[8:], e.data)
		} else {
			le.PutUint32(b[8:], uint32(dataOffset+len(data)))
			data = append(data, e.data...)
		}
		dir = append(dir, b...)
	}
	dir = append(dir, 0, 0, 0, 0)
	return append(dir, data...)
}

func short(v uint16) []byte {
	b := make([]byte, 2)
	le.PutUint16(b, v)
	return b
}

func rat(num, den uint32) []byte {
	b := make([]byte, 8)
	le.PutUint32(b[0:], num)
	le.PutUint32(b[4:], den)
	return b
}
