package toolchain

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/transform"
)

// orient returns img with EXIF orientation o applied, so that it displays upright.
func orient(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return transform.FlipH(img)
	case 3:
		return transform.FlipV(transform.FlipH(img))
	case 4:
		return transform.FlipV(img)
	case 5:
		return transpose(img)
	case 6:
		return transform.FlipH(transpose(img))
	case 7:
		return transform.FlipV(transform.FlipH(transpose(img)))
	case 8:
		return transform.FlipV(transpose(img))
	default:
		return img
	}
}

// transpose mirrors img across its top-left to bottom-right diagonal.
// transform.Rotate resamples and pads right-angle turns, so quarter turns are built from this instead.
func transpose(img image.Image) *image.RGBA {
	b := img.Bounds()
	src := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			si := src.PixOffset(x, y)
			di := dst.PixOffset(y, x)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}
