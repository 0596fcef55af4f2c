package render

import (
	"image"
)

// Image is a rendered plane.  Pixels are stored row-major, 4 bytes per pixel in
// R, G, B, A order without premultiplication, so Pix can back an image.NRGBA.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewImage returns a fully zero (black, transparent) image.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, 4*width*height),
	}
}

// RGBA returns the components of pixel (x, y).
func (img *Image) RGBA(x, y int) (r, g, b, a uint8) {
	i := 4 * (y*img.Width + x)
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]
}

// PackedARGB returns the image as one 32-bit 0xAARRGGBB word per pixel, suitable
// for direct framebuffer blits.
func (img *Image) PackedARGB() []uint32 {
	n := img.Width * img.Height
	packed := make([]uint32, n)
	for i, p := 0, 0; i < n; i, p = i+1, p+4 {
		packed[i] = uint32(img.Pix[p+3])<<24 | uint32(img.Pix[p])<<16 |
			uint32(img.Pix[p+1])<<8 | uint32(img.Pix[p+2])
	}
	return packed
}

// Planar returns separate red, green, and blue planes.
func (img *Image) Planar() (r, g, b []uint8) {
	n := img.Width * img.Height
	r, g, b = make([]uint8, n), make([]uint8, n), make([]uint8, n)
	for i, p := 0, 0; i < n; i, p = i+1, p+4 {
		r[i], g[i], b[i] = img.Pix[p], img.Pix[p+1], img.Pix[p+2]
	}
	return
}

// NRGBA returns a standard Go image sharing the pixel buffer.
func (img *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    img.Pix,
		Stride: 4 * img.Width,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
}

// Clone returns a copy of the image with its own pixel buffer.
func (img *Image) Clone() *Image {
	pix := make([]uint8, len(img.Pix))
	copy(pix, img.Pix)
	return &Image{Width: img.Width, Height: img.Height, Pix: pix}
}
