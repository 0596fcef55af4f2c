package render

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"strconv"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// DefaultJPEGQuality is the quality of images returned if requesting JPEG images
// and an explicit Quality amount is omitted.
const DefaultJPEGQuality = 80

// Format is an output encoding of a rendered image.
type Format struct {
	Name    string // "png", "jpg", "tif", "bmp", or "argb"
	Quality int    // JPEG quality
}

// ParseFormat parses strings like "png", "jpg:90", "tiff", "bmp", or "argb".  An empty
// string is PNG.
func ParseFormat(s string) (Format, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(s)), ":", 2)
	f := Format{Name: parts[0], Quality: DefaultJPEGQuality}
	switch f.Name {
	case "", "png":
		f.Name = "png"
	case "jpg", "jpeg":
		f.Name = "jpg"
		if len(parts) == 2 {
			q, err := strconv.Atoi(parts[1])
			if err != nil || q < 1 || q > 100 {
				return Format{}, fmt.Errorf("bad JPEG quality %q", parts[1])
			}
			f.Quality = q
		}
	case "tif", "tiff":
		f.Name = "tif"
	case "bmp", "argb":
	default:
		return Format{}, fmt.Errorf("unknown image format %q", s)
	}
	return f, nil
}

// ContentType returns the HTTP content type of the format.
func (f Format) ContentType() string {
	switch f.Name {
	case "jpg":
		return "image/jpeg"
	case "tif":
		return "image/tiff"
	case "bmp":
		return "image/bmp"
	case "argb":
		return "application/octet-stream"
	default:
		return "image/png"
	}
}

func (f Format) String() string {
	if f.Name == "jpg" {
		return fmt.Sprintf("jpg:%d", f.Quality)
	}
	return f.Name
}

// Encode writes the image in the given format.  The "argb" format writes the packed
// 32-bit words little-endian.
func (img *Image) Encode(w io.Writer, f Format) error {
	switch f.Name {
	case "png":
		return png.Encode(w, img.NRGBA())
	case "jpg":
		return jpeg.Encode(w, img.NRGBA(), &jpeg.Options{Quality: f.Quality})
	case "tif":
		return tiff.Encode(w, img.NRGBA(), &tiff.Options{Compression: tiff.Deflate})
	case "bmp":
		return bmp.Encode(w, img.NRGBA())
	case "argb":
		return binary.Write(w, binary.LittleEndian, img.PackedARGB())
	default:
		return fmt.Errorf("unknown image format %q", f.Name)
	}
}

// EncodeBytes returns the encoded image.
func (img *Image) EncodeBytes(f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := img.Encode(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
