// Package raster loads score images and provides the greyscale pixel
// primitives shared by the recognition pipeline.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"

	// Register stdlib decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	// Register extended decoders for scans exported from other tools.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"score-scan/pkg/geometry"
)

// Dimension limits for incoming images. Images below MinDimension carry
// too little detail to recognize; images above MaxDimension are scaled
// down by the preprocessor (a warning, not an error).
const (
	MinDimension = 50
	MaxDimension = 3000
)

// ErrInvalidImage indicates the input bytes could not be decoded.
var ErrInvalidImage = errors.New("invalid image")

// ErrImageTooSmall indicates the decoded image is below MinDimension.
var ErrImageTooSmall = errors.New("image too small")

// Decode decodes PNG, JPEG, GIF, BMP, TIFF or WebP bytes and validates
// the minimum dimension.
func Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if err := Validate(img); err != nil {
		return nil, fmt.Errorf("%s image: %w", format, err)
	}
	return img, nil
}

// LoadFile reads and decodes an image file.
func LoadFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return Decode(data)
}

// Validate checks the dimension constraints on a decoded image.
func Validate(img image.Image) error {
	b := img.Bounds()
	if min(b.Dx(), b.Dy()) < MinDimension {
		return fmt.Errorf("%w: %dx%d, need at least %dpx", ErrImageTooSmall, b.Dx(), b.Dy(), MinDimension)
	}
	return nil
}

// Oversized reports whether the image exceeds MaxDimension on either axis.
func Oversized(img image.Image) bool {
	b := img.Bounds()
	return max(b.Dx(), b.Dy()) > MaxDimension
}

// ToGray converts any image to 8-bit greyscale using the ITU-R BT.601
// luma weights 0.299 R + 0.587 G + 0.114 B.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return CloneGray(g)
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	// Fast path for the common decoded formats; the generic path goes
	// through color.Color which is an order of magnitude slower.
	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			o := out.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				r := uint32(src.Pix[i])
				g := uint32(src.Pix[i+1])
				bb := uint32(src.Pix[i+2])
				out.Pix[o] = uint8((19595*r + 38470*g + 7471*bb + 1<<15) >> 16)
				i += 4
				o++
			}
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			o := out.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				r := uint32(src.Pix[i])
				g := uint32(src.Pix[i+1])
				bb := uint32(src.Pix[i+2])
				out.Pix[o] = uint8((19595*r + 38470*g + 7471*bb + 1<<15) >> 16)
				i += 4
				o++
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bb, _ := img.At(x, y).RGBA()
				lum := (19595*(r>>8) + 38470*(g>>8) + 7471*(bb>>8) + 1<<15) >> 16
				out.Pix[out.PixOffset(x-b.Min.X, y-b.Min.Y)] = uint8(lum)
			}
		}
	}
	return out
}

// CloneGray returns a deep copy of a greyscale image anchored at the origin.
func CloneGray(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(out.Pix[out.PixOffset(0, y):out.PixOffset(0, y)+b.Dx()], src[:b.Dx()])
	}
	return out
}

// Invert returns a new image with every intensity v replaced by 255-v.
// Invert is an involution: Invert(Invert(g)) equals g pixel for pixel.
func Invert(g *image.Gray) *image.Gray {
	out := CloneGray(g)
	for i := range out.Pix {
		out.Pix[i] = 255 - out.Pix[i]
	}
	return out
}

// Crop copies the given region out of a greyscale image. The region is
// clamped to the image bounds; an empty intersection yields a 0x0 image.
func Crop(g *image.Gray, r geometry.RectInt) *image.Gray {
	b := g.Bounds()
	r = r.Clamp(b.Dx(), b.Dy())
	if r.Empty() {
		return image.NewGray(image.Rect(0, 0, 0, 0))
	}
	out := image.NewGray(image.Rect(0, 0, r.Width(), r.Height()))
	for y := 0; y < r.Height(); y++ {
		src := g.Pix[g.PixOffset(b.Min.X+r.X0, b.Min.Y+r.Y0+y):]
		copy(out.Pix[out.PixOffset(0, y):out.PixOffset(0, y)+r.Width()], src[:r.Width()])
	}
	return out
}

// IsBlack reports whether the pixel at x,y is below the binary midpoint.
// Out-of-range coordinates read as white.
func IsBlack(g *image.Gray, x, y int) bool {
	b := g.Bounds()
	if x < 0 || y < 0 || x >= b.Dx() || y >= b.Dy() {
		return false
	}
	return g.Pix[g.PixOffset(x, y)] < 128
}
