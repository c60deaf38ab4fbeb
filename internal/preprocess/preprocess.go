// Package preprocess prepares scanned images for OCR.
package preprocess

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// Megapixels returns the pixel count of img in millions.
func Megapixels(img image.Image) float64 {
	b := img.Bounds()
	return float64(b.Dx()) * float64(b.Dy()) / 1_000_000
}

// Downsample scales img down uniformly so that it holds at most maxMegapixels,
// using a Lanczos filter. Dimensions are truncated to integers. Images within
// the limit, and any maxMegapixels <= 0, are returned unchanged.
func Downsample(img image.Image, maxMegapixels float64) image.Image {
	current := Megapixels(img)
	if maxMegapixels <= 0 || current <= maxMegapixels {
		return img
	}

	scale := math.Sqrt(maxMegapixels / current)
	b := img.Bounds()
	width := int(float64(b.Dx()) * scale)
	height := int(float64(b.Dy()) * scale)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// Grayscale converts img to a single-channel 8-bit image anchored at (0,0).
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	desaturated := imaging.Grayscale(img)
	gray := image.NewGray(desaturated.Bounds())
	draw.Draw(gray, gray.Bounds(), desaturated, desaturated.Bounds().Min, draw.Src)
	return gray
}

// Prepare downsamples img to maxMegapixels and converts it to grayscale.
func Prepare(img image.Image, maxMegapixels float64) *image.Gray {
	return Grayscale(Downsample(img, maxMegapixels))
}
