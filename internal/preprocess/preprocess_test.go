package preprocess

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func colorful(w, h int) image.Image {
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 90, A: 255})
	for x := 0; x < w; x += 7 {
		img.Set(x, h/2, color.NRGBA{R: 10, G: 220, B: 30, A: 255})
	}
	return img
}

func TestPrepareWithinThresholdKeepsDimensions(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {100, 50}, {2000, 2500}} {
		img := colorful(size[0], size[1])
		out := Prepare(img, 5)

		require.NotNil(t, out)
		assert.Equal(t, size[0], out.Bounds().Dx())
		assert.Equal(t, size[1], out.Bounds().Dy())
		assert.IsType(t, &image.Gray{}, out)
	}
}

func TestPrepareAboveThresholdShrinks(t *testing.T) {
	tests := []struct {
		w, h int
		max  float64
	}{
		{4000, 3000, 5},
		{3000, 4000, 5},
		{5000, 1000, 2},
		{1001, 1000, 1},
		{2500, 2500, 0.5},
	}

	for _, tt := range tests {
		img := colorful(tt.w, tt.h)
		out := Prepare(img, tt.max)

		b := out.Bounds()
		assert.LessOrEqual(t, Megapixels(out), tt.max)
		assert.Less(t, b.Dx(), tt.w)
		assert.Less(t, b.Dy(), tt.h)

		// aspect ratio preserved to within one pixel
		expectedHeight := float64(b.Dx()) * float64(tt.h) / float64(tt.w)
		assert.LessOrEqual(t, math.Abs(expectedHeight-float64(b.Dy())), 1.0, "%dx%d -> %dx%d", tt.w, tt.h, b.Dx(), b.Dy())
	}
}

func TestDownsampleExactScale(t *testing.T) {
	out := Downsample(colorful(4000, 3000), 3)
	// sqrt(3/12) = 0.5
	assert.Equal(t, 2000, out.Bounds().Dx())
	assert.Equal(t, 1500, out.Bounds().Dy())
}

func TestDownsampleDisabled(t *testing.T) {
	img := colorful(3000, 3000)
	assert.Same(t, img, Downsample(img, 0))
}

func TestGrayscaleRemovesColor(t *testing.T) {
	gray := Grayscale(colorful(20, 10))

	r, g, b, _ := gray.At(3, 3).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
	assert.Equal(t, image.Point{}, gray.Bounds().Min)
}

func TestGrayscalePassThrough(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	assert.Same(t, src, Grayscale(src))
}
