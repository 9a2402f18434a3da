package transform

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampGray(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / (width - 1))})
		}
	}
	return img
}

func paletteValues(p color.Palette) []uint8 {
	out := make([]uint8, len(p))
	for i, c := range p {
		out[i] = c.(color.Gray).Y
	}
	return out
}

func TestAdaptivePalette_EmptyHistogram(t *testing.T) {
	var hist [256]int
	assert.Nil(t, AdaptivePalette(hist, 8))
}

func TestAdaptivePalette_SingleTone(t *testing.T) {
	var hist [256]int
	hist[77] = 500

	assert.Equal(t, []uint8{77}, paletteValues(AdaptivePalette(hist, 16)))
}

func TestAdaptivePalette_FewerTonesThanLevels(t *testing.T) {
	var hist [256]int
	hist[0] = 10
	hist[128] = 10
	hist[255] = 10

	assert.Equal(t, []uint8{0, 128, 255}, paletteValues(AdaptivePalette(hist, 8)))
}

func TestAdaptivePalette_TwoLevelsSplitsAtMedian(t *testing.T) {
	var hist [256]int
	hist[10] = 3
	hist[20] = 1
	hist[200] = 2
	hist[250] = 2

	// Median falls after 20, so the boxes are {10,20} and {200,250}.
	assert.Equal(t, []uint8{13, 225}, paletteValues(AdaptivePalette(hist, 2)))
}

func TestAdaptivePalette_Properties(t *testing.T) {
	hist := Histogram(rampGray(256, 4))

	for _, levels := range []int{2, 3, 4, 7, 8, 64, 255, 256} {
		palette := paletteValues(AdaptivePalette(hist, levels))
		assert.Len(t, palette, levels, "levels=%d", levels)

		for i := 1; i < len(palette); i++ {
			assert.Less(t, palette[i-1], palette[i], "palette must be strictly ascending")
		}
	}
}

func TestHistogram_SubImage(t *testing.T) {
	img := rampGray(10, 10)
	sub := img.SubImage(image.Rect(2, 2, 4, 5)).(*image.Gray)

	hist := Histogram(sub)
	total := 0
	for _, n := range hist {
		total += n
	}
	assert.Equal(t, 6, total)
}

func TestQuantize_DithersRamp(t *testing.T) {
	src := rampGray(64, 8)

	dst, err := Quantize(src, 2)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), dst.Bounds())
	assert.Len(t, dst.Palette, 2)

	// Error diffusion mixes both tones in the middle of the ramp instead of
	// producing a single hard edge.
	mid := 32
	seen := map[uint8]bool{}
	for y := 0; y < 8; y++ {
		for x := mid - 4; x < mid+4; x++ {
			seen[dst.ColorIndexAt(x, y)] = true
		}
	}
	assert.Len(t, seen, 2)
}

func TestQuantize_Deterministic(t *testing.T) {
	src := rampGray(100, 30)

	a, err := Quantize(src, 5)
	require.NoError(t, err)
	b, err := Quantize(src, 5)
	require.NoError(t, err)

	assert.Equal(t, a.Pix, b.Pix)
	assert.Equal(t, a.Palette, b.Palette)
}
