package transform

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sort"
)

// Quantize maps gray onto an adaptive palette of at most levels tones,
// diffusing the rounding error with Floyd–Steinberg.
func Quantize(gray *image.Gray, levels int) (*image.Paletted, error) {
	bounds := gray.Bounds()

	palette := AdaptivePalette(Histogram(gray), levels)
	if len(palette) == 0 {
		return nil, errors.New("empty palette")
	}

	dst := image.NewPaletted(bounds, palette)
	draw.FloydSteinberg.Draw(dst, bounds, gray, bounds.Min)
	return dst, nil
}

// Histogram counts the pixels of each luminance value.
func Histogram(gray *image.Gray) [256]int {
	var hist [256]int
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[gray.PixOffset(b.Min.X, y):gray.PixOffset(b.Max.X, y)]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist
}

// tonalBox is a contiguous luminance range [lo, hi] whose ends are both
// populated in the histogram.
type tonalBox struct {
	lo, hi int
	count  int
}

func newTonalBox(hist *[256]int, lo, hi int) tonalBox {
	for lo < hi && hist[lo] == 0 {
		lo++
	}
	for hi > lo && hist[hi] == 0 {
		hi--
	}
	count := 0
	for v := lo; v <= hi; v++ {
		count += hist[v]
	}
	return tonalBox{lo: lo, hi: hi, count: count}
}

// split cuts the box at its population median. Both halves stay non-empty
// because lo and hi are populated.
func (b tonalBox) split(hist *[256]int) (tonalBox, tonalBox) {
	cut := b.hi - 1
	acc := 0
	for v := b.lo; v < b.hi; v++ {
		acc += hist[v]
		if acc*2 >= b.count {
			cut = v
			break
		}
	}
	return newTonalBox(hist, b.lo, cut), newTonalBox(hist, cut+1, b.hi)
}

func (b tonalBox) mean(hist *[256]int) uint8 {
	sum := 0
	for v := b.lo; v <= b.hi; v++ {
		sum += v * hist[v]
	}
	return uint8((sum + b.count/2) / b.count)
}

// AdaptivePalette runs median cut over a luminance histogram and returns at
// most levels distinct grays in ascending order. It returns nil for an empty
// histogram.
func AdaptivePalette(hist [256]int, levels int) color.Palette {
	root := newTonalBox(&hist, 0, 255)
	if root.count == 0 || levels <= 0 {
		return nil
	}

	boxes := []tonalBox{root}
	for len(boxes) < levels {
		pick := -1
		for i, b := range boxes {
			if b.hi > b.lo && (pick < 0 || b.count > boxes[pick].count) {
				pick = i
			}
		}
		if pick < 0 {
			break
		}

		left, right := boxes[pick].split(&hist)
		boxes[pick] = left
		boxes = append(boxes, right)
	}

	sort.Slice(boxes, func(i, j int) bool { return boxes[i].lo < boxes[j].lo })

	palette := make(color.Palette, len(boxes))
	for i, b := range boxes {
		palette[i] = color.Gray{Y: b.mean(&hist)}
	}
	return palette
}
