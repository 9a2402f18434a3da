package transform

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DefaultMaxSourcePixels caps decoded source dimensions so that a small
// compressed payload cannot expand into an enormous raster.
const DefaultMaxSourcePixels = 100_000_000

// ImagingResampler decodes with the standard image registry and resamples
// with disintegration/imaging's Lanczos filter.
type ImagingResampler struct {
	MaxSourcePixels int
}

func NewImagingResampler() *ImagingResampler {
	return &ImagingResampler{MaxSourcePixels: DefaultMaxSourcePixels}
}

func (r *ImagingResampler) Name() string {
	return "imaging"
}

func (r *ImagingResampler) ResampleGray(data []byte, width, height int) (*image.Gray, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, DecodeError(fmt.Errorf("failed to read image header: %w", err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, DecodeError(fmt.Errorf("invalid %s dimensions %dx%d", format, cfg.Width, cfg.Height))
	}
	if r.MaxSourcePixels > 0 && cfg.Width*cfg.Height > r.MaxSourcePixels {
		return nil, DecodeError(fmt.Errorf("%s image %dx%d exceeds %d pixels", format, cfg.Width, cfg.Height, r.MaxSourcePixels))
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, DecodeError(fmt.Errorf("failed to decode %s image: %w", format, err))
	}

	resized := imaging.Resize(src, width, height, imaging.Lanczos)
	return luminance(imaging.Grayscale(resized)), nil
}

// luminance copies the red channel of an image whose channels are already
// equal. Alpha is dropped rather than composited, so transparent pixels keep
// their underlying tone.
func luminance(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride:]
		dst := gray.Pix[y*gray.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return gray
}
