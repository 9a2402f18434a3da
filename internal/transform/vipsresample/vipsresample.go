// Package vipsresample implements transform.Resampler on top of libvips.
// It needs cgo and a libvips installation; select it with RESAMPLER=vips.
package vipsresample

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/cshum/vipsgen/vips"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"graytone/internal/transform"
)

// Config mirrors the libvips runtime knobs exposed through the environment.
type Config struct {
	MaxCacheMB  int
	Concurrency int
}

// Startup initializes libvips and routes its warnings and errors to log.
// Call Shutdown when the process exits.
func Startup(cfg Config, log *zap.Logger) {
	vipsConfig := &vips.Config{
		ConcurrencyLevel: cfg.Concurrency,
		MaxCacheMem:      cfg.MaxCacheMB * 1024 * 1024, // Convert MB to bytes
		MaxCacheFiles:    0,                            // Disable disk cache
		MaxCacheSize:     0,                            // Disable disk cache
		ReportLeaks:      false,
		CacheTrace:       false,
		VectorEnabled:    true,
	}

	vips.SetLogging(func(domain string, level vips.LogLevel, message string) {
		if level >= vips.LogLevelError {
			log.Error("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		} else if level >= vips.LogLevelWarning {
			log.Warn("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		}
	}, vips.LogLevelError)

	vips.Startup(vipsConfig)

	log.Info("VIPS initialized",
		zap.Int("max_cache_mb", cfg.MaxCacheMB),
		zap.Int("concurrency", cfg.Concurrency),
	)
}

func Shutdown() {
	vips.Shutdown()
}

// Resampler uses libvips for decode, Lanczos3 resize and B/W conversion.
type Resampler struct{}

func New() *Resampler {
	return &Resampler{}
}

func (r *Resampler) Name() string {
	return "vips"
}

func (r *Resampler) ResampleGray(data []byte, width, height int) (*image.Gray, error) {
	img, err := vips.NewImageFromBuffer(data, nil)
	if err != nil {
		return nil, transform.DecodeError(fmt.Errorf("failed to load image: %w", err))
	}
	defer img.Close()

	if img.Width() <= 0 || img.Height() <= 0 {
		return nil, transform.DecodeError(fmt.Errorf("invalid dimensions %dx%d", img.Width(), img.Height()))
	}

	// Independent horizontal and vertical scales stretch to the exact target
	// instead of preserving aspect ratio.
	resizeOpts := vips.DefaultResizeOptions()
	resizeOpts.Kernel = vips.KernelLanczos3
	resizeOpts.Vscale = float64(height) / float64(img.Height())
	if err := img.Resize(float64(width)/float64(img.Width()), resizeOpts); err != nil {
		return nil, transform.EncodeError(fmt.Errorf("failed to resize: %w", err))
	}

	if err := img.Colourspace(vips.InterpretationBW, nil); err != nil {
		return nil, transform.EncodeError(fmt.Errorf("failed to convert to b-w: %w", err))
	}

	// Keep luminance only; alpha is dropped, not composited.
	if img.Bands() > 1 {
		if err := img.ExtractBand(0, nil); err != nil {
			return nil, transform.EncodeError(fmt.Errorf("failed to extract luminance band: %w", err))
		}
	}

	raw, err := img.PngsaveBuffer(nil)
	if err != nil {
		return nil, transform.EncodeError(fmt.Errorf("failed to export: %w", err))
	}

	decoded, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, transform.EncodeError(fmt.Errorf("failed to read vips output: %w", err))
	}

	// vips rounds output dimensions; snap the rare off-by-one result.
	if b := decoded.Bounds(); b.Dx() != width || b.Dy() != height {
		decoded = imaging.Resize(decoded, width, height, imaging.Lanczos)
	}

	return toGray(decoded), nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
