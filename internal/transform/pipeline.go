// Package transform turns source image bytes into a dithered grayscale
// palette PNG of fixed dimensions.
//
// The output is a pure function of the input bytes and parameters, so two
// runs for the same request always produce byte-identical PNGs.
package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	MinLevels = 2
	MaxLevels = 256
)

var transformDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "graytone_transform_duration_seconds",
	Help:    "Image transform duration in seconds by resampler",
	Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
}, []string{"resampler"})

// Resampler decodes an encoded image and returns its luminance resampled to
// exactly width×height with a Lanczos-class kernel, ignoring aspect ratio.
// Decode failures must be returned as DecodeError.
type Resampler interface {
	Name() string
	ResampleGray(data []byte, width, height int) (*image.Gray, error)
}

// Pipeline runs resample → grayscale → quantize → PNG encode.
type Pipeline struct {
	resampler Resampler
	encoder   *png.Encoder
	logger    *zap.Logger
}

func New(resampler Resampler, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		resampler: resampler,
		encoder:   &png.Encoder{CompressionLevel: png.BestCompression},
		logger:    logger,
	}
}

// Transform returns the PNG encoding of data resized to width×height and
// quantized to at most levels gray tones with Floyd–Steinberg dithering.
func (p *Pipeline) Transform(data []byte, width, height, levels int) ([]byte, error) {
	if levels < MinLevels || levels > MaxLevels {
		return nil, EncodeError(fmt.Errorf("palette size %d outside %d-%d", levels, MinLevels, MaxLevels))
	}
	if width <= 0 || height <= 0 {
		return nil, EncodeError(fmt.Errorf("invalid target size %dx%d", width, height))
	}

	start := time.Now()

	gray, err := p.resampler.ResampleGray(data, width, height)
	if err != nil {
		return nil, err
	}

	if b := gray.Bounds(); b.Dx() != width || b.Dy() != height {
		return nil, EncodeError(fmt.Errorf("resampler returned %dx%d, want %dx%d", b.Dx(), b.Dy(), width, height))
	}

	quantized, err := Quantize(gray, levels)
	if err != nil {
		return nil, EncodeError(err)
	}

	var buf bytes.Buffer
	if err := p.encoder.Encode(&buf, quantized); err != nil {
		return nil, EncodeError(fmt.Errorf("failed to encode png: %w", err))
	}

	elapsed := time.Since(start)
	transformDuration.WithLabelValues(p.resampler.Name()).Observe(elapsed.Seconds())

	p.logger.Debug("Transformed image",
		zap.String("resampler", p.resampler.Name()),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("levels", levels),
		zap.Int("palette", len(quantized.Palette)),
		zap.Int("bytes", buf.Len()),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)

	return buf.Bytes(), nil
}
