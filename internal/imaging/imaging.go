// Package imaging turns a validated upload into the base64 payload the scan
// service accepts.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	orient "github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/vbonduro/foodiepass/internal/apperr"
	"github.com/vbonduro/foodiepass/internal/upload"
)

const (
	// MaxEdge bounds the longer side of a resized image, in pixels.
	MaxEdge = 1920
	// JPEGQuality is the re-encode quality (0.85 on a 0..1 scale).
	JPEGQuality = 85
	// MaxPixels bounds the decoded area. A 10MB file can declare dimensions
	// whose raster would need gigabytes.
	MaxPixels = 50_000_000
)

const (
	StrategyResize      = "resize"
	StrategyPassthrough = "passthrough"
)

// Payload is a transport-ready image: a bare base64 body with no data-URI
// prefix. Width and Height are zero when the strategy did not decode.
type Payload struct {
	Base64    string
	MediaType string
	Width     int
	Height    int
}

type Normalizer interface {
	Normalize(ctx context.Context, f upload.File) (*Payload, error)
}

// New returns the normalizer for a configured strategy name.
func New(strategy string) (Normalizer, error) {
	switch strategy {
	case StrategyResize, "":
		return ResizeEncoder{}, nil
	case StrategyPassthrough:
		return PassthroughEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown image strategy %q", strategy)
	}
}

// ResizeEncoder decodes the image, applies its EXIF orientation, bounds its
// longer edge to MaxEdge and re-encodes it as JPEG at JPEGQuality. The
// re-encoded JPEG carries no EXIF, so the rotation has to happen here.
type ResizeEncoder struct{}

func (ResizeEncoder) Normalize(ctx context.Context, f upload.File) (*Payload, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return nil, apperr.New(apperr.KindDecode, fmt.Errorf("failed to decode %s: %w", f.MediaType, err))
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, apperr.Newf(apperr.KindDecode, "image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, MaxPixels)
	}

	src, err := orient.Decode(bytes.NewReader(f.Data), orient.AutoOrientation(true))
	if err != nil {
		return nil, apperr.New(apperr.KindDecode, fmt.Errorf("failed to decode %s: %w", f.MediaType, err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), MaxEdge)

	// JPEG has no alpha channel; transparent regions become white.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, apperr.New(apperr.KindDecode, fmt.Errorf("failed to encode jpeg: %w", err))
	}

	return &Payload{
		Base64:    base64.StdEncoding.EncodeToString(buf.Bytes()),
		MediaType: upload.MediaJPEG,
		Width:     w,
		Height:    h,
	}, nil
}

// PassthroughEncoder forwards the original bytes untouched.
type PassthroughEncoder struct{}

func (PassthroughEncoder) Normalize(ctx context.Context, f upload.File) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Payload{
		Base64:    base64.StdEncoding.EncodeToString(f.Data),
		MediaType: f.MediaType,
	}, nil
}

// FitWithin scales (w, h) down so the longer edge equals limit, preserving
// the aspect ratio. Dimensions already within limit are returned unchanged.
func FitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := int((int64(h)*int64(limit) + int64(w)/2) / int64(w))
		return limit, clampMin(nh)
	}
	nw := int((int64(w)*int64(limit) + int64(h)/2) / int64(h))
	return clampMin(nw), limit
}

func clampMin(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
