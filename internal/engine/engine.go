// Package engine holds the image transformation capability. The rest of
// the system treats it as a black box: a content image and a style image
// go in, a stylized image comes out, or an error.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/mimicryml/style-transfer/internal/logger"
)

// Engine applies a style asset to a content image and writes the result
// to outputPath. Implementations may take arbitrarily long; callers bound
// the work through ctx.
type Engine interface {
	Apply(ctx context.Context, contentPath, stylePath, outputPath string) error
}

// Func adapts a plain function to the Engine interface.
type Func func(ctx context.Context, contentPath, stylePath, outputPath string) error

func (f Func) Apply(ctx context.Context, contentPath, stylePath, outputPath string) error {
	return f(ctx, contentPath, stylePath, outputPath)
}

// BlendEngine is the built-in stand-in for a neural stylization model.
// It downscales the content image to maxDim, resamples the style image
// onto it and blends the two, writing a JPEG. Stateless and safe for
// concurrent use.
type BlendEngine struct {
	maxDim      int
	styleWeight float64
	quality     int
}

var _ Engine = (*BlendEngine)(nil)

// Load constructs the engine. Called once during process startup, before
// any job is dispatched, mirroring a model load.
func Load() *BlendEngine {
	logger.Logger.Info().Msg("Loading transformation engine")
	return &BlendEngine{
		maxDim:      512,
		styleWeight: 0.45,
		quality:     95,
	}
}

// Apply runs the transformation. It checks ctx between stages so a
// server-side timeout turns into a failed job instead of a stuck one.
func (e *BlendEngine) Apply(ctx context.Context, contentPath, stylePath, outputPath string) error {
	content, err := decode(contentPath)
	if err != nil {
		return fmt.Errorf("failed to load content image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	style, err := decode(stylePath)
	if err != nil {
		return fmt.Errorf("failed to load style image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	scaled := fit(content, e.maxDim)
	result := e.blend(scaled, style)
	if err := ctx.Err(); err != nil {
		return err
	}

	// Encode in memory first so a failed run never leaves a partial
	// output file behind.
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, result, &jpeg.Options{Quality: e.quality}); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// fit resizes img so its longer side equals maxDim, preserving aspect
// ratio. Images already within bounds are returned as-is.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	var nw, nh int
	if w > h {
		nw = maxDim
		nh = h * maxDim / w
	} else {
		nh = maxDim
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		sy := b.Min.Y + y*h/nh
		for x := 0; x < nw; x++ {
			sx := b.Min.X + x*w/nw
			dst.Set(x, y, img.At(sx, sy))
		}
	}
	return dst
}

// blend samples the style image across the content bounds and mixes the
// two per channel by styleWeight.
func (e *BlendEngine) blend(content, style image.Image) image.Image {
	cb := content.Bounds()
	sb := style.Bounds()
	w, h := cb.Dx(), cb.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := sb.Min.Y + y*sb.Dy()/h
		for x := 0; x < w; x++ {
			sx := sb.Min.X + x*sb.Dx()/w

			cr, cg, cbl, _ := content.At(cb.Min.X+x, cb.Min.Y+y).RGBA()
			sr, sg, sbl, _ := style.At(sx, sy).RGBA()

			dst.SetRGBA(x, y, color.RGBA{
				R: mix(cr, sr, e.styleWeight),
				G: mix(cg, sg, e.styleWeight),
				B: mix(cbl, sbl, e.styleWeight),
				A: 0xff,
			})
		}
	}
	return dst
}

func mix(c, s uint32, w float64) uint8 {
	v := float64(c>>8)*(1-w) + float64(s>>8)*w
	if v > 255 {
		v = 255
	}
	return uint8(v)
}
