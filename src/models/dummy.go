package models

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// dummyMaxAspect caps the rendered height at this many widths.
const dummyMaxAspect = 8

// DummyImager is a deterministic ImageService for local runs and tests without API calls.
// It renders a small solid-color PNG whose color is derived from the request.
type DummyImager struct {
	Width int
}

func NewDummyImager() *DummyImager {
	return &DummyImager{Width: 16}
}

func (d *DummyImager) GenerateBackground(_ context.Context, req BackgroundRequest) (BackgroundResult, error) {
	prompt := ComposeBackgroundPrompt(req)
	img, err := d.render([]byte(prompt), req.TargetHeight)
	if err != nil {
		return BackgroundResult{}, err
	}
	return BackgroundResult{Image: img, Prompt: prompt}, nil
}

func (d *DummyImager) RefineImage(_ context.Context, req RefineRequest) (Image, error) {
	seed := append(append([]byte(nil), req.Base.Data...), composeRefinePrompt(req)...)
	return d.render(seed, 0)
}

func (d *DummyImager) ReframeImage(_ context.Context, req ReframeRequest) (Image, error) {
	seed := append(append([]byte(nil), req.Base.Data...), composeReframePrompt(req)...)
	return d.render(seed, req.TargetHeight)
}

func (d *DummyImager) render(seed []byte, targetHeight int) (Image, error) {
	width := d.Width
	if width <= 0 {
		width = 16
	}
	height := width
	if targetHeight > 0 {
		targetHeight = min(targetHeight, 1080*dummyMaxAspect)
		height = max(1, width*targetHeight/1080)
	}

	sum := sha256.Sum256(seed)
	fill := color.RGBA{R: sum[0], G: sum[1], B: sum[2], A: 0xff}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			canvas.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return Image{}, fmt.Errorf("dummy render: %w", err)
	}
	return Image{MIME: "image/png", Data: buf.Bytes()}, nil
}

var _ ImageService = (*DummyImager)(nil)
