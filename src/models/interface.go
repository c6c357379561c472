package models

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// Image is an opaque encoded image payload.
type Image struct {
	MIME string `json:"mime"`
	Data []byte `json:"data"`
}

// Empty reports whether the image carries no bytes.
func (img Image) Empty() bool { return len(img.Data) == 0 }

// DataURL returns the image as an embeddable data: URL.
func (img Image) DataURL() string {
	mt := img.MIME
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ParseDataURL decodes a base64 data: URL produced by DataURL.
func ParseDataURL(s string) (Image, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return Image{}, errors.New("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, errors.New("data url has no payload")
	}
	mt, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return Image{}, errors.New("data url is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, err
	}
	return Image{MIME: normalizeMIME("", mt), Data: data}, nil
}

// Reference is a style reference image plus what the caller wants reused from it.
type Reference struct {
	Image       Image
	Description string
}

// BackgroundRequest describes one background generation call.
type BackgroundRequest struct {
	Mode         string
	Subjects     []Image
	References   []Reference
	Assets       []Image
	Prompt       string
	Position     string
	Gradient     bool
	Blur         bool
	TargetHeight int
}

// BackgroundResult is a generated image and the prompt the backend actually used.
type BackgroundResult struct {
	Image  Image
	Prompt string
}

// RefineRequest asks the backend to edit Base following Instruction.
type RefineRequest struct {
	Base        Image
	Instruction string
	References  []Image
}

// ReframeRequest asks the backend to extend or crop Base to TargetHeight pixels.
type ReframeRequest struct {
	Base         Image
	TargetHeight int
	Layout       string
}

// ImageService is the external generation service. Calls are not retried; errors are
// returned verbatim from the provider.
type ImageService interface {
	GenerateBackground(ctx context.Context, req BackgroundRequest) (BackgroundResult, error)
	RefineImage(ctx context.Context, req RefineRequest) (Image, error)
	ReframeImage(ctx context.Context, req ReframeRequest) (Image, error)
}

// Describer suggests what a style reference contributes, in one short sentence.
type Describer interface {
	DescribeReference(ctx context.Context, img Image) (string, error)
}
