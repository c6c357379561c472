package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini ----------------------------------

const (
	DefaultGeminiImageModel = "gemini-2.5-flash-image"
	DefaultGeminiTextModel  = "gemini-2.5-flash"
)

type GeminiImager struct {
	Client *genai.Client
	Model  string
}

func NewGeminiImager(ctx context.Context, model, apiKey string) (*GeminiImager, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiImageModel
	}
	return &GeminiImager{Client: client, Model: model}, nil
}

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		apiKey = APIKeyFromEnv("gemini")
	}
	if apiKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY or GOOGLE_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return client, nil
}

func (g *GeminiImager) GenerateBackground(ctx context.Context, req BackgroundRequest) (BackgroundResult, error) {
	prompt := ComposeBackgroundPrompt(req)

	parts := appendImageParts(nil, req.Subjects...)
	for _, ref := range req.References {
		parts = appendImageParts(parts, ref.Image)
	}
	parts = appendImageParts(parts, req.Assets...)
	parts = append(parts, genai.Text(prompt))

	img, err := g.generateImage(ctx, parts)
	if err != nil {
		return BackgroundResult{}, err
	}
	return BackgroundResult{Image: img, Prompt: prompt}, nil
}

func (g *GeminiImager) RefineImage(ctx context.Context, req RefineRequest) (Image, error) {
	parts := appendImageParts(nil, req.Base)
	parts = appendImageParts(parts, req.References...)
	parts = append(parts, genai.Text(composeRefinePrompt(req)))
	return g.generateImage(ctx, parts)
}

func (g *GeminiImager) ReframeImage(ctx context.Context, req ReframeRequest) (Image, error) {
	parts := appendImageParts(nil, req.Base)
	parts = append(parts, genai.Text(composeReframePrompt(req)))
	return g.generateImage(ctx, parts)
}

// Close releases the underlying client.
func (g *GeminiImager) Close() error {
	return g.Client.Close()
}

func (g *GeminiImager) generateImage(ctx context.Context, parts []genai.Part) (Image, error) {
	model := g.Client.GenerativeModel(g.Model)
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return Image{}, fmt.Errorf("gemini generate: %w", err)
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch p := part.(type) {
			case genai.Blob:
				if isImageMIME(p.MIMEType) && len(p.Data) > 0 {
					return Image{MIME: normalizeMIME("", p.MIMEType), Data: p.Data}, nil
				}
			case genai.Text:
				text.WriteString(string(p))
			}
		}
	}
	if msg := strings.TrimSpace(text.String()); msg != "" {
		return Image{}, fmt.Errorf("gemini: no image in response: %s", msg)
	}
	return Image{}, errors.New("gemini: empty response")
}

// appendImageParts attaches images Gemini accepts inline and skips the rest.
func appendImageParts(parts []genai.Part, images ...Image) []genai.Part {
	for _, img := range images {
		if img.Empty() {
			continue
		}
		mt := sanitizeForGemini(normalizeMIME("", img.MIME))
		if mt == "" {
			continue
		}
		parts = append(parts, genai.Blob{MIMEType: mt, Data: img.Data})
	}
	return parts
}

// GeminiDescriber captions style references with a Gemini text model.
type GeminiDescriber struct {
	Client *genai.Client
	Model  string
}

func NewGeminiDescriber(ctx context.Context, model, apiKey string) (*GeminiDescriber, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiTextModel
	}
	return &GeminiDescriber{Client: client, Model: model}, nil
}

func (g *GeminiDescriber) DescribeReference(ctx context.Context, img Image) (string, error) {
	parts := appendImageParts(nil, img)
	if len(parts) == 0 {
		return "", fmt.Errorf("gemini: unsupported reference type %q", img.MIME)
	}
	parts = append(parts, genai.Text(describePrompt))

	resp, err := g.Client.GenerativeModel(g.Model).GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini describe: %w", err)
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

var (
	_ ImageService = (*GeminiImager)(nil)
	_ Describer    = (*GeminiDescriber)(nil)
)
