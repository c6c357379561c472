package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// ---------------------------- Ollama -----------------------------------------

const DefaultOllamaVisionModel = "llava"

// OllamaDescriber captions style references with a local vision model.
type OllamaDescriber struct {
	Client *ollama.Client
	Model  string
}

func NewOllamaDescriber(model string) (*OllamaDescriber, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultOllamaVisionModel
	}

	c := ollama.NewClient(u, &http.Client{Timeout: 120 * time.Second})
	return &OllamaDescriber{Client: c, Model: model}, nil
}

func (o *OllamaDescriber) DescribeReference(ctx context.Context, img Image) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("ollama: empty reference image")
	}

	var text strings.Builder
	req := &ollama.GenerateRequest{
		Model:  o.Model,
		Prompt: describePrompt,
		Images: []ollama.ImageData{ollama.ImageData(img.Data)},
	}
	if err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	}); err != nil {
		return "", fmt.Errorf("ollama describe: %w", err)
	}
	return strings.TrimSpace(text.String()), nil
}

var _ Describer = (*OllamaDescriber)(nil)
