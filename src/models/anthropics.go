package models

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultAnthropicModel = "claude-3-5-sonnet-latest"

// AnthropicDescriber captions style references with the Messages API.
type AnthropicDescriber struct {
	Client    *anthropic.Client
	Model     string
	MaxTokens int
}

// NewAnthropicDescriber constructs a client. It reads ANTHROPIC_API_KEY from the env.
func NewAnthropicDescriber(model string) *AnthropicDescriber {
	cl := anthropic.NewClient(
		anthropicopt.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	if strings.TrimSpace(model) == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicDescriber{
		Client:    &cl,
		Model:     model,
		MaxTokens: 256,
	}
}

func (a *AnthropicDescriber) DescribeReference(ctx context.Context, img Image) (string, error) {
	mt := sanitizeForAnthropic(normalizeMIME("", img.MIME))
	if mt == "" {
		return "", fmt.Errorf("anthropic: unsupported reference type %q", img.MIME)
	}

	msg, err := a.Client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(a.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mt, base64.StdEncoding.EncodeToString(img.Data)),
				anthropic.NewTextBlock(describePrompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic describe: %w", err)
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

var _ Describer = (*AnthropicDescriber)(nil)
