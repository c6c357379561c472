package models

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const DefaultOpenAIImageModel = "gpt-image-1"

// OpenAIImager renders through the OpenAI images API. The edit endpoint takes one image,
// so only the first subject is uploaded. Reference images and brand assets are never sent:
// reference descriptions reach the model through the prompt, and prompts never claim
// images that were not attached.
type OpenAIImager struct {
	Client     *openai.Client
	Model      string
	httpClient *http.Client
}

func NewOpenAIImager(model, apiKey string) *OpenAIImager {
	if apiKey == "" {
		apiKey = APIKeyFromEnv("openai")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultOpenAIImageModel
	}
	return &OpenAIImager{
		Client:     openai.NewClient(apiKey),
		Model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *OpenAIImager) GenerateBackground(ctx context.Context, req BackgroundRequest) (BackgroundResult, error) {
	prompt := openAIBackgroundPrompt(req)

	var (
		resp openai.ImageResponse
		err  error
	)
	if base, ok := firstImage(req.Subjects); ok {
		resp, err = o.edit(ctx, base, prompt, req.TargetHeight)
	} else {
		resp, err = o.Client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         prompt,
			Model:          o.Model,
			N:              1,
			Size:           openAISize(o.Model, req.TargetHeight),
			ResponseFormat: o.responseFormat(),
		})
	}
	if err != nil {
		return BackgroundResult{}, fmt.Errorf("openai image: %w", err)
	}

	img, revised, err := o.decode(ctx, resp)
	if err != nil {
		return BackgroundResult{}, err
	}
	if revised != "" {
		prompt = revised
	}
	return BackgroundResult{Image: img, Prompt: prompt}, nil
}

func (o *OpenAIImager) RefineImage(ctx context.Context, req RefineRequest) (Image, error) {
	resp, err := o.edit(ctx, req.Base, openAIRefinePrompt(req), 0)
	if err != nil {
		return Image{}, fmt.Errorf("openai edit: %w", err)
	}
	img, _, err := o.decode(ctx, resp)
	return img, err
}

func (o *OpenAIImager) ReframeImage(ctx context.Context, req ReframeRequest) (Image, error) {
	resp, err := o.edit(ctx, req.Base, composeReframePrompt(req), req.TargetHeight)
	if err != nil {
		return Image{}, fmt.Errorf("openai edit: %w", err)
	}
	img, _, err := o.decode(ctx, resp)
	return img, err
}

// edit uploads base through a temp file; the multipart encoder needs a named reader.
func (o *OpenAIImager) edit(ctx context.Context, base Image, prompt string, height int) (openai.ImageResponse, error) {
	f, err := os.CreateTemp("", "backdrop-*"+ExtensionFor(base.MIME))
	if err != nil {
		return openai.ImageResponse{}, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if _, err := f.Write(base.Data); err != nil {
		return openai.ImageResponse{}, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return openai.ImageResponse{}, err
	}

	return o.Client.CreateEditImage(ctx, openai.ImageEditRequest{
		Image:          f,
		Prompt:         prompt,
		Model:          o.Model,
		N:              1,
		Size:           openAISize(o.Model, height),
		ResponseFormat: o.responseFormat(),
	})
}

// gpt-image models always answer in base64 and reject the response_format field.
func (o *OpenAIImager) responseFormat() string {
	if strings.HasPrefix(o.Model, "dall-e") {
		return openai.CreateImageResponseFormatB64JSON
	}
	return ""
}

func (o *OpenAIImager) decode(ctx context.Context, resp openai.ImageResponse) (Image, string, error) {
	if len(resp.Data) == 0 {
		return Image{}, "", errors.New("openai: empty image response")
	}
	item := resp.Data[0]
	if item.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return Image{}, "", fmt.Errorf("openai: decode image: %w", err)
		}
		return DetectImage("", "", data), item.RevisedPrompt, nil
	}
	if item.URL == "" {
		return Image{}, "", errors.New("openai: response has neither data nor url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return Image{}, "", err
	}
	res, err := o.httpClient.Do(req)
	if err != nil {
		return Image{}, "", fmt.Errorf("openai: download image: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return Image{}, "", fmt.Errorf("openai: download image: %s", res.Status)
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return Image{}, "", err
	}
	return DetectImage("", res.Header.Get("Content-Type"), data), item.RevisedPrompt, nil
}

func openAISize(model string, height int) string {
	switch {
	case height <= 1024:
		return "1024x1024"
	case strings.HasPrefix(model, "dall-e-3"):
		return "1024x1792"
	case strings.HasPrefix(model, "dall-e"):
		return "1024x1024"
	default:
		return "1024x1536"
	}
}

func openAIBackgroundPrompt(req BackgroundRequest) string {
	req.Assets = nil
	return ComposeBackgroundPrompt(req)
}

func openAIRefinePrompt(req RefineRequest) string {
	req.References = nil
	return composeRefinePrompt(req)
}

func firstImage(images []Image) (Image, bool) {
	for _, img := range images {
		if !img.Empty() {
			return img, true
		}
	}
	return Image{}, false
}

var _ ImageService = (*OpenAIImager)(nil)
