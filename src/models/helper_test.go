package models

import (
	"strings"
	"testing"
)

func TestSanitizeForGemini(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"basic png", "image/png", "image/png"},
		{"png with params", "image/png; charset=binary", "image/png"},
		{"double prefix", "image/image/png", "image/png"},
		{"jpeg alias", "IMAGE/JPG", "image/jpeg"},
		{"unsupported", "application/pdf", ""},
		{"gif skipped", "image/gif", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeForGemini(tc.input); got != tc.want {
				t.Fatalf("sanitizeForGemini(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeForAnthropic(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"basic jpeg", "image/jpeg", "image/jpeg"},
		{"jpeg alias", "image/jpg", "image/jpeg"},
		{"with params", "image/png; something", "image/png"},
		{"gif", "image/gif", "image/gif"},
		{"heic unsupported", "image/heic", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeForAnthropic(tc.input); got != tc.want {
				t.Fatalf("sanitizeForAnthropic(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeMIME(t *testing.T) {
	cases := []struct {
		name string
		file string
		mime string
		want string
	}{
		{"empty everything", "noext", "", ""},
		{"from extension", "photo.JPEG", "", "image/jpeg"},
		{"alias jpeg", "photo", "image/jpg", "image/jpeg"},
		{"double prefix", "diagram.png", "image/image/png", "image/png"},
		{"invalid without slash", "shot.webp", "image", "image/webp"},
		{"with params", "vector.svg", "image/svg+xml; charset=utf-8", "image/svg+xml"},
		{"suffix slash", "cover.png", "image/", "image/png"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeMIME(tc.file, tc.mime); got != tc.want {
				t.Fatalf("normalizeMIME(%q, %q) = %q, want %q", tc.file, tc.mime, got, tc.want)
			}
		})
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	img := Image{MIME: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	url := img.DataURL()
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("unexpected data url: %q", url)
	}
	back, err := ParseDataURL(url)
	if err != nil {
		t.Fatalf("ParseDataURL returned error: %v", err)
	}
	if back.MIME != img.MIME || string(back.Data) != string(img.Data) {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestParseDataURLRejectsPlainText(t *testing.T) {
	for _, in := range []string{"hello", "data:image/png,raw", "data:image/png;base64"} {
		if _, err := ParseDataURL(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestDetectImageSniffsContent(t *testing.T) {
	pngHeader := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")
	img := DetectImage("upload", "application/octet-stream", pngHeader)
	if img.MIME != "image/png" {
		t.Fatalf("expected sniffed png, got %q", img.MIME)
	}
	if !IsImage(img) {
		t.Fatalf("expected IsImage to be true")
	}
}

func TestComposeBackgroundPrompt(t *testing.T) {
	prompt := ComposeBackgroundPrompt(BackgroundRequest{
		Mode:     "portrait",
		Prompt:   "sunlit studio (Variation 2: slightly vary lighting and micro-details)",
		Position: "left",
		Gradient: true,
		Blur:     true,
		References: []Reference{
			{Description: "the teal palette"},
			{},
		},
		Assets:       []Image{{MIME: "image/png", Data: []byte{1}}},
		TargetHeight: 1920,
	})

	for _, want := range []string{
		modeDirectives["portrait"],
		"Background brief: sunlit studio (Variation 2: slightly vary lighting and micro-details)",
		positionPhrases["left"],
		"smooth color gradient",
		"background blur",
		"Style reference 1: reuse the teal palette.",
		"Style reference 2: reuse its overall look.",
		"Include the 1 supplied brand asset",
		"Output height: 1920px",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestComposeBackgroundPromptDefaultsToProduct(t *testing.T) {
	prompt := ComposeBackgroundPrompt(BackgroundRequest{Mode: "unknown"})
	if !strings.HasPrefix(prompt, modeDirectives["product"]) {
		t.Fatalf("expected product directive, got:\n%s", prompt)
	}
	if strings.Contains(prompt, "gradient") || strings.Contains(prompt, "blur") {
		t.Fatalf("attributes should be absent when disabled:\n%s", prompt)
	}
}

func TestComposeReframePromptIncludesLayout(t *testing.T) {
	got := composeReframePrompt(ReframeRequest{TargetHeight: 1350, Layout: "headline space on top"})
	if !strings.Contains(got, "1350px") || !strings.Contains(got, "Layout: headline space on top") {
		t.Fatalf("unexpected reframe prompt: %q", got)
	}
}

func TestOpenAISize(t *testing.T) {
	cases := []struct {
		model  string
		height int
		want   string
	}{
		{"gpt-image-1", 0, "1024x1024"},
		{"gpt-image-1", 1920, "1024x1536"},
		{"dall-e-3", 1920, "1024x1792"},
		{"dall-e-2", 1920, "1024x1024"},
	}
	for _, tc := range cases {
		if got := openAISize(tc.model, tc.height); got != tc.want {
			t.Fatalf("openAISize(%q, %d) = %q, want %q", tc.model, tc.height, got, tc.want)
		}
	}
}

func TestOpenAIPromptsOnlyClaimSentImages(t *testing.T) {
	img := Image{MIME: "image/png", Data: []byte{1}}
	prompt := openAIBackgroundPrompt(BackgroundRequest{
		Subjects:   []Image{img, img},
		References: []Reference{{Image: img, Description: "the teal palette"}},
		Assets:     []Image{img},
	})
	if !strings.Contains(prompt, "Style reference 1: reuse the teal palette.") {
		t.Fatalf("expected reference description in prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, "brand asset") {
		t.Fatalf("prompt must not mention assets that are not uploaded:\n%s", prompt)
	}

	refine := openAIRefinePrompt(RefineRequest{Base: img, Instruction: "warmer light", References: []Image{img}})
	if refine != "Edit this image: warmer light" {
		t.Fatalf("unexpected refine prompt: %q", refine)
	}
}
