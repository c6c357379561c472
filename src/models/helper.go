package models

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MIME type lookup tables for fast access
var (
	mimeExtMap = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
		".webp": "image/webp",
		".bmp":  "image/bmp",
		".svg":  "image/svg+xml",
		".heic": "image/heic",
	}

	mimeAliasMap = map[string]string{
		"image/jpg":   "image/jpeg",
		"image/pjpeg": "image/jpeg",
		"image/x-png": "image/png",
	}

	mimeExtReverse = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}

	// Cache for normalized MIME types
	mimeCache   = make(map[string]string, 100)
	mimeCacheMu sync.RWMutex
)

// NewImageProvider returns a concrete ImageService for the named provider.
func NewImageProvider(ctx context.Context, provider, model, apiKey string) (ImageService, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gemini", "google":
		return NewGeminiImager(ctx, model, apiKey)
	case "openai":
		return NewOpenAIImager(model, apiKey), nil
	case "dummy":
		return NewDummyImager(), nil
	default:
		return nil, fmt.Errorf("unknown image provider: %s", provider)
	}
}

// NewDescriber returns a reference Describer, or nil when provider is "none" or empty.
func NewDescriber(ctx context.Context, provider, model string) (Describer, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "none":
		return nil, nil
	case "anthropic", "claude":
		return NewAnthropicDescriber(model), nil
	case "ollama":
		return NewOllamaDescriber(model)
	case "gemini", "google":
		return NewGeminiDescriber(ctx, model, APIKeyFromEnv("gemini"))
	default:
		return nil, fmt.Errorf("unknown describer provider: %s", provider)
	}
}

// APIKeyFromEnv returns the key conventionally used by provider, or "".
func APIKeyFromEnv(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gemini", "google":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("OPENAI_KEY")
	case "anthropic", "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "dummy":
		return "dummy"
	default:
		return ""
	}
}

// DetectImage wraps raw bytes, inferring the MIME type from the declared type, the file
// name, and finally the content itself.
func DetectImage(name, declared string, data []byte) Image {
	mt := normalizeMIME(name, declared)
	if !isImageMIME(mt) && len(data) > 0 {
		mt = normalizeMIME(name, http.DetectContentType(data))
	}
	return Image{MIME: mt, Data: data}
}

// ExtensionFor returns a file extension for an image MIME type.
func ExtensionFor(mt string) string {
	if ext, ok := mimeExtReverse[normalizeMIME("", mt)]; ok {
		return ext
	}
	return ".img"
}

// IsImage reports whether img declares an image MIME type.
func IsImage(img Image) bool {
	return isImageMIME(normalizeMIME("", img.MIME))
}

// sanitizeForGemini coerces edge cases and filters to what Gemini accepts as inline image
// data. Return "" to skip attaching.
func sanitizeForGemini(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))

	if strings.HasPrefix(mt, "image/image/") {
		mt = "image/" + strings.TrimPrefix(mt, "image/image/")
	}

	switch {
	case mt == "":
		return ""
	case mt == "image/png" || strings.HasPrefix(mt, "image/png;"):
		return "image/png"
	case mt == "image/jpeg" || mt == "image/jpg" || mt == "image/pjpeg" ||
		strings.HasPrefix(mt, "image/jpeg;") || strings.HasPrefix(mt, "image/jpg;"):
		return "image/jpeg"
	case mt == "image/webp" || strings.HasPrefix(mt, "image/webp;"):
		return "image/webp"
	case mt == "image/heic" || strings.HasPrefix(mt, "image/heic;"):
		return "image/heic"
	default:
		return ""
	}
}

// sanitizeForAnthropic keeps the four image types the Messages API accepts.
func sanitizeForAnthropic(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if mt == "image/gif" || strings.HasPrefix(mt, "image/gif;") {
		return "image/gif"
	}
	switch s := sanitizeForGemini(mt); s {
	case "image/png", "image/jpeg", "image/webp":
		return s
	default:
		return ""
	}
}

// normalizeMIME fixes messy/alias MIMEs and falls back to file extension.
func normalizeMIME(name, m string) string {
	cacheKey := name + "|" + m
	mimeCacheMu.RLock()
	if cached, ok := mimeCache[cacheKey]; ok {
		mimeCacheMu.RUnlock()
		return cached
	}
	mimeCacheMu.RUnlock()

	result := resolveMIME(name, m)

	mimeCacheMu.Lock()
	if len(mimeCache) < 1000 {
		mimeCache[cacheKey] = result
	}
	mimeCacheMu.Unlock()
	return result
}

func resolveMIME(name, m string) string {
	strip := func(s string) string {
		if i := strings.IndexByte(s, ';'); i >= 0 {
			return strings.TrimSpace(s[:i])
		}
		return strings.TrimSpace(s)
	}

	fromExt := func() string {
		ext := strings.ToLower(filepath.Ext(name))
		if ext == "" {
			return ""
		}
		if mt, ok := mimeExtMap[ext]; ok {
			return mt
		}
		if mt := mime.TypeByExtension(ext); mt != "" {
			return strip(mt)
		}
		return ""
	}

	raw := strings.ToLower(strings.TrimSpace(m))
	if raw == "" {
		return fromExt()
	}

	raw = strip(raw)
	for strings.HasPrefix(raw, "image/image/") {
		raw = "image/" + strings.TrimPrefix(raw, "image/image/")
	}

	if normalized, ok := mimeAliasMap[raw]; ok {
		return normalized
	}

	// Malformed MIME -> use extension
	if !strings.Contains(raw, "/") || strings.HasSuffix(raw, "/") {
		if via := fromExt(); via != "" {
			return via
		}
		return strings.TrimSuffix(raw, "/")
	}
	return raw
}

func isImageMIME(m string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(m)), "image/")
}

var modeDirectives = map[string]string{
	"product":   "Create a clean commercial product photography background that makes the product the hero of the shot.",
	"portrait":  "Create an editorial background for the person in the subject photo, keeping their identity, pose and clothing intact.",
	"lifestyle": "Place the subject in a believable lifestyle scene suitable for a marketing campaign.",
}

var positionPhrases = map[string]string{
	"center": "Keep the subject centered in the frame.",
	"left":   "Place the subject on the left third of the frame, leaving open space on the right for copy.",
	"right":  "Place the subject on the right third of the frame, leaving open space on the left for copy.",
	"top":    "Place the subject in the upper part of the frame, leaving open space below for copy.",
	"bottom": "Place the subject in the lower part of the frame, leaving open space above for copy.",
}

// ComposeBackgroundPrompt renders a BackgroundRequest into the instruction text sent to a
// backend. The output is deterministic for a given request.
func ComposeBackgroundPrompt(req BackgroundRequest) string {
	var lines []string

	directive, ok := modeDirectives[strings.ToLower(req.Mode)]
	if !ok {
		directive = modeDirectives["product"]
	}
	lines = append(lines, directive)
	lines = append(lines, "Keep every subject exactly as photographed; only the background may change.")

	if brief := strings.TrimSpace(req.Prompt); brief != "" {
		lines = append(lines, "Background brief: "+brief)
	}
	if phrase, ok := positionPhrases[strings.ToLower(req.Position)]; ok {
		lines = append(lines, phrase)
	}
	if req.Gradient {
		lines = append(lines, "Use a smooth color gradient in the backdrop.")
	}
	if req.Blur {
		lines = append(lines, "Apply a soft background blur with a shallow depth of field behind the subject.")
	}
	for i, ref := range req.References {
		desc := strings.TrimSpace(ref.Description)
		if desc == "" {
			desc = "its overall look"
		}
		lines = append(lines, fmt.Sprintf("Style reference %d: reuse %s.", i+1, desc))
	}
	if n := len(req.Assets); n > 0 {
		lines = append(lines, fmt.Sprintf("Include the %d supplied brand asset image(s) without altering them.", n))
	}
	if req.TargetHeight > 0 {
		lines = append(lines, fmt.Sprintf("Output height: %dpx, with the subject fully in frame.", req.TargetHeight))
	}
	return strings.Join(lines, "\n")
}

func composeRefinePrompt(req RefineRequest) string {
	prompt := "Edit this image: " + strings.TrimSpace(req.Instruction)
	if n := len(req.References); n > 0 {
		prompt += fmt.Sprintf("\nUse the %d attached reference image(s) as guidance.", n)
	}
	return prompt
}

func composeReframePrompt(req ReframeRequest) string {
	prompt := fmt.Sprintf("Extend or crop this image to a height of %dpx without distorting the subject; fill new areas seamlessly.", req.TargetHeight)
	if layout := strings.TrimSpace(req.Layout); layout != "" {
		prompt += "\nLayout: " + layout
	}
	return prompt
}

const describePrompt = "In one short sentence, say which visual elements of this reference image " +
	"(palette, lighting, texture, composition) should be reused in a marketing background. " +
	"Reply with the sentence only."
