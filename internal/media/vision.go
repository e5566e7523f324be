package media

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"
)

// descriptionPrompt is the fixed prompt the ingestion pipeline sends with
// every image, per spec §4.6. It asks for a short description plus a final
// numbered slug line ParseSlug can extract deterministically.
const descriptionPrompt = `Describe this image in four short numbered points:
1) What it shows
2) Notable text, if any
3) Notable objects or people
4) Overall mood or context
Then add a fifth line with a machine-readable slug: two or three lowercase
words separated by hyphens, summarizing the image, in this exact form:
5) Slug: <slug>`

// GeminiDescriber implements Describer using Google's Gen AI SDK's
// multimodal generation. It is a standalone vision client rather than a
// agent.Provider adapter: description calls are one-shot (no tool loop,
// no conversation history) so they don't belong behind the Runner's
// provider interface.
type GeminiDescriber struct {
	client       *genai.Client
	defaultModel string
}

// GeminiDescriberConfig configures NewGeminiDescriber.
type GeminiDescriberConfig struct {
	APIKey       string
	DefaultModel string
}

// NewGeminiDescriber creates a Gemini-backed Describer.
func NewGeminiDescriber(ctx context.Context, cfg GeminiDescriberConfig) (*GeminiDescriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini vision: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini vision: create client: %w", err)
	}
	return &GeminiDescriber{client: client, defaultModel: cfg.DefaultModel}, nil
}

// Describe prepares the image for vision consumption, calls Gemini with the
// fixed description prompt, and parses out the machine-readable slug.
func (d *GeminiDescriber) Describe(imageData []byte, mimeType string) (string, string, error) {
	encoded, preparedMIME, err := PrepareForVision(imageData)
	if err != nil {
		return "", "", err
	}
	_ = mimeType // the source MIME is informational only; PrepareForVision normalizes to PNG.

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", fmt.Errorf("gemini vision: decode prepared image: %w", err)
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: descriptionPrompt},
			{InlineData: &genai.Blob{MIMEType: preparedMIME, Data: decoded}},
		},
	}}

	resp, err := d.client.Models.GenerateContent(context.Background(), d.defaultModel, contents, nil)
	if err != nil {
		return "", "", fmt.Errorf("gemini vision: generate: %w", err)
	}

	description := flattenText(resp)
	if description == "" {
		return "", "", fmt.Errorf("gemini vision: empty description")
	}
	return description, ParseSlug(description), nil
}

func flattenText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text
}
