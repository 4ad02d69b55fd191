package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/gembooth/internal/models"
	"github.com/lehigh-university-libraries/gembooth/internal/providers"
	"google.golang.org/api/option"
)

// DefaultModel is the image model used when none is configured
const DefaultModel = "gemini-2.5-flash-image"

// Gemini transforms images with Google Gemini
type Gemini struct {
	apiKey string
}

// New returns a Gemini provider. An empty apiKey falls back to GEMINI_API_KEY.
func New(apiKey string) *Gemini {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	return &Gemini{apiKey: apiKey}
}

// Transform sends the input image and instruction to Gemini and returns the
// first image part of the answer
func (g *Gemini) Transform(ctx context.Context, req providers.Request) (models.Payload, error) {
	if g.apiKey == "" {
		return models.Payload{}, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	name := req.Model
	if name == "" {
		name = DefaultModel
	}
	model := client.GenerativeModel(name)

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: req.Input.MIMEType, Data: req.Input.Data},
		genai.Text(req.Instruction),
	)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to generate content: %w", err)
	}

	return imageFromResponse(resp)
}

func imageFromResponse(resp *genai.GenerateContentResponse) (models.Payload, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return models.Payload{}, fmt.Errorf("%w: prompt blocked (%s)", providers.ErrNoImage, resp.PromptFeedback.BlockReason)
		}
		return models.Payload{}, fmt.Errorf("%w: no candidates returned from Gemini", providers.ErrNoImage)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return models.Payload{}, fmt.Errorf("%w: empty content returned from Gemini (finish reason %s)", providers.ErrNoImage, candidate.FinishReason)
	}

	var text []string
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Blob:
			if strings.HasPrefix(p.MIMEType, "image/") {
				return models.Payload{Data: p.Data, MIMEType: p.MIMEType}, nil
			}
		case genai.Text:
			text = append(text, string(p))
		}
	}

	slog.Debug("Gemini answered without an image", "text", strings.Join(text, " "))
	return models.Payload{}, fmt.Errorf("%w: %s", providers.ErrNoImage, strings.TrimSpace(strings.Join(text, " ")))
}
