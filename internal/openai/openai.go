package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"

	"github.com/lehigh-university-libraries/gembooth/internal/images"
	"github.com/lehigh-university-libraries/gembooth/internal/models"
	"github.com/lehigh-university-libraries/gembooth/internal/providers"
)

const (
	// DefaultModel is the image model used when none is configured
	DefaultModel   = "gpt-image-1"
	defaultBaseURL = "https://api.openai.com/v1"
)

// OpenAI transforms images with the OpenAI image edit endpoint
type OpenAI struct {
	apiKey     string
	baseURL    string
	HTTPClient *http.Client
}

// New returns an OpenAI provider. Empty arguments fall back to
// OPENAI_API_KEY and OPENAI_BASE_URL.
func New(apiKey, baseURL string) *OpenAI {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Transform edits the input image according to the instruction
func (o *OpenAI) Transform(ctx context.Context, req providers.Request) (models.Payload, error) {
	if o.apiKey == "" {
		return models.Payload{}, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("model", model); err != nil {
		return models.Payload{}, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := w.WriteField("prompt", req.Instruction); err != nil {
		return models.Payload{}, fmt.Errorf("failed to write prompt field: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="photo%s"`, images.Extension(req.Input.MIMEType)))
	header.Set("Content-Type", req.Input.MIMEType)
	part, err := w.CreatePart(header)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(req.Input.Data); err != nil {
		return models.Payload{}, fmt.Errorf("failed to write image part: %w", err)
	}
	if err := w.Close(); err != nil {
		return models.Payload{}, fmt.Errorf("failed to close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/images/edits", &body)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.HTTPClient.Do(httpReq)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.Payload{}, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return models.Payload{}, fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Data) == 0 || response.Data[0].B64JSON == "" {
		return models.Payload{}, fmt.Errorf("%w: no images returned from OpenAI", providers.ErrNoImage)
	}

	data, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to decode image: %w", err)
	}

	return models.Payload{Data: data, MIMEType: images.SniffMIMEType(data)}, nil
}
