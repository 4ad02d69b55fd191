package providers

import (
	"context"
	"errors"

	"github.com/lehigh-university-libraries/gembooth/internal/models"
)

// ErrNoImage is returned when a model answers without an image, usually
// because it refused the instruction.
var ErrNoImage = errors.New("model returned no image")

// Request is one image transformation call
type Request struct {
	Model       string
	Instruction string
	Input       models.Payload
}

// Transformer sends an image and an instruction to a generative image model
// and returns the generated image.
type Transformer interface {
	Transform(ctx context.Context, req Request) (models.Payload, error)
}

// Func adapts an ordinary function to the Transformer interface
type Func func(ctx context.Context, req Request) (models.Payload, error)

func (f Func) Transform(ctx context.Context, req Request) (models.Payload, error) {
	return f(ctx, req)
}
