package inference

import (
	"context"

	"github.com/openai/openai-go/v3"
)

// Inferencer runs a text completion.
type Inferencer interface {
	Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
}

// VisionAnalyzer describes an image according to an instruction.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, image []byte, instruction string) (string, error)
}

// ImageGenerator creates images from text, or edits a source image.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, size, quality string) ([]byte, error)
	Edit(ctx context.Context, prompt string, source []byte, size, quality string) ([]byte, error)
}

// Backend is a provider offering every capability the pipeline uses.
type Backend interface {
	Name() string
	Inferencer
	VisionAnalyzer
	ImageGenerator
}
