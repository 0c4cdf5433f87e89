package inference

import (
	"cmp"
	"context"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"storybook/pkg/schema"
	"storybook/pkg/utils"
)

// Gemini implements Backend using the Google GenAI SDK.
type Gemini struct {
	client     *genai.Client
	apiKey     string
	model      string
	imageModel string
}

func NewGemini(ctx context.Context, apiKey, model, imageModel string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, schema.ErrMissingCredential.Withf("creating gemini client: %v", err).Wrap(err)
	}
	return &Gemini{
		client:     client,
		apiKey:     apiKey,
		model:      cmp.Or(model, "gemini-2.5-flash"),
		imageModel: cmp.Or(imageModel, "gemini-2.5-flash-image"),
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Infer runs a JSON text completion. Only Model and MaxCompletionTokens are
// read from params.
func (g *Gemini) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		MaxOutputTokens:   int32(cmp.Or(params.MaxCompletionTokens.Value, 4096*4)),
	}

	result, err := g.client.Models.GenerateContent(ctx, cmp.Or(params.Model, g.model), genai.Text(user), config)
	if err != nil {
		return "", classify(g.Name(), err)
	}
	text := result.Text()
	if text == "" {
		return "", schema.ErrNoStoryPayload.From(g.Name(), 0).Withf("empty completion content")
	}
	return text, nil
}

func (g *Gemini) Analyze(ctx context.Context, image []byte, instruction string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, utils.DetectImageType(image)),
			genai.NewPartFromText(instruction),
		}, genai.RoleUser),
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", classify(g.Name(), err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", schema.ErrNoStoryPayload.From(g.Name(), 0).Withf("empty vision response")
	}
	return text, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt, size, quality string) ([]byte, error) {
	return g.image(ctx, []*genai.Part{genai.NewPartFromText(prompt)}, size)
}

func (g *Gemini) Edit(ctx context.Context, prompt string, source []byte, size, quality string) ([]byte, error) {
	return g.image(ctx, []*genai.Part{
		genai.NewPartFromBytes(source, utils.DetectImageType(source)),
		genai.NewPartFromText(prompt),
	}, size)
}

// image asks the image model for a picture and returns the first inline
// image part. Gemini has no quality knob; size only sets the aspect ratio.
func (g *Gemini) image(ctx context.Context, parts []*genai.Part, size string) ([]byte, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if ratio := aspectRatio(size); ratio != "" {
		config.ImageConfig = &genai.ImageConfig{AspectRatio: ratio}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.imageModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return nil, classify(g.Name(), err)
	}
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, schema.ErrNoImagePayload.From(g.Name(), 0).Withf("response carried no image part: %s", utils.LimitStr(result.Text(), 120))
}

var aspectRatios = map[string]string{
	"1:1": "1:1", "2:3": "2:3", "3:2": "3:2", "3:4": "3:4",
	"4:3": "4:3", "9:16": "9:16", "16:9": "16:9", "21:9": "21:9",
}

// aspectRatio reduces a WxH size to one of the ratios Gemini accepts.
func aspectRatio(size string) string {
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return ""
	}
	wi, err1 := strconv.Atoi(w)
	hi, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil || wi <= 0 || hi <= 0 {
		return ""
	}
	d := gcd(wi, hi)
	return aspectRatios[strconv.Itoa(wi/d)+":"+strconv.Itoa(hi/d)]
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
