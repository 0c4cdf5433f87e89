package inference

import (
	"bytes"
	"cmp"
	"context"
	"encoding/base64"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"storybook/pkg/schema"
	"storybook/pkg/utils"
)

// OpenAI implements Backend using OpenAI's official Go SDK. The base URL can
// point at any compatible endpoint.
type OpenAI struct {
	client     *openai.Client
	apiKey     string
	model      string
	imageModel string
	fetcher    *Fetcher
}

// NewOpenAI creates a backend using model for text and vision, and
// imageModel for image generation.
func NewOpenAI(apiKey, model, imageModel string, fetcher *Fetcher) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		client:     &client,
		apiKey:     apiKey,
		model:      model,
		imageModel: imageModel,
		fetcher:    fetcher,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) ChangeBaseURL(baseURL string) {
	client := openai.NewClient(
		option.WithAPIKey(o.apiKey),
		option.WithBaseURL(baseURL),
	)
	o.client = &client
}

// Infer sends text to the chat completion endpoint and returns the output.
func (o *OpenAI) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	p := openai.ChatCompletionNewParams{}
	if params != nil {
		p = *params
	}
	p.Model = cmp.Or(p.Model, o.model)
	p.Messages = []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Role: "system",
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.Opt[string]{Value: system},
				},
			}},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Role: "user",
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: param.Opt[string]{Value: user},
				},
			},
		},
	}

	p.MaxCompletionTokens = openai.Int(cmp.Or(p.MaxCompletionTokens.Value, 4096*4))
	p.Temperature = openai.Float(cmp.Or(p.Temperature.Value, 0.3))
	p.TopP = openai.Float(cmp.Or(p.TopP.Value, 1.0))

	return o.complete(ctx, p)
}

// Analyze asks the vision model to describe image.
func (o *OpenAI) Analyze(ctx context.Context, image []byte, instruction string) (string, error) {
	p := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(instruction),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: utils.DataURL(image),
				}),
			}),
		},
		MaxCompletionTokens: openai.Int(2048),
	}
	return o.complete(ctx, p)
}

func (o *OpenAI) complete(ctx context.Context, p openai.ChatCompletionNewParams) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, p)
	if err != nil {
		return "", classify(o.Name(), err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", schema.ErrNoStoryPayload.From(o.Name(), 0).Withf("empty completion content")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate creates a new image from prompt.
func (o *OpenAI) Generate(ctx context.Context, prompt, size, quality string) ([]byte, error) {
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:  prompt,
		Model:   openai.ImageModel(o.imageModel),
		N:       openai.Int(1),
		Size:    openai.ImageGenerateParamsSize(size),
		Quality: openai.ImageGenerateParamsQuality(quality),
	})
	if err != nil {
		return nil, classify(o.Name(), err)
	}
	return o.normalize(ctx, resp)
}

// Edit redraws source according to prompt.
func (o *OpenAI) Edit(ctx context.Context, prompt string, source []byte, size, quality string) ([]byte, error) {
	resp, err := o.client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(source), "reference.png", utils.DetectImageType(source)),
		},
		Prompt:  prompt,
		Model:   openai.ImageModel(o.imageModel),
		N:       openai.Int(1),
		Size:    openai.ImageEditParamsSize(size),
		Quality: openai.ImageEditParamsQuality(quality),
	})
	if err != nil {
		return nil, classify(o.Name(), err)
	}
	return o.normalize(ctx, resp)
}

// normalize turns either payload shape into raw image bytes.
func (o *OpenAI) normalize(ctx context.Context, resp *openai.ImagesResponse) ([]byte, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, schema.ErrNoImagePayload.From(o.Name(), 0).Withf("response carried no images")
	}
	img := resp.Data[0]
	switch {
	case img.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, schema.ErrNoImagePayload.From(o.Name(), 0).Withf("decoding base64 image: %v", err)
		}
		return data, nil
	case img.URL != "" && o.fetcher != nil:
		data, err := o.fetcher.Fetch(ctx, img.URL)
		if err != nil {
			if e, ok := schema.AsError(err); ok {
				return nil, e.From(o.Name(), e.Status)
			}
			return nil, classify(o.Name(), err)
		}
		return data, nil
	default:
		return nil, schema.ErrNoImagePayload.From(o.Name(), 0).Withf("image had neither inline data nor url")
	}
}
