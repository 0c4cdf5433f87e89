package inference

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"storybook/pkg/queue"
	"storybook/pkg/schema"
)

// GenerateRequest describes one image. A non-empty Reference turns the call
// into an edit of that image.
type GenerateRequest struct {
	Prompt    string
	Size      string
	Quality   string
	Reference []byte
}

// Enrichment is the result of an optional vision pass.
type Enrichment struct {
	Description string
	Backend     string
}

type GatewayOptions struct {
	// Images is the ordered fallback chain for image generation.
	Images []Backend
	// Vision answers Analyze and TryEnrich. Defaults to Images[0].
	Vision Backend
	// Writer answers Write. Defaults to Vision.
	Writer Backend
	// Timeout bounds every upstream call.
	Timeout time.Duration
	Metrics *Metrics
}

// Gateway is the only path from the pipeline to AI backends.
type Gateway struct {
	images  []Backend
	vision  Backend
	writer  Backend
	timeout time.Duration
	metrics *Metrics
	queue   queue.Queue
}

func NewGateway(opts GatewayOptions) (*Gateway, error) {
	if len(opts.Images) == 0 {
		return nil, schema.ErrMissingCredential.Withf("no image backend configured")
	}
	g := &Gateway{
		images:  opts.Images,
		vision:  opts.Vision,
		writer:  opts.Writer,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
	}
	if g.vision == nil {
		g.vision = opts.Images[0]
	}
	if g.writer == nil {
		g.writer = g.vision
	}
	if g.timeout <= 0 {
		g.timeout = 120 * time.Second
	}
	return g, nil
}

// UseQueue routes Generate through q. The queue's work function should be
// g.Render.
func (g *Gateway) UseQueue(q queue.Queue) {
	g.queue = q
}

// Backends lists the image chain in preference order.
func (g *Gateway) Backends() []string {
	names := make([]string, len(g.images))
	for i, b := range g.images {
		names[i] = b.Name()
	}
	return names
}

// Generate produces one image, waiting for a queue slot when a queue is set.
func (g *Gateway) Generate(ctx context.Context, req GenerateRequest) ([]byte, error) {
	qr := &queue.Request{
		Ctx:       ctx,
		Prompt:    req.Prompt,
		Size:      req.Size,
		Quality:   req.Quality,
		Reference: req.Reference,
	}
	if g.queue == nil {
		return g.Render(ctx, qr)
	}

	respCh, errCh, err := g.queue.Add(qr)
	if err != nil {
		return nil, err
	}
	select {
	case data, ok := <-respCh:
		if ok {
			return data, nil
		}
		return nil, <-errCh
	case <-ctx.Done():
		return nil, schema.ErrBackendUnavailable.Withf("waiting for image: %v", ctx.Err()).Wrap(ctx.Err())
	}
}

// Render walks the image chain. Only BackendUnavailable moves on to the next
// backend; every other failure is returned as-is.
func (g *Gateway) Render(ctx context.Context, req *queue.Request) ([]byte, error) {
	operation := "generate"
	if len(req.Reference) > 0 {
		operation = "edit"
	}

	var errs []error
	for i, backend := range g.images {
		data, err := g.renderWith(ctx, backend, operation, req)
		if err == nil {
			return data, nil
		}
		errs = append(errs, err)
		if !errors.Is(err, schema.ErrBackendUnavailable) || ctx.Err() != nil || i == len(g.images)-1 {
			break
		}
		log.Warn("Image backend unavailable, falling back", "backend", backend.Name(), "next", g.images[i+1].Name(), "error", err)
	}
	return nil, errs[len(errs)-1]
}

func (g *Gateway) renderWith(ctx context.Context, backend Backend, operation string, req *queue.Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	var data []byte
	var err error
	if operation == "edit" {
		data, err = backend.Edit(ctx, req.Prompt, req.Reference, req.Size, req.Quality)
	} else {
		data, err = backend.Generate(ctx, req.Prompt, req.Size, req.Quality)
	}
	if err == nil && len(data) == 0 {
		err = schema.ErrNoImagePayload.From(backend.Name(), 0).Withf("empty image")
	}
	err = classify(backend.Name(), err)
	g.metrics.observe(backend.Name(), operation, start, err)

	log.Debug("Upstream call", "backend", backend.Name(), "operation", operation, "duration", time.Since(start), "error", err)
	return data, err
}

// Analyze runs a primary vision call. Failures are surfaced.
func (g *Gateway) Analyze(ctx context.Context, image []byte, instruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.vision.Analyze(ctx, image, instruction)
	err = classify(g.vision.Name(), err)
	g.metrics.observe(g.vision.Name(), "analyze", start, err)
	return text, err
}

// TryEnrich runs an optional vision call. A failure is logged as degraded and
// reported only through ok.
func (g *Gateway) TryEnrich(ctx context.Context, image []byte, instruction, operation string) (Enrichment, bool) {
	if len(image) == 0 {
		return Enrichment{}, false
	}
	text, err := g.Analyze(ctx, image, instruction)
	if err == nil && text == "" {
		err = schema.ErrNoStoryPayload.From(g.vision.Name(), 0).Withf("empty description")
	}
	if err != nil {
		degraded := schema.ErrEnrichmentFailed.From(g.vision.Name(), 0).Withf("%s", operation).Wrap(err)
		log.Warn("Enrichment skipped", "operation", operation, "category", degraded.Category, "error", degraded)
		g.metrics.degrade(operation)
		return Enrichment{}, false
	}
	return Enrichment{Description: text, Backend: g.vision.Name()}, true
}

// Write runs a text completion on the story backend.
func (g *Gateway) Write(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.writer.Infer(ctx, params, system, user)
	err = classify(g.writer.Name(), err)
	g.metrics.observe(g.writer.Name(), "write", start, err)
	return text, err
}
