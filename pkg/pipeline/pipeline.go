package pipeline

import (
	"cmp"
	"context"

	"github.com/openai/openai-go/v3"

	"storybook/pkg/catalog"
	"storybook/pkg/inference"
	"storybook/pkg/prompt"
	"storybook/pkg/render"
	"storybook/pkg/schema"
)

// Gateway is what the pipeline needs from the AI backends.
type Gateway interface {
	Generate(ctx context.Context, req inference.GenerateRequest) ([]byte, error)
	Analyze(ctx context.Context, image []byte, instruction string) (string, error)
	TryEnrich(ctx context.Context, image []byte, instruction, operation string) (inference.Enrichment, bool)
	Write(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
}

var _ Gateway = (*inference.Gateway)(nil)

// Stage names a step of a book's lifecycle. The caller carries all state
// between stages; the pipeline keeps none.
type Stage int

const (
	StageExtracted Stage = iota
	StageRevealed
	StageStoriesGenerated
	StageThemeSelected
	StageCoverGenerated
	StageEpisodeGenerated
)

func (s Stage) String() string {
	switch s {
	case StageExtracted:
		return "extracted"
	case StageRevealed:
		return "revealed"
	case StageStoriesGenerated:
		return "stories_generated"
	case StageThemeSelected:
		return "theme_selected"
	case StageCoverGenerated:
		return "cover_generated"
	case StageEpisodeGenerated:
		return "episode_generated"
	default:
		return "unknown"
	}
}

type Options struct {
	Size       string
	Quality    string
	StoryCount int
	Layout     render.Layout
}

type Pipeline struct {
	catalog  *catalog.Catalog
	gateway  Gateway
	renderer render.PageRenderer
	opts     Options
}

func New(cat *catalog.Catalog, gateway Gateway, renderer render.PageRenderer, opts Options) *Pipeline {
	opts.Size = cmp.Or(opts.Size, "1024x1536")
	opts.Quality = cmp.Or(opts.Quality, "low")
	opts.StoryCount = cmp.Or(opts.StoryCount, 3)
	return &Pipeline{
		catalog:  cat,
		gateway:  gateway,
		renderer: renderer,
		opts:     opts,
	}
}

func (p *Pipeline) Catalog() *catalog.Catalog {
	return p.catalog
}

// rules validates a caller-supplied age level before any other work.
func (p *Pipeline) rules(level schema.AgeLevel) (schema.AgeRules, error) {
	if !level.Valid() {
		return schema.AgeRules{}, schema.ErrInvalidAgeLevel.Withf("unknown age level %q", level)
	}
	rules, err := p.catalog.AgeRules(level)
	if err != nil {
		return schema.AgeRules{}, schema.ErrInvalidAgeLevel.Withf("no rules for age level %q", level).Wrap(err)
	}
	return rules, nil
}

func (p *Pipeline) quality(q string) string {
	return cmp.Or(q, p.opts.Quality)
}

// revealDescription returns the caller's reveal description, or asks the
// vision backend for one when only the reveal image was sent.
func (p *Pipeline) revealDescription(ctx context.Context, c schema.CharacterProfile, reveal schema.RevealArtifact) string {
	if reveal.Description != "" || len(reveal.Image) == 0 {
		return reveal.Description
	}
	enrichment, ok := p.gateway.TryEnrich(ctx, reveal.Image, prompt.RevealAnalysis(c.Name), "reveal_analysis")
	if !ok {
		return ""
	}
	return enrichment.Description
}
