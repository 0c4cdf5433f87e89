package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"storybook/pkg/inference"
	"storybook/pkg/prompt"
	"storybook/pkg/schema"
	"storybook/pkg/utils"
)

const structureSystem = `You convert descriptions of a child's drawn character into JSON. Keep every detail, never invent features, and never state exact counts of repeated parts.`

// Extract describes the character in a drawing. The structured profile is
// canonical; when the vision reply cannot be turned into one, the raw text
// becomes the description and degraded is true.
func (p *Pipeline) Extract(ctx context.Context, drawing []byte, name string) (profile schema.CharacterProfile, degraded bool, err error) {
	name = strings.TrimSpace(name)
	if len(drawing) == 0 {
		return profile, false, schema.ErrInvalidRequest.Withf("drawing is required")
	}
	if name == "" {
		return profile, false, schema.ErrInvalidRequest.Withf("character name is required")
	}

	text, err := p.gateway.Analyze(ctx, drawing, prompt.Extraction(name))
	if err != nil {
		return profile, false, err
	}
	if refused(text) {
		return profile, false, schema.ErrBackendRejected.Withf("vision backend declined to describe the drawing: %s", utils.LimitStr(text, 120))
	}

	profile, ok := parseProfile(text)
	if !ok {
		profile, ok = p.structure(ctx, name, text)
	}
	if !ok {
		log.Warn("Character extraction returned free text, using degraded profile", "name", name,
			"category", schema.CategoryDegraded, "text", utils.LimitStr(text, 80))
		profile = schema.CharacterProfile{Description: strings.TrimSpace(text)}
		degraded = true
	}
	profile.Name = name
	profile = profile.Normalize()

	log.Info("Character extracted", "name", name, "degraded", degraded, "stage", StageExtracted)
	return profile, degraded, nil
}

// structure asks the story backend to turn a free text description into a
// profile. Failure is not an error.
func (p *Pipeline) structure(ctx context.Context, name, text string) (schema.CharacterProfile, bool) {
	params := &openai.ChatCompletionNewParams{
		ResponseFormat:      schema.CharacterProfileResponseFormat(),
		MaxCompletionTokens: openai.Int(utils.CompletionBudget(text, 600, 1024)),
	}
	user := "Character name: " + name + "\n\nDescription:\n" + text
	out, err := p.gateway.Write(ctx, params, structureSystem, user)
	if err != nil {
		log.Warn("Could not structure character description", "name", name, "error", err)
		return schema.CharacterProfile{}, false
	}
	return parseProfile(out)
}

func refused(text string) bool {
	head := utils.LimitStr(strings.TrimSpace(text), 80)
	return !strings.HasPrefix(head, "{") && utils.StringContains(head, false, "i can't", "i cannot", "i'm sorry", "i am unable", "i'm unable")
}

func parseProfile(text string) (schema.CharacterProfile, bool) {
	var profile schema.CharacterProfile
	raw := utils.ExtractJSONObject(utils.CleanJSON(text))
	if raw == "" {
		return profile, false
	}
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return profile, false
	}
	if strings.TrimSpace(profile.Description) == "" {
		return profile, false
	}
	return profile, true
}

// Reveal renders the character as a full colour 3D figure using the drawing
// as reference, then optionally describes the result for later pages.
func (p *Pipeline) Reveal(ctx context.Context, drawing []byte, c schema.CharacterProfile, quality string) (schema.RevealArtifact, error) {
	c = c.Normalize()
	img, err := p.gateway.Generate(ctx, inference.GenerateRequest{
		Prompt:    prompt.Reveal(c),
		Size:      p.opts.Size,
		Quality:   p.quality(quality),
		Reference: drawing,
	})
	if err != nil {
		return schema.RevealArtifact{}, err
	}

	reveal := schema.RevealArtifact{Description: c.Description, Image: img}
	if enrichment, ok := p.gateway.TryEnrich(ctx, img, prompt.RevealAnalysis(c.Name), "reveal_analysis"); ok {
		reveal.Description = utils.SoftenCounts(enrichment.Description)
	}

	log.Info("Reveal generated", "name", c.Name, "stage", StageRevealed)
	return reveal, nil
}

// ExtractAndReveal runs the first two stages for a freshly uploaded drawing.
func (p *Pipeline) ExtractAndReveal(ctx context.Context, drawing []byte, name, quality string) (schema.ExtractionResult, error) {
	profile, degraded, err := p.Extract(ctx, drawing, name)
	if err != nil {
		return schema.ExtractionResult{}, err
	}
	reveal, err := p.Reveal(ctx, drawing, profile, quality)
	if err != nil {
		return schema.ExtractionResult{}, err
	}
	return schema.ExtractionResult{Character: profile, Reveal: reveal, Degraded: degraded}, nil
}
