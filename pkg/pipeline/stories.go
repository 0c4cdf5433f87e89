package pipeline

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"storybook/pkg/prompt"
	"storybook/pkg/schema"
	"storybook/pkg/utils"
)

const (
	maxStoryOptions = 5
	// duplicateThreshold is the word similarity above which two options
	// count as the same story.
	duplicateThreshold = 0.8
	tokensPerOption    = 2000
)

// Stories writes themed story options for a character. A malformed reply
// gets one repair pass; options without exactly schema.EpisodeCount episodes
// and near-duplicates are dropped.
func (p *Pipeline) Stories(ctx context.Context, req schema.StoriesRequest) (schema.StoriesResponse, error) {
	rules, err := p.rules(req.AgeLevel)
	if err != nil {
		return schema.StoriesResponse{}, err
	}
	c := req.Character.Normalize()
	if c.Name == "" {
		return schema.StoriesResponse{}, schema.ErrInvalidRequest.Withf("character name is required")
	}
	count := min(max(req.Count, 0), maxStoryOptions)
	if count == 0 {
		count = p.opts.StoryCount
	}

	system, user := prompt.Stories(c, rules, count)
	params := &openai.ChatCompletionNewParams{
		ResponseFormat:      schema.StoryOptionsResponseFormat(),
		MaxCompletionTokens: openai.Int(utils.CompletionBudget(system+user, int64(count)*tokensPerOption, 4096)),
		Temperature:         openai.Float(0.8),
	}

	text, err := p.gateway.Write(ctx, params, system, user)
	if err != nil {
		return schema.StoriesResponse{}, err
	}
	options, err := parseStories(text)
	if err != nil {
		log.Warn("Story options were malformed, asking for a fix", "name", c.Name, "error", err)
		fixSystem, fixUser := prompt.FixJSON(system, user, text)
		text, err = p.gateway.Write(ctx, params, fixSystem, fixUser)
		if err != nil {
			return schema.StoriesResponse{}, err
		}
		if options, err = parseStories(text); err != nil {
			return schema.StoriesResponse{}, schema.ErrNoStoryPayload.Withf("story options are not valid JSON after repair").Wrap(err)
		}
	}

	themes := cleanOptions(options.Themes, c.Name)
	if len(themes) == 0 {
		return schema.StoriesResponse{}, schema.ErrNoStoryPayload.Withf("no usable story options in reply")
	}

	log.Info("Story options generated", "name", c.Name, "age_level", req.AgeLevel, "count", len(themes), "stage", StageStoriesGenerated)
	return schema.StoriesResponse{CharacterName: c.Name, AgeLevel: req.AgeLevel, Themes: themes}, nil
}

func parseStories(text string) (schema.StoryOptions, error) {
	var options schema.StoryOptions
	err := json.Unmarshal([]byte(utils.ExtractJSONObject(text)), &options)
	return options, err
}

// cleanOptions keeps complete, distinct options with episodes numbered 1..N.
func cleanOptions(in []schema.StoryOption, name string) []schema.StoryOption {
	out := make([]schema.StoryOption, 0, len(in))
	for _, opt := range in {
		if len(opt.Episodes) != schema.EpisodeCount || strings.TrimSpace(opt.ThemeName) == "" {
			log.Debug("Dropping story option", "theme", opt.ThemeName, "episodes", len(opt.Episodes))
			continue
		}
		slices.SortStableFunc(opt.Episodes, func(a, b schema.StoryEpisode) int { return a.EpisodeNum - b.EpisodeNum })
		for i := range opt.Episodes {
			ep := &opt.Episodes[i]
			ep.EpisodeNum = i + 1
			ep.StoryText = prompt.FillName(ep.StoryText, name)
			ep.SceneDescription = utils.SoftenCounts(ep.SceneDescription)
			ep.Emotion = strings.ToLower(strings.TrimSpace(ep.Emotion))
			if !slices.Contains(prompt.Emotions, ep.Emotion) {
				ep.Emotion = ""
			}
		}
		if opt.ThemeID == "" {
			opt.ThemeID = slug(opt.ThemeName)
		}

		duplicate := slices.ContainsFunc(out, func(kept schema.StoryOption) bool {
			return utils.WordSimilarity(summary(kept), summary(opt)) >= duplicateThreshold
		})
		if duplicate {
			log.Debug("Dropping near-duplicate story option", "theme", opt.ThemeName)
			continue
		}
		out = append(out, opt)
	}
	return out
}

func summary(o schema.StoryOption) string {
	return o.ThemeName + " " + o.ThemeDescription
}

func slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
