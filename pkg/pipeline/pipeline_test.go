package pipeline

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook/pkg/catalog"
	"storybook/pkg/inference"
	"storybook/pkg/render"
	"storybook/pkg/schema"
)

type fakeBackend struct {
	mu sync.Mutex

	image     []byte
	imageErr  error
	vision    []string
	visionErr error
	texts     []string

	prompts   []string
	calls     int
	analyses  int
	writes    int
	reference [][]byte
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Infer(_ context.Context, _ *openai.ChatCompletionNewParams, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.writes++
	if len(f.texts) == 0 {
		return "", schema.ErrNoStoryPayload
	}
	text := f.texts[0]
	f.texts = f.texts[1:]
	return text, nil
}

func (f *fakeBackend) Analyze(context.Context, []byte, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.analyses++
	if f.visionErr != nil {
		return "", f.visionErr
	}
	if len(f.vision) == 0 {
		return "", schema.ErrNoStoryPayload
	}
	text := f.vision[0]
	f.vision = f.vision[1:]
	return text, nil
}

func (f *fakeBackend) Generate(_ context.Context, prompt, _, _ string) ([]byte, error) {
	return f.Edit(context.Background(), prompt, nil, "", "")
}

func (f *fakeBackend) Edit(_ context.Context, prompt string, source []byte, _, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.reference = append(f.reference, source)
	return f.image, f.imageErr
}

func (f *fakeBackend) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

type fakeRenderer struct{}

func (fakeRenderer) Compose(img []byte, title, story string, _ render.Layout) ([]byte, error) {
	return []byte("page:" + title + ":" + string(img)), nil
}

func newPipeline(t *testing.T, b *fakeBackend) *Pipeline {
	t.Helper()
	cat, err := catalog.Embedded().Load()
	require.NoError(t, err)
	gw, err := inference.NewGateway(inference.GatewayOptions{Images: []inference.Backend{b}})
	require.NoError(t, err)
	return New(cat, gw, fakeRenderer{}, Options{})
}

func sparkle() schema.CharacterProfile {
	return schema.CharacterProfile{Name: "Sparkle", KeyFeature: "extra arms", Description: "a round purple monster with 6 arms"}
}

func TestEpisodeSparkleScenario(t *testing.T) {
	b := &fakeBackend{image: []byte("png")}
	p := newPipeline(t, b)

	page, err := p.Episode(t.Context(), schema.EpisodeRequest{
		Character:  sparkle(),
		Theme:      "the_lucky_clover_charm",
		EpisodeNum: 1,
		AgeLevel:   schema.Age7,
	})
	require.NoError(t, err)

	text := b.lastPrompt()
	assert.Contains(t, text, "Sparkle")
	assert.Contains(t, text, "extra arms")
	assert.Contains(t, text, "black lines on white")
	assert.NotRegexp(t, regexp.MustCompile(`\d+\s+(extra\s+)?arms`), text)
	assert.NotContains(t, text, "{")

	assert.Equal(t, 1, page.EpisodeNum)
	assert.Equal(t, "The Unlucky Morning", page.Title)
	assert.NotEmpty(t, page.ColoringImage)
	assert.NotEmpty(t, page.FullPageImage)
	assert.Contains(t, page.StoryText, "Sparkle")
	assert.NotContains(t, page.StoryText, "{name}")
}

func TestUnknownAgeLevelMakesNoCalls(t *testing.T) {
	b := &fakeBackend{image: []byte("png")}
	p := newPipeline(t, b)
	ctx := t.Context()

	_, err := p.Episode(ctx, schema.EpisodeRequest{Character: sparkle(), Theme: "forest", EpisodeNum: 1, AgeLevel: "age_99"})
	assert.ErrorIs(t, err, schema.ErrInvalidAgeLevel)
	e, ok := schema.AsError(err)
	require.True(t, ok)
	assert.Equal(t, schema.CategoryValidation, e.Category)

	_, err = p.Stories(ctx, schema.StoriesRequest{Character: sparkle(), AgeLevel: "age_99"})
	assert.ErrorIs(t, err, schema.ErrInvalidAgeLevel)
	_, err = p.Cover(ctx, schema.CoverRequest{Character: sparkle(), Theme: "forest", AgeLevel: "age_99"})
	assert.ErrorIs(t, err, schema.ErrInvalidAgeLevel)
	_, err = p.Adventure(ctx, schema.AdventureRequest{Character: sparkle(), Theme: "forest", AgeLevel: "age_99"}, nil)
	assert.ErrorIs(t, err, schema.ErrInvalidAgeLevel)

	assert.Zero(t, b.calls)
}

func TestEpisodeNumBoundaries(t *testing.T) {
	b := &fakeBackend{image: []byte("png")}
	p := newPipeline(t, b)

	for _, num := range []int{0, 11, -1} {
		_, err := p.Episode(t.Context(), schema.EpisodeRequest{Character: sparkle(), Theme: "forest", EpisodeNum: num, AgeLevel: schema.Age6})
		assert.ErrorIs(t, err, schema.ErrInvalidEpisodeNum, num)
	}
	assert.Zero(t, b.calls)

	for num := 1; num <= schema.EpisodeCount; num++ {
		_, err := p.Episode(t.Context(), schema.EpisodeRequest{Character: sparkle(), Theme: "forest", EpisodeNum: num, AgeLevel: schema.Age6})
		assert.NoError(t, err, num)
	}
}

func TestEpisodeUnknownThemeMakesNoCalls(t *testing.T) {
	b := &fakeBackend{image: []byte("png")}
	p := newPipeline(t, b)

	_, err := p.Episode(t.Context(), schema.EpisodeRequest{Character: sparkle(), Theme: "nope", EpisodeNum: 1, AgeLevel: schema.Age6})
	assert.ErrorIs(t, err, schema.ErrUnknownTheme)
	assert.Zero(t, b.calls)
}

func TestEpisodeSurvivesEnrichmentFailure(t *testing.T) {
	b := &fakeBackend{image: []byte("png"), visionErr: errors.New("vision down")}
	p := newPipeline(t, b)

	page, err := p.Episode(t.Context(), schema.EpisodeRequest{
		Character:  sparkle(),
		Theme:      "forest",
		EpisodeNum: 2,
		AgeLevel:   schema.Age5,
		Reveal:     schema.RevealArtifact{Image: []byte("reveal")},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, page.ColoringImage)
	assert.Equal(t, 1, b.analyses)
	assert.NotContains(t, b.lastPrompt(), "CHARACTER CONSISTENCY")
	assert.Equal(t, []byte("reveal"), b.reference[len(b.reference)-1])
}

func TestEpisodeUsesSuppliedRevealDescription(t *testing.T) {
	b := &fakeBackend{image: []byte("png")}
	p := newPipeline(t, b)

	_, err := p.Episode(t.Context(), schema.EpisodeRequest{
		Character:  sparkle(),
		Theme:      "forest",
		EpisodeNum: 3,
		AgeLevel:   schema.Age5,
		Reveal:     schema.RevealArtifact{Image: []byte("reveal"), Description: "a fluffy purple monster"},
	})
	require.NoError(t, err)
	assert.Zero(t, b.analyses)
	assert.Contains(t, b.lastPrompt(), "a fluffy purple monster")
}

func TestEpisodeSurfacesPrimaryFailure(t *testing.T) {
	b := &fakeBackend{imageErr: schema.ErrBackendRejected.From("fake", 400)}
	p := newPipeline(t, b)

	_, err := p.Episode(t.Context(), schema.EpisodeRequest{Character: sparkle(), Theme: "forest", EpisodeNum: 1, AgeLevel: schema.Age6})
	assert.ErrorIs(t, err, schema.ErrBackendRejected)
}

func TestEpisodeCustomScene(t *testing.T) {
	b := &fakeBackend{image: []byte("png")}
	p := newPipeline(t, b)

	page, err := p.Episode(t.Context(), schema.EpisodeRequest{
		Character:  sparkle(),
		Theme:      "generated_theme",
		EpisodeNum: 4,
		AgeLevel:   schema.Age8,
		Scene: &schema.StoryEpisode{
			Title:            "The Lighthouse",
			SceneDescription: "{name} climbs the lighthouse stairs",
			StoryText:        "{name} reaches the top.",
			Emotion:          "determined",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sparkle reaches the top.", page.StoryText)
	assert.Contains(t, b.lastPrompt(), "Sparkle climbs the lighthouse stairs")
	assert.Contains(t, b.lastPrompt(), "determined expression")
	assert.False(t, page.IsChoicePoint)
}

func TestAdventureThreadsChoicePath(t *testing.T) {
	b := &fakeBackend{image: []byte("png")}
	p := newPipeline(t, b)

	var emitted []int
	resp, err := p.Adventure(t.Context(), schema.AdventureRequest{
		Character: sparkle(),
		Theme:     "forest",
		AgeLevel:  schema.Age6,
		Choices:   "b",
	}, func(page schema.EpisodePage) error {
		emitted = append(emitted, page.EpisodeNum)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "BA", resp.ChoicePath)
	require.Len(t, resp.Episodes, schema.EpisodeCount)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, emitted)
	assert.Equal(t, "", resp.Episodes[4].ChoicePath)
	assert.True(t, resp.Episodes[4].IsChoicePoint)
	assert.Equal(t, "B", resp.Episodes[5].ChoicePath)
	assert.Equal(t, "BA", resp.Episodes[9].ChoicePath)

	spec, err := p.Catalog().Episode("forest", 10, "BA")
	require.NoError(t, err)
	want := strings.ReplaceAll(catalog.Story(spec, schema.Age6), "{name}", "Sparkle")
	assert.Equal(t, want, resp.Episodes[9].StoryText)
}

func TestAdventureKeepsPagesBeforeFailure(t *testing.T) {
	b := &fakeBackend{image: []byte("png")}
	p := newPipeline(t, b)

	resp, err := p.Adventure(t.Context(), schema.AdventureRequest{
		Character: sparkle(),
		Theme:     "forest",
		AgeLevel:  schema.Age6,
	}, func(page schema.EpisodePage) error {
		if page.EpisodeNum == 3 {
			b.mu.Lock()
			b.imageErr = schema.ErrBackendRejected
			b.mu.Unlock()
		}
		return nil
	})
	require.ErrorIs(t, err, schema.ErrBackendRejected)
	assert.Len(t, resp.Episodes, 3)
}

func TestExtractStructuredProfile(t *testing.T) {
	b := &fakeBackend{vision: []string{"```json\n{\"name\":\"Blob\",\"description\":\"a green blob with 8 legs\",\"key_feature\":\"three eyes\",\"colors\":[\"green\",\"\"]}\n```"}}
	p := newPipeline(t, b)

	profile, degraded, err := p.Extract(t.Context(), []byte("drawing"), "Sparkle")
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, "Sparkle", profile.Name)
	assert.Equal(t, "a green blob with lots of legs", profile.Description)
	assert.Equal(t, "lots of eyes", profile.KeyFeature)
	assert.Equal(t, schema.DefaultPose, profile.Pose)
	assert.Equal(t, []string{"green"}, profile.Colors)
}

func TestExtractDegradesToFreeText(t *testing.T) {
	b := &fakeBackend{vision: []string{"A smiling yellow star with long wavy arms."}}
	p := newPipeline(t, b)

	profile, degraded, err := p.Extract(t.Context(), []byte("drawing"), "Sparkle")
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, "A smiling yellow star with long wavy arms.", profile.Description)
	assert.Equal(t, schema.DefaultPersonality, profile.Personality)
	assert.Equal(t, schema.DefaultKeyFeature, profile.KeyFeature)
	assert.Equal(t, 1, b.writes)
}

func TestExtractAndRevealFallsBackToProfileDescription(t *testing.T) {
	b := &fakeBackend{
		image:  []byte("reveal"),
		vision: []string{`{"name":"x","description":"a blue cat","key_feature":"a long tail"}`},
	}
	p := newPipeline(t, b)

	res, err := p.ExtractAndReveal(t.Context(), []byte("drawing"), "Sparkle", "")
	require.NoError(t, err)
	assert.Equal(t, "a blue cat", res.Reveal.Description)
	assert.Equal(t, []byte("reveal"), res.Reveal.Image)
	assert.Equal(t, []byte("drawing"), b.reference[0])
}

func storyJSON(names ...string) string {
	var themes []string
	for _, n := range names {
		var eps []string
		for i := 1; i <= schema.EpisodeCount; i++ {
			eps = append(eps, `{"episode_num":`+strconv.Itoa(i)+`,"title":"t","scene_description":"{name} at 3 castles","story_text":"{name} goes","emotion":"Happy"}`)
		}
		themes = append(themes, `{"theme_name":"`+n+`","theme_description":"a tale about `+n+`","theme_blurb":"b","episodes":[`+strings.Join(eps, ",")+`]}`)
	}
	return `{"themes":[` + strings.Join(themes, ",") + `]}`
}

func TestStoriesRepairsAndCleans(t *testing.T) {
	b := &fakeBackend{texts: []string{
		`{"themes":[{"theme_name":"broken"`,
		storyJSON("The Lost Kite", "The Lost Kite", "Moon Garden Mystery"),
	}}
	p := newPipeline(t, b)

	resp, err := p.Stories(t.Context(), schema.StoriesRequest{Character: sparkle(), AgeLevel: schema.Age6})
	require.NoError(t, err)
	assert.Equal(t, 2, b.writes)
	require.Len(t, resp.Themes, 2)
	assert.Equal(t, "the_lost_kite", resp.Themes[0].ThemeID)
	ep := resp.Themes[0].Episodes[0]
	assert.Equal(t, "Sparkle goes", ep.StoryText)
	assert.Equal(t, "happy", ep.Emotion)
	assert.Equal(t, "{name} at lots of castles", ep.SceneDescription)
}

func TestStoriesWithoutUsableOptions(t *testing.T) {
	b := &fakeBackend{texts: []string{`{"themes":[{"theme_name":"short","episodes":[]}]}`}}
	p := newPipeline(t, b)

	_, err := p.Stories(t.Context(), schema.StoriesRequest{Character: sparkle(), AgeLevel: schema.Age6})
	assert.ErrorIs(t, err, schema.ErrNoStoryPayload)
}

func TestCoverUsesCatalogTheme(t *testing.T) {
	b := &fakeBackend{image: []byte("png")}
	p := newPipeline(t, b)

	cover, err := p.Cover(t.Context(), schema.CoverRequest{Character: sparkle(), Theme: "the_lucky_clover_charm", AgeLevel: schema.Age7})
	require.NoError(t, err)
	theme, err := p.Catalog().Theme("the_lucky_clover_charm")
	require.NoError(t, err)
	assert.Equal(t, "Sparkle and "+theme.Name, cover.Title)
	assert.Contains(t, b.lastPrompt(), cover.Title)
	assert.NotEmpty(t, cover.FullPageImage)
}

func TestStageNames(t *testing.T) {
	assert.Equal(t, "revealed", StageRevealed.String())
	assert.Equal(t, "episode_generated", StageEpisodeGenerated.String())
}

func TestCheckAdventure(t *testing.T) {
	p := newPipeline(t, &fakeBackend{})

	assert.NoError(t, p.CheckAdventure(schema.AdventureRequest{Character: sparkle(), Theme: "forest", AgeLevel: schema.Age4}))
	assert.ErrorIs(t, p.CheckAdventure(schema.AdventureRequest{Character: sparkle(), Theme: "nope", AgeLevel: schema.Age4}), schema.ErrUnknownTheme)
	assert.ErrorIs(t, p.CheckAdventure(schema.AdventureRequest{Theme: "forest", AgeLevel: schema.Age4}), schema.ErrInvalidRequest)

	short := &schema.StoryOption{ThemeName: "short", Episodes: make([]schema.StoryEpisode, 3)}
	err := p.CheckAdventure(schema.AdventureRequest{Character: sparkle(), Theme: "generated", AgeLevel: schema.Age4, Story: short})
	assert.ErrorIs(t, err, schema.ErrInvalidRequest)
}

func TestAdventureAnalysesRevealOnce(t *testing.T) {
	b := &fakeBackend{image: []byte("png"), vision: []string{"a glossy purple monster with a crooked grin"}}
	p := newPipeline(t, b)

	resp, err := p.Adventure(t.Context(), schema.AdventureRequest{
		Character: sparkle(),
		Theme:     "forest",
		AgeLevel:  schema.Age6,
		Reveal:    schema.RevealArtifact{Image: []byte("reveal")},
	}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Episodes, schema.EpisodeCount)

	assert.Equal(t, 1, b.analyses)
	require.Len(t, b.prompts, schema.EpisodeCount)
	for _, text := range b.prompts {
		assert.Contains(t, text, "a glossy purple monster with a crooked grin")
	}
}

func TestAdventureRevealFallsBackToProfileOnce(t *testing.T) {
	b := &fakeBackend{image: []byte("png"), visionErr: errors.New("vision down")}
	p := newPipeline(t, b)

	_, err := p.Adventure(t.Context(), schema.AdventureRequest{
		Character: sparkle(),
		Theme:     "forest",
		AgeLevel:  schema.Age6,
		Reveal:    schema.RevealArtifact{Image: []byte("reveal")},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, b.analyses)
	assert.Contains(t, b.lastPrompt(), "CHARACTER CONSISTENCY")
	assert.Contains(t, b.lastPrompt(), "a round purple monster")
}
