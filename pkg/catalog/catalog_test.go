package catalog

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook/pkg/schema"
)

var leftoverRX = regexp.MustCompile(`\{[A-Za-z0-9_]*\}`)

func loadEmbedded(t *testing.T) *Catalog {
	t.Helper()
	c, err := Embedded().Load()
	require.NoError(t, err)
	return c
}

func TestAgeRulesCoverEveryLevel(t *testing.T) {
	c := loadEmbedded(t)
	for _, level := range schema.AgeLevels {
		r, err := c.AgeRules(level)
		require.NoError(t, err, level)
		assert.Positive(t, r.AreaBudget, level)
		assert.NotEmpty(t, r.WritingStyle, level)
		assert.NotEmpty(t, r.Visual.OutlineThickness, level)
		assert.Empty(t, leftoverRX.FindAllString(r.WritingStyle+r.Visual.Detail, -1), level)
	}

	r, err := c.AgeRules(schema.Age6)
	require.NoError(t, err)
	assert.Equal(t, 30, r.AreaBudget)
}

func TestAgeRulesUnknownLevel(t *testing.T) {
	c := loadEmbedded(t)
	_, err := c.AgeRules("age_99")
	assert.True(t, errors.Is(err, schema.ErrUnknownAgeLevel))
}

func TestEveryPathResolvesWithoutLeftoverTokens(t *testing.T) {
	c := loadEmbedded(t)
	for _, th := range c.Themes() {
		paths, err := c.Paths(th.ID)
		require.NoError(t, err)
		require.NotEmpty(t, paths)
		for _, path := range paths {
			for num := 1; num <= schema.EpisodeCount; num++ {
				spec, err := c.Episode(th.ID, num, path)
				require.NoError(t, err, "%s/%d/%s", th.ID, num, path)
				assert.NotEmpty(t, spec.Title)
				for _, level := range schema.AgeLevels {
					story := strings.ReplaceAll(Story(spec, level), schema.TokenName, "Sparkle")
					assert.NotEmpty(t, story, "%s/%d/%s/%s", th.ID, num, path, level)
					assert.Empty(t, leftoverRX.FindAllString(story, -1), "%s/%d/%s/%s", th.ID, num, path, level)
				}
			}
		}
	}
}

func TestForestBranchResolution(t *testing.T) {
	c := loadEmbedded(t)

	tests := []struct {
		num    int
		path   string
		branch string
		title  string
	}{
		{num: 3, path: "AB", branch: "", title: "The Missing Rainbow"},
		{num: 6, path: "", branch: "6A", title: "A New Friend"},
		{num: 6, path: "B", branch: "6B", title: "The Right Thing"},
		{num: 7, path: "BA", branch: "7B", title: "The Brave Return"},
		{num: 9, path: "AB", branch: "9AB", title: "Proving Friendship"},
		{num: 9, path: "BA", branch: "9BA", title: "Forgiveness Given"},
		{num: 9, path: "B", branch: "9BA", title: "Forgiveness Given"},
		{num: 9, path: "ba", branch: "9BA", title: "Forgiveness Given"},
		{num: 9, path: "CZ", branch: "9AA", title: "Welcome to the Family"},
		{num: 9, path: "BBA", branch: "9BB", title: "Earning Trust"},
	}
	for _, tt := range tests {
		spec, err := c.Episode("forest", tt.num, tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.branch, spec.Branch, "%d/%s", tt.num, tt.path)
		assert.Equal(t, tt.title, spec.Title, "%d/%s", tt.num, tt.path)
	}
}

func TestBranchInheritsEpisodeFields(t *testing.T) {
	c := loadEmbedded(t)
	a, err := c.Episode("forest", 8, "A")
	require.NoError(t, err)
	b, err := c.Episode("forest", 8, "B")
	require.NoError(t, err)

	assert.Equal(t, "Return to the Village", a.Title)
	assert.Equal(t, a.Title, b.Title)
	assert.Equal(t, a.Scene, b.Scene)
	assert.NotEqual(t, StoryForAge(a.Stories, schema.Age6), StoryForAge(b.Stories, schema.Age6))
	assert.True(t, a.IsChoicePoint)
	assert.Equal(t, "A", a.DefaultChoice)
	assert.Contains(t, a.Choices, "B")
}

func TestBranchOnSelectsLaterChoice(t *testing.T) {
	c := loadEmbedded(t)
	spec, err := c.Episode("the_lucky_clover_charm", 9, "AB")
	require.NoError(t, err)
	assert.Equal(t, "The Pie Contest", spec.Title)

	spec, err = c.Episode("the_lucky_clover_charm", 9, "BA")
	require.NoError(t, err)
	assert.Equal(t, "The Ring Toss", spec.Title)
}

func TestFinalEpisodeEnding(t *testing.T) {
	c := loadEmbedded(t)
	for _, path := range []string{"AA", "AB", "BA", "BB"} {
		spec, err := c.Episode("forest", 10, path)
		require.NoError(t, err)
		base := StoryForAge(spec.Stories, schema.Age6)
		require.NotEmpty(t, spec.Ending, path)
		assert.Equal(t, base+spec.Ending, Story(spec, schema.Age6))
	}

	for _, path := range []string{"", "C", "A", "ZZ"} {
		spec, err := c.Episode("forest", 10, path)
		require.NoError(t, err, path)
		assert.Empty(t, spec.Ending, path)
		assert.Equal(t, StoryForAge(spec.Stories, schema.Age6), Story(spec, schema.Age6), path)
	}
}

func TestStoryForAgeNearestTier(t *testing.T) {
	stories := map[schema.AgeLevel]string{
		schema.Age3:  "three",
		schema.Age6:  "six",
		schema.Age10: "ten",
	}
	assert.Equal(t, "six", StoryForAge(stories, schema.Age6))
	assert.Equal(t, "three", StoryForAge(stories, schema.Age4))
	assert.Equal(t, "six", StoryForAge(stories, schema.Age7))
	assert.Equal(t, "six", StoryForAge(stories, schema.Age8))
	assert.Equal(t, "ten", StoryForAge(stories, schema.Age9))
	assert.Equal(t, "three", StoryForAge(stories, schema.AgeUnder3))
	assert.Equal(t, "six", StoryForAge(stories, "age_99"))
	assert.Equal(t, "", StoryForAge(nil, schema.Age6))
}

func TestEpisodeLookupMisses(t *testing.T) {
	c := loadEmbedded(t)
	_, err := c.Episode("space", 1, "")
	assert.True(t, errors.Is(err, schema.ErrUnknownTheme))

	_, err = c.Episode("forest", 11, "")
	assert.True(t, errors.Is(err, schema.ErrEpisodeNotFound))
}

func TestEpisodesPreview(t *testing.T) {
	c := loadEmbedded(t)
	previews, err := c.Episodes("forest")
	require.NoError(t, err)
	require.Len(t, previews, schema.EpisodeCount)
	assert.True(t, previews[4].IsChoicePoint)
	assert.Equal(t, "A New Friend", previews[5].Title)
	assert.True(t, previews[9].Branching)
	assert.False(t, previews[0].Branching)
}

const testAges = `{"levels":[
{"level":"under_3","display_age":"0","colourable_areas":"8-10","writing_style":"w","visual":{"outline_thickness":"o","background_density":"b","character_fill":"c","detail":"d"}},
{"level":"age_3","display_age":"3","colourable_areas":"10-12","writing_style":"w","visual":{"outline_thickness":"o","background_density":"b","character_fill":"c","detail":"d"}},
{"level":"age_4","display_age":"4","colourable_areas":"15-18","writing_style":"w","visual":{"outline_thickness":"o","background_density":"b","character_fill":"c","detail":"d"}},
{"level":"age_5","display_age":"5","colourable_areas":"20-25","writing_style":"w","visual":{"outline_thickness":"o","background_density":"b","character_fill":"c","detail":"d"}},
{"level":"age_6","display_age":"6","colourable_areas":"25-30","writing_style":"w","visual":{"outline_thickness":"o","background_density":"b","character_fill":"c","detail":"d"}},
{"level":"age_7","display_age":"7","colourable_areas":"30-35","writing_style":"w","visual":{"outline_thickness":"o","background_density":"b","character_fill":"c","detail":"d"}},
{"level":"age_8","display_age":"8","colourable_areas":"40-45","writing_style":"w","visual":{"outline_thickness":"o","background_density":"b","character_fill":"c","detail":"d"}},
{"level":"age_9","display_age":"9","colourable_areas":"50-65","writing_style":"w","visual":{"outline_thickness":"o","background_density":"b","character_fill":"c","detail":"d"}},
{"level":"age_10","display_age":"10","colourable_areas":"70-90","writing_style":"w","visual":{"outline_thickness":"o","background_density":"b","character_fill":"c","detail":"d"}}
]}`

func linearTheme(scene string) string {
	var eps []string
	for i := 1; i <= schema.EpisodeCount; i++ {
		eps = append(eps, `{"episode_num":`+strconv.Itoa(i)+`,"title":"t","scene":"`+scene+`","stories":{"age_6":"{name} plays"}}`)
	}
	return `{"theme_id":"x","theme_name":"X","theme_description":"d","theme_blurb":"b","episodes":[` + strings.Join(eps, ",") + `]}`
}

func TestLoadRejectsUnknownPlaceholder(t *testing.T) {
	fsys := fstest.MapFS{
		"age_levels.json": {Data: []byte(testAges)},
		"themes/x.json":   {Data: []byte(linearTheme("{name} holds {wand}"))},
	}
	_, err := FSProvider{FS: fsys}.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrCatalogInvalid))
	assert.Contains(t, err.Error(), "{wand}")
}

func TestLoadAcceptsLinearTheme(t *testing.T) {
	fsys := fstest.MapFS{
		"age_levels.json": {Data: []byte(testAges)},
		"themes/x.json":   {Data: []byte(linearTheme("{name} {character_pose} in {area_count} areas"))},
	}
	c, err := FSProvider{FS: fsys}.Load()
	require.NoError(t, err)
	paths, err := c.Paths("x")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, paths)
}

func TestLoadRejectsMissingAgeLevel(t *testing.T) {
	fsys := fstest.MapFS{
		"age_levels.json": {Data: []byte(`{"levels":[]}`)},
		"themes/x.json":   {Data: []byte(linearTheme("{name}"))},
	}
	_, err := FSProvider{FS: fsys}.Load()
	assert.True(t, errors.Is(err, schema.ErrCatalogInvalid))
}

func TestChoicePoints(t *testing.T) {
	c := loadEmbedded(t)
	points, err := c.ChoicePoints("forest")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 8}, points)

	_, err = c.ChoicePoints("space")
	assert.ErrorIs(t, err, schema.ErrUnknownTheme)
}
