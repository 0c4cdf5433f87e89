package catalog

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"storybook/pkg/schema"
)

// Catalog holds the age rules and theme tables. It is built once by a
// ConfigProvider and never mutated afterwards, so it is safe for
// concurrent use without locking.
type Catalog struct {
	ages   map[schema.AgeLevel]schema.AgeRules
	themes map[string]*theme
	order  []string
}

func (c *Catalog) loadAges(f ageFile) error {
	for _, r := range f.Levels {
		if !r.Level.Valid() {
			return schema.ErrCatalogInvalid.Withf("unknown age level %q", r.Level)
		}
		budget, err := areaBudget(r.AreaRange)
		if err != nil {
			return schema.ErrCatalogInvalid.Withf("%s: %v", r.Level, err)
		}
		if r.WritingStyle == "" || r.Visual.OutlineThickness == "" {
			return schema.ErrCatalogInvalid.Withf("%s: incomplete rules", r.Level)
		}
		r.AreaBudget = budget
		c.ages[r.Level] = r
	}
	for _, level := range schema.AgeLevels {
		if _, ok := c.ages[level]; !ok {
			return schema.ErrCatalogInvalid.Withf("missing age level %q", level)
		}
	}
	return nil
}

// areaBudget reads the ceiling of a range such as "25-30".
func areaBudget(r string) (int, error) {
	lo, hi, found := strings.Cut(r, "-")
	if !found {
		hi = lo
	}
	low, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, fmt.Errorf("colourable areas %q: %w", r, err)
	}
	high, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, fmt.Errorf("colourable areas %q: %w", r, err)
	}
	if low <= 0 || high < low {
		return 0, fmt.Errorf("colourable areas %q out of order", r)
	}
	return high, nil
}

func (c *Catalog) sortThemes() {
	slices.Sort(c.order)
}

// AgeRules returns the writing and visual rules for level.
func (c *Catalog) AgeRules(level schema.AgeLevel) (schema.AgeRules, error) {
	r, ok := c.ages[level]
	if !ok {
		return schema.AgeRules{}, schema.ErrUnknownAgeLevel.Withf("unknown age level %q", level)
	}
	return r, nil
}

// AgeLevels returns every rule set from youngest to oldest.
func (c *Catalog) AgeLevels() []schema.AgeRules {
	out := make([]schema.AgeRules, 0, len(schema.AgeLevels))
	for _, level := range schema.AgeLevels {
		out = append(out, c.ages[level])
	}
	return out
}

func (c *Catalog) Themes() []schema.Theme {
	out := make([]schema.Theme, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.themes[id].info)
	}
	return out
}

func (c *Catalog) theme(id string) (*theme, error) {
	t, ok := c.themes[id]
	if !ok {
		return nil, schema.ErrUnknownTheme.Withf("theme %q not found", id)
	}
	return t, nil
}

func (c *Catalog) Theme(id string) (schema.Theme, error) {
	t, err := c.theme(id)
	if err != nil {
		return schema.Theme{}, err
	}
	return t.info, nil
}

// ChoicePoints returns the episode numbers that end in a choice.
func (c *Catalog) ChoicePoints(themeID string) ([]int, error) {
	t, err := c.theme(themeID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.choicePoints), nil
}

// Episode resolves episode num of a theme against a choice path. Letters
// belonging to choices at or after num are ignored. A missing ending on the
// final episode degrades to an empty ending.
func (c *Catalog) Episode(themeID string, num int, path string) (schema.EpisodeSpec, error) {
	t, err := c.theme(themeID)
	if err != nil {
		return schema.EpisodeSpec{}, err
	}
	if num < 1 || num > len(t.episodes) {
		return schema.EpisodeSpec{}, schema.ErrEpisodeNotFound.Withf("theme %q has no episode %d", themeID, num)
	}
	ep := t.episodes[num-1]
	path = strings.ToUpper(strings.TrimSpace(path))

	v, key := ep.root.walk(t.letters(ep, path))
	spec := schema.EpisodeSpec{
		EpisodeNum: num,
		Title:      v.title,
		Scene:      v.scene,
		Stories:    v.stories,
	}
	if key != "" {
		spec.Branch = strconv.Itoa(num) + key
	}
	if ep.choice != nil {
		spec.IsChoicePoint = true
		spec.ChoicePrompt = ep.choice.Prompt
		spec.Choices = maps.Clone(ep.choice.Options)
		spec.DefaultChoice = ep.choice.Default
	}
	if len(ep.endings) > 0 {
		prior := t.prior(num, path)
		ending, ok := ep.ending(prior)
		if !ok {
			log.Warn("episode ending not found, using base story only",
				"theme", themeID, "episode", num, "choice_path", prior,
				"error", schema.ErrEndingNotFound.Withf("no ending for path %q", prior))
		}
		spec.Ending = ending
	}
	return spec, nil
}

// Episodes previews every episode along the default path.
func (c *Catalog) Episodes(themeID string) ([]schema.EpisodePreview, error) {
	t, err := c.theme(themeID)
	if err != nil {
		return nil, err
	}
	out := make([]schema.EpisodePreview, 0, len(t.episodes))
	for _, ep := range t.episodes {
		v, _ := ep.root.walk(nil)
		out = append(out, schema.EpisodePreview{
			EpisodeNum:    ep.num,
			Title:         v.title,
			IsChoicePoint: ep.choice != nil,
			Branching:     !ep.root.leaf() || len(ep.endings) > 0,
		})
	}
	return out, nil
}

// Paths enumerates every complete choice path of a theme.
func (c *Catalog) Paths(themeID string) ([]string, error) {
	t, err := c.theme(themeID)
	if err != nil {
		return nil, err
	}
	paths := []string{""}
	for _, cp := range t.choicePoints {
		letters := slices.Sorted(maps.Keys(t.episodes[cp-1].choice.Options))
		next := make([]string, 0, len(paths)*len(letters))
		for _, p := range paths {
			for _, l := range letters {
				next = append(next, p+l)
			}
		}
		paths = next
	}
	return paths, nil
}

// StoryForAge picks the story written for level, or the nearest tier
// searching younger before older. Unknown levels read as age_6.
func StoryForAge(stories map[schema.AgeLevel]string, level schema.AgeLevel) string {
	if s, ok := stories[level]; ok {
		return s
	}
	idx := level.Index()
	if idx < 0 {
		if s, ok := stories[schema.Age6]; ok {
			return s
		}
		idx = schema.Age6.Index()
	}
	for offset := 1; offset < len(schema.AgeLevels); offset++ {
		for _, i := range []int{idx - offset, idx + offset} {
			if i < 0 || i >= len(schema.AgeLevels) {
				continue
			}
			if s, ok := stories[schema.AgeLevels[i]]; ok {
				return s
			}
		}
	}
	return ""
}

// Story returns the age-resolved story of spec with its ending appended.
func Story(spec schema.EpisodeSpec, level schema.AgeLevel) string {
	return StoryForAge(spec.Stories, level) + spec.Ending
}
