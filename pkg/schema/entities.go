package schema

import (
	"slices"
	"strings"

	"storybook/pkg/utils"
)

// EpisodeCount is the fixed length of every adventure.
const EpisodeCount = 10

const (
	DefaultPose        = "standing confidently"
	DefaultPersonality = "brave and friendly"
	DefaultKeyFeature  = "their one-of-a-kind look"
)

type AgeLevel string

const (
	AgeUnder3 AgeLevel = "under_3"
	Age3      AgeLevel = "age_3"
	Age4      AgeLevel = "age_4"
	Age5      AgeLevel = "age_5"
	Age6      AgeLevel = "age_6"
	Age7      AgeLevel = "age_7"
	Age8      AgeLevel = "age_8"
	Age9      AgeLevel = "age_9"
	Age10     AgeLevel = "age_10"
)

// AgeLevels lists every level from youngest to oldest.
var AgeLevels = []AgeLevel{AgeUnder3, Age3, Age4, Age5, Age6, Age7, Age8, Age9, Age10}

func (a AgeLevel) Valid() bool {
	return slices.Contains(AgeLevels, a)
}

// Index returns the position of a in AgeLevels, or -1.
func (a AgeLevel) Index() int {
	return slices.Index(AgeLevels, a)
}

type CharacterProfile struct {
	Name        string   `json:"name" jsonschema:"description=The name the child gave the character"`
	Description string   `json:"description" jsonschema:"description=Full visual description of the character as drawn"`
	KeyFeature  string   `json:"key_feature" jsonschema:"description=The single most recognisable feature"`
	Pose        string   `json:"pose" jsonschema:"description=How the character stands or moves"`
	Colors      []string `json:"colors" jsonschema:"description=Colours used in the drawing in order of prominence"`
	Personality string   `json:"personality" jsonschema:"description=Two or three words describing the character's vibe"`
}

// Normalize fills defaults and rewrites exact body-part counts as "lots of".
func (c CharacterProfile) Normalize() CharacterProfile {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = utils.SoftenCounts(strings.TrimSpace(c.Description))
	c.KeyFeature = utils.SoftenCounts(strings.TrimSpace(c.KeyFeature))
	if c.KeyFeature == "" {
		c.KeyFeature = DefaultKeyFeature
	}
	if strings.TrimSpace(c.Pose) == "" {
		c.Pose = DefaultPose
	}
	if strings.TrimSpace(c.Personality) == "" {
		c.Personality = DefaultPersonality
	}
	c.Colors = slices.DeleteFunc(slices.Clone(c.Colors), func(s string) bool {
		return strings.TrimSpace(s) == ""
	})
	return c
}

type VisualRules struct {
	OutlineThickness  string `json:"outline_thickness"`
	BackgroundDensity string `json:"background_density"`
	CharacterFill     string `json:"character_fill"`
	Detail            string `json:"detail"`
}

type AgeRules struct {
	Level        AgeLevel    `json:"level"`
	DisplayAge   string      `json:"display_age"`
	WritingStyle string      `json:"writing_style"`
	AreaRange    string      `json:"colourable_areas"`
	AreaBudget   int         `json:"area_budget"`
	Visual       VisualRules `json:"visual"`
}

type Choice struct {
	Icon       string `json:"icon"`
	Label      string `json:"label"`
	ShortLabel string `json:"short_label,omitempty"`
}

// EpisodeSpec is one episode resolved against a choice path.
type EpisodeSpec struct {
	EpisodeNum    int                 `json:"episode_num"`
	Branch        string              `json:"branch,omitempty"`
	Title         string              `json:"title"`
	Scene         string              `json:"scene"`
	Stories       map[AgeLevel]string `json:"stories"`
	Ending        string              `json:"ending,omitempty"`
	IsChoicePoint bool                `json:"is_choice_point"`
	ChoicePrompt  string              `json:"choice_prompt,omitempty"`
	Choices       map[string]Choice   `json:"choices,omitempty"`
	DefaultChoice string              `json:"default_choice,omitempty"`
}

type Theme struct {
	ID                   string   `json:"theme_id"`
	Name                 string   `json:"theme_name"`
	Description          string   `json:"theme_description"`
	Blurb                string   `json:"theme_blurb"`
	Icon                 string   `json:"icon,omitempty"`
	SupportingCharacters []string `json:"supporting_characters,omitempty"`
}

type EpisodePreview struct {
	EpisodeNum    int    `json:"episode_num"`
	Title         string `json:"title"`
	IsChoicePoint bool   `json:"is_choice_point"`
	Branching     bool   `json:"branching"`
}

type RevealArtifact struct {
	Description string `json:"description"`
	Image       []byte `json:"image"`
}

type EpisodePage struct {
	EpisodeNum    int               `json:"episode_num"`
	Title         string            `json:"title"`
	StoryText     string            `json:"story"`
	ColoringImage []byte            `json:"image"`
	FullPageImage []byte            `json:"page"`
	ChoicePath    string            `json:"choice_path"`
	IsChoicePoint bool              `json:"is_choice_point"`
	ChoicePrompt  string            `json:"choice_prompt,omitempty"`
	Choices       map[string]Choice `json:"choices,omitempty"`
}

type CoverPage struct {
	Title         string `json:"title"`
	ColoringImage []byte `json:"image"`
	FullPageImage []byte `json:"page"`
}

// StoryEpisode is one generated episode of a personalised story option.
type StoryEpisode struct {
	EpisodeNum       int    `json:"episode_num"`
	Title            string `json:"title"`
	SceneDescription string `json:"scene_description" jsonschema:"description=What to draw on the colouring page"`
	StoryText        string `json:"story_text" jsonschema:"description=Story text printed under the picture"`
	Emotion          string `json:"emotion" jsonschema:"enum=nervous,enum=excited,enum=scared,enum=determined,enum=happy,enum=curious,enum=sad,enum=proud,enum=worried,enum=surprised"`
}

type StoryOption struct {
	ThemeID          string         `json:"theme_id"`
	ThemeName        string         `json:"theme_name"`
	ThemeDescription string         `json:"theme_description"`
	ThemeBlurb       string         `json:"theme_blurb" jsonschema:"description=Punchy blurb under fifteen words"`
	Episodes         []StoryEpisode `json:"episodes"`
}

type StoryOptions struct {
	Themes []StoryOption `json:"themes"`
}
