package prompt

import (
	"fmt"
	"strings"

	"storybook/pkg/schema"
	"storybook/pkg/utils"
)

// Footer closes every colouring page instruction.
const Footer = `OUTPUT: black lines on white, no embedded text. Pure black outlines on a pure white background, ready for a child to colour with crayons. Leave the bottom fifth of the page empty for the story text.`

const coverFooter = `OUTPUT: black lines on white. The only text allowed is the title lettering described above; add no other words, labels or signatures.`

// SceneInput carries everything a colouring page instruction is built from.
type SceneInput struct {
	Character         schema.CharacterProfile
	Rules             schema.AgeRules
	Title             string
	Scene             string
	RevealDescription string
	Emotion           string
}

func ageHeader(b *strings.Builder, rules schema.AgeRules) {
	b.WriteString("This is a colouring book page for children.\n\n")
	b.WriteString("=== COLOURING RULES ===\n")
	b.WriteString("- BLACK LINES ONLY on a pure WHITE background\n")
	b.WriteString("- NO colour, NO grey, NO shading anywhere\n")
	b.WriteString("- Every shape fully enclosed so it can be coloured in\n")
	fmt.Fprintf(b, "- Outlines: %s\n", rules.Visual.OutlineThickness)
	fmt.Fprintf(b, "- Background: %s\n", rules.Visual.BackgroundDensity)
	if rules.Visual.CharacterFill != "" {
		fmt.Fprintf(b, "- The main character fills %s\n", rules.Visual.CharacterFill)
	}
	fmt.Fprintf(b, "- No more than %d colourable areas in the whole image\n", rules.AreaBudget)
	if rules.Visual.Detail != "" {
		fmt.Fprintf(b, "- %s\n", rules.Visual.Detail)
	}
	b.WriteString("\n")
}

func identity(b *strings.Builder, c schema.CharacterProfile) {
	b.WriteString("=== THE MAIN CHARACTER ===\n")
	fmt.Fprintf(b, "Name: %s\n", c.Name)
	if c.Description != "" {
		fmt.Fprintf(b, "Appearance: %s\n", utils.SoftenCounts(c.Description))
	}
	fmt.Fprintf(b, "Key identifying feature: %s\n", utils.SoftenCounts(c.KeyFeature))
	if c.Personality != "" {
		fmt.Fprintf(b, "Personality: %s\n", c.Personality)
	}
	b.WriteString("Draw repeated parts such as arms, eyes, legs or spikes as lots of them; never count them out.\n")
	fmt.Fprintf(b, "This is a specific character from a child's drawing. The child will look for %s's unique features, so keep them clearly visible.\n\n", c.Name)
}

func consistency(b *strings.Builder, reveal string) {
	reveal = strings.TrimSpace(reveal)
	if reveal == "" {
		return
	}
	b.WriteString("=== CHARACTER CONSISTENCY (AUTHORITATIVE) ===\n")
	b.WriteString("Where this reference description differs from the appearance above, follow this one:\n")
	b.WriteString(utils.SoftenCounts(reveal))
	b.WriteString("\n\n")
}

// Scene builds the instruction for one episode's colouring page. The blocks
// always appear in the same order and identical inputs give identical text.
func Scene(in SceneInput) string {
	c := in.Character.Normalize()
	var b strings.Builder
	b.WriteString("Create a BLACK AND WHITE COLOURING PAGE for children.\n\n")
	ageHeader(&b, in.Rules)
	identity(&b, c)
	consistency(&b, in.RevealDescription)

	fmt.Fprintf(&b, "=== SCENE: %q ===\n", in.Title)
	b.WriteString(Fill(in.Scene, c, in.Rules))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s is the largest figure, clearly in the foreground", c.Name)
	if e := strings.TrimSpace(in.Emotion); e != "" {
		fmt.Fprintf(&b, ", with a %s expression", e)
	}
	b.WriteString(".\n\n")

	b.WriteString(Footer)
	return b.String()
}

// CoverInput describes a front cover.
type CoverInput struct {
	Character         schema.CharacterProfile
	Rules             schema.AgeRules
	ThemeName         string
	ThemeDescription  string
	RevealDescription string
}

// CoverTitle is the book title printed on the cover.
func CoverTitle(name, themeName string) string {
	return name + " and " + themeName
}

// Cover builds the front cover instruction. It follows Scene but swaps the
// scene block for title lettering.
func Cover(in CoverInput) string {
	c := in.Character.Normalize()
	var b strings.Builder
	b.WriteString("Create a CHILDREN'S COLOURING BOOK FRONT COVER.\n\n")
	ageHeader(&b, in.Rules)
	identity(&b, c)
	consistency(&b, in.RevealDescription)

	b.WriteString("=== TITLE ===\n")
	fmt.Fprintf(&b, "- At the top: %q in large, fun, hand-drawn outline lettering that can be coloured in\n", CoverTitle(c.Name, in.ThemeName))
	b.WriteString("- At the bottom: \"A Coloring Story Book\" in smaller outline lettering\n\n")

	b.WriteString("=== IMAGE ===\n")
	fmt.Fprintf(&b, "- %s large and central, looking excited and confident\n", c.Name)
	if d := strings.TrimSpace(in.ThemeDescription); d != "" {
		fmt.Fprintf(&b, "- The background hints at the adventure: %s\n", d)
	}
	b.WriteString("- Portrait orientation filling the entire page\n\n")

	b.WriteString(coverFooter)
	return b.String()
}
