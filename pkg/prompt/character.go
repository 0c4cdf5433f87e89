package prompt

import (
	"fmt"
	"strings"

	"storybook/pkg/schema"
	"storybook/pkg/utils"
)

const extractionPrompt = `You are analysing a child's drawing of a character so it can be turned into a 3D movie character and a colouring book hero.

Look carefully before answering:
- PROPORTIONS are intentional. Describe head, body and leg sizes relative to the whole figure.
- Long strokes coming down from the head are long flowing hair, not short spiky hair.
- Name every colour section in order. Orange stays orange, purple stays purple.
- Describe clothing layers, buttons and patterns exactly as drawn.
- Never state exact counts of repeated parts. Write "lots of spikes", not a number.

Return a single JSON object with these keys and nothing else:
{"name": string, "description": string, "key_feature": string, "pose": string, "colors": [string], "personality": string}

- description: two to four sentences covering shape, proportions, colours and clothing
- key_feature: the one thing the child would be most upset to see missing
- pose: how the character stands, e.g. "standing confidently"
- personality: two or three friendly words

Do not add commentary or markdown.`

// Extraction asks a vision model to describe the character in a drawing.
func Extraction(name string) string {
	return fmt.Sprintf("%s\n\nThe child named this character %q.", extractionPrompt, strings.TrimSpace(name))
}

// Reveal asks for the full colour 3D reveal of the character, using the
// original drawing as the reference image.
func Reveal(c schema.CharacterProfile) string {
	c = c.Normalize()
	var b strings.Builder
	fmt.Fprintf(&b, "Create a 3D animated movie style character named %q based on the child's drawing shown in the reference image.\n\n", c.Name)
	b.WriteString("=== WHAT THE CHILD DREW ===\n")
	b.WriteString(utils.SoftenCounts(c.Description))
	fmt.Fprintf(&b, "\nKey feature: %s\n", utils.SoftenCounts(c.KeyFeature))
	if len(c.Colors) > 0 {
		fmt.Fprintf(&b, "Colour palette: %s\n", strings.Join(c.Colors, ", "))
	}
	fmt.Fprintf(&b, "Personality: %s\n\n", c.Personality)

	b.WriteString("=== RULES ===\n")
	b.WriteString("1. Proportions are sacred. Keep the child's proportions even when they are unusual.\n")
	b.WriteString("2. Exact colours with no substitutions. Show every colour section in order.\n")
	b.WriteString("3. Appealing animated film look: big expressive eyes with sparkle, smooth surfaces, a joyful expression.\n\n")

	b.WriteString("=== REQUIREMENTS ===\n")
	b.WriteString("- Celebration background with confetti and sparkles\n")
	b.WriteString("- Portrait orientation showing the full figure\n")
	b.WriteString("- Only features that appear in the drawing\n")
	b.WriteString("- NO TEXT anywhere on the image")
	return b.String()
}

// RevealAnalysis asks a vision model to describe a generated reveal so later
// pages can match it.
func RevealAnalysis(name string) string {
	return fmt.Sprintf(`This image is the official reference for a character named %q.
Describe exactly how the character looks so an illustrator can redraw them as black and white line art:
body shape and proportions, face, hair, clothing sections, accessories and any distinctive features.
Write one plain paragraph. Do not mention colours by hue, do not count repeated parts, and do not add commentary.`, strings.TrimSpace(name))
}
