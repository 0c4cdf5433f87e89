package prompt

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"storybook/pkg/schema"
)

// Emotions lists the expressions a generated episode may ask for.
var Emotions = []string{"nervous", "excited", "scared", "determined", "happy", "curious", "sad", "proud", "worried", "surprised"}

var scenarios = []string{
	"a lost pet that needs finding before a storm",
	"a new kid in town who misses old friends",
	"a school talent show where nothing goes to plan",
	"a mysterious map found in a library book",
	"a birthday surprise that keeps going wrong",
	"a garden that stops growing overnight",
	"a friendly creature stuck far from home",
	"a rainy day that turns into a secret adventure",
	"a science fair invention with a mind of its own",
	"a lighthouse whose light has gone out",
	"a snow day rescue in the neighbourhood",
	"a museum exhibit that comes alive after closing",
}

const fixJSONPrompt = `The previous reply was not valid JSON. Return only the corrected JSON object, with every string closed, no trailing commas, no markdown fences and no commentary.`

// Seed derives a stable positive seed from a character name.
func Seed(name string) int32 {
	hash := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name))))
	return int32(binary.BigEndian.Uint32(hash[:4])) & 0x7FFFFFFF
}

// Scenarios returns n story starters rotated by the character's seed so the
// same character always gets the same pool.
func Scenarios(name string, n int) []string {
	n = min(n, len(scenarios))
	start := int(Seed(name)) % len(scenarios)
	out := make([]string, 0, n)
	for i := range n {
		out = append(out, scenarios[(start+i*5)%len(scenarios)])
	}
	return out
}

// Stories builds the system and user prompts for generating count themed
// story options of schema.EpisodeCount episodes each.
func Stories(c schema.CharacterProfile, rules schema.AgeRules, count int) (system, user string) {
	c = c.Normalize()
	var s strings.Builder
	s.WriteString("You write personalised colouring story books for children. Every episode becomes one colouring page.\n\n")
	fmt.Fprintf(&s, "READER AGE: %s\n", rules.DisplayAge)
	fmt.Fprintf(&s, "WRITING STYLE: %s\n", rules.WritingStyle)
	fmt.Fprintf(&s, "PAGE COMPLEXITY: about %s colourable areas per page, %s.\n\n", rules.AreaRange, rules.Visual.BackgroundDensity)
	s.WriteString("STORY RULES:\n")
	fmt.Fprintf(&s, "1. Each theme has exactly %d episodes numbered 1 to %d.\n", schema.EpisodeCount, schema.EpisodeCount)
	s.WriteString("2. Episode 1 sets up a specific problem; the final episode resolves that same problem. No generic happy endings.\n")
	s.WriteString("3. The hero makes the important choices and the story reflects who the character is.\n")
	s.WriteString("4. scene_description says what to draw: the hero, the setting and props, never colours.\n")
	fmt.Fprintf(&s, "5. emotion is one of: %s.\n", strings.Join(Emotions, ", "))
	s.WriteString("6. theme_blurb is under fifteen words and never mentions body parts.\n")
	s.WriteString("7. Refer to the hero by name; never count the hero's body parts.\n")
	s.WriteString("8. Themes must be clearly different from each other.\n\n")
	s.WriteString(`Return only JSON shaped as {"themes":[{"theme_id":string,"theme_name":string,"theme_description":string,"theme_blurb":string,"episodes":[{"episode_num":int,"title":string,"scene_description":string,"story_text":string,"emotion":string}]}]}`)

	var u strings.Builder
	fmt.Fprintf(&u, "HERO: %s\n", c.Name)
	fmt.Fprintf(&u, "LOOKS: %s\n", c.Description)
	fmt.Fprintf(&u, "KEY FEATURE: %s\n", c.KeyFeature)
	fmt.Fprintf(&u, "PERSONALITY: %s\n\n", c.Personality)
	fmt.Fprintf(&u, "Write %d story themes. Draw inspiration from these starters, one per theme:\n", count)
	for _, sc := range Scenarios(c.Name, count) {
		fmt.Fprintf(&u, "- %s\n", sc)
	}
	return s.String(), u.String()
}

// FixJSON builds the repair request for a malformed reply.
func FixJSON(system, user, malformed string) (string, string) {
	return system + "\n\n" + fixJSONPrompt, user + "\n\nFix and complete the following malformed JSON:\n\n" + malformed
}
