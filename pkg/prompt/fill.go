package prompt

import (
	"strconv"
	"strings"

	"storybook/pkg/schema"
)

// Fill resolves every template token a scene or story may declare. The
// replacement set is fixed so the output is deterministic.
func Fill(template string, character schema.CharacterProfile, rules schema.AgeRules) string {
	area := rules.AreaRange
	if area == "" {
		area = strconv.Itoa(rules.AreaBudget)
	}
	r := strings.NewReplacer(
		schema.TokenName, character.Name,
		schema.TokenPose, character.Pose,
		schema.TokenMustInclude, "MUST INCLUDE: "+character.KeyFeature,
		schema.TokenAreaCount, area,
	)
	return strings.TrimSpace(r.Replace(template))
}

// FillName resolves the name token only, as used in story text.
func FillName(text, name string) string {
	return strings.ReplaceAll(text, schema.TokenName, name)
}
