package schema

// Template tokens understood by scene and story templates.
const (
	TokenName        = "{name}"
	TokenPose        = "{character_pose}"
	TokenMustInclude = "{character_must_include}"
	TokenAreaCount   = "{area_count}"
)

var (
	SceneTokens = []string{TokenName, TokenPose, TokenMustInclude, TokenAreaCount}
	StoryTokens = []string{TokenName}
)
