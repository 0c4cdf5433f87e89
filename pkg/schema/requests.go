package schema

type StoriesRequest struct {
	Character CharacterProfile `json:"character"`
	AgeLevel  AgeLevel         `json:"age_level"`
	Count     int              `json:"count,omitempty"`
}

type StoriesResponse struct {
	CharacterName string        `json:"character_name"`
	AgeLevel      AgeLevel      `json:"age_level"`
	Themes        []StoryOption `json:"themes"`
}

type CoverRequest struct {
	Character CharacterProfile `json:"character"`
	// Theme is a catalog theme id. Name and description override or replace it
	// when the cover belongs to a generated story option.
	Theme            string         `json:"theme,omitempty"`
	ThemeName        string         `json:"theme_name,omitempty"`
	ThemeDescription string         `json:"theme_description,omitempty"`
	AgeLevel         AgeLevel       `json:"age_level"`
	Reveal           RevealArtifact `json:"reveal"`
	Quality          string         `json:"quality,omitempty"`
}

type EpisodeRequest struct {
	Character  CharacterProfile `json:"character"`
	Theme      string           `json:"theme"`
	EpisodeNum int              `json:"episode_num"`
	AgeLevel   AgeLevel         `json:"age_level"`
	ChoicePath string           `json:"choice_path"`
	Quality    string           `json:"quality,omitempty"`
	Reveal     RevealArtifact   `json:"reveal"`
	// Scene replaces the catalog scene and story with a generated one.
	Scene   *StoryEpisode `json:"scene,omitempty"`
	Emotion string        `json:"character_emotion,omitempty"`
}

type AdventureRequest struct {
	Character CharacterProfile `json:"character"`
	Theme     string           `json:"theme"`
	AgeLevel  AgeLevel         `json:"age_level"`
	Quality   string           `json:"quality,omitempty"`
	Reveal    RevealArtifact   `json:"reveal"`
	// Choices holds one letter per choice point, consumed in order.
	Choices string `json:"choices,omitempty"`
	// Story swaps catalog scenes for a generated story option.
	Story *StoryOption `json:"story,omitempty"`
}

type AdventureResponse struct {
	ChoicePath string        `json:"choice_path"`
	Episodes   []EpisodePage `json:"episodes"`
}

type BookRequest struct {
	Title string   `json:"title"`
	Pages [][]byte `json:"pages"`
}

type ExtractionResult struct {
	Character CharacterProfile `json:"character"`
	Reveal    RevealArtifact   `json:"reveal"`
	Degraded  bool             `json:"degraded,omitempty"`
}
