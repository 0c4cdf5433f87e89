package pipeline

import (
	"cmp"
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"storybook/pkg/catalog"
	"storybook/pkg/inference"
	"storybook/pkg/prompt"
	"storybook/pkg/schema"
)

// Cover generates the front cover for a catalog theme or a generated story
// option.
func (p *Pipeline) Cover(ctx context.Context, req schema.CoverRequest) (schema.CoverPage, error) {
	rules, err := p.rules(req.AgeLevel)
	if err != nil {
		return schema.CoverPage{}, err
	}
	c := req.Character.Normalize()
	if c.Name == "" {
		return schema.CoverPage{}, schema.ErrInvalidRequest.Withf("character name is required")
	}

	name, description := req.ThemeName, req.ThemeDescription
	if req.Theme != "" {
		theme, err := p.catalog.Theme(req.Theme)
		switch {
		case err == nil:
			name = cmp.Or(name, theme.Name)
			description = cmp.Or(description, theme.Description)
		case name == "":
			return schema.CoverPage{}, err
		}
	}
	if name == "" {
		return schema.CoverPage{}, schema.ErrInvalidRequest.Withf("theme or theme_name is required")
	}

	text := prompt.Cover(prompt.CoverInput{
		Character:         c,
		Rules:             rules,
		ThemeName:         name,
		ThemeDescription:  description,
		RevealDescription: p.revealDescription(ctx, c, req.Reveal),
	})
	img, err := p.gateway.Generate(ctx, inference.GenerateRequest{
		Prompt:    text,
		Size:      p.opts.Size,
		Quality:   p.quality(req.Quality),
		Reference: req.Reveal.Image,
	})
	if err != nil {
		return schema.CoverPage{}, err
	}

	// The title is lettered into the artwork, so the page carries the image only.
	page, err := p.renderer.Compose(img, "", "", p.opts.Layout)
	if err != nil {
		return schema.CoverPage{}, err
	}

	log.Info("Cover generated", "name", c.Name, "theme", name, "stage", StageCoverGenerated)
	return schema.CoverPage{
		Title:         prompt.CoverTitle(c.Name, name),
		ColoringImage: img,
		FullPageImage: page,
	}, nil
}

// Episode generates one episode page. Validation and catalog lookups happen
// before any backend call.
func (p *Pipeline) Episode(ctx context.Context, req schema.EpisodeRequest) (schema.EpisodePage, error) {
	return p.episode(ctx, req, false)
}

// episode draws one page. With resolved set, req.Reveal.Description is used
// as is and the reveal image is never re-analysed.
func (p *Pipeline) episode(ctx context.Context, req schema.EpisodeRequest, resolved bool) (schema.EpisodePage, error) {
	rules, err := p.rules(req.AgeLevel)
	if err != nil {
		return schema.EpisodePage{}, err
	}
	if req.EpisodeNum < 1 || req.EpisodeNum > schema.EpisodeCount {
		return schema.EpisodePage{}, schema.ErrInvalidEpisodeNum.Withf("episode_num must be between 1 and %d, got %d", schema.EpisodeCount, req.EpisodeNum)
	}
	c := req.Character.Normalize()
	if c.Name == "" {
		return schema.EpisodePage{}, schema.ErrInvalidRequest.Withf("character name is required")
	}
	path := strings.ToUpper(strings.TrimSpace(req.ChoicePath))

	page := schema.EpisodePage{EpisodeNum: req.EpisodeNum, ChoicePath: path}
	var scene, emotion string
	if req.Scene != nil {
		page.Title = req.Scene.Title
		page.StoryText = prompt.FillName(req.Scene.StoryText, c.Name)
		scene = req.Scene.SceneDescription
		emotion = cmp.Or(req.Emotion, req.Scene.Emotion)
		if strings.TrimSpace(scene) == "" {
			return schema.EpisodePage{}, schema.ErrInvalidRequest.Withf("scene.scene_description is required")
		}
	} else {
		spec, err := p.catalog.Episode(req.Theme, req.EpisodeNum, path)
		if err != nil {
			return schema.EpisodePage{}, err
		}
		page.Title = spec.Title
		page.StoryText = prompt.FillName(catalog.Story(spec, req.AgeLevel), c.Name)
		page.IsChoicePoint = spec.IsChoicePoint
		page.ChoicePrompt = prompt.FillName(spec.ChoicePrompt, c.Name)
		page.Choices = spec.Choices
		scene = spec.Scene
		emotion = req.Emotion
	}

	reveal := req.Reveal.Description
	if !resolved {
		reveal = p.revealDescription(ctx, c, req.Reveal)
	}
	text := prompt.Scene(prompt.SceneInput{
		Character:         c,
		Rules:             rules,
		Title:             page.Title,
		Scene:             scene,
		RevealDescription: reveal,
		Emotion:           emotion,
	})
	img, err := p.gateway.Generate(ctx, inference.GenerateRequest{
		Prompt:    text,
		Size:      p.opts.Size,
		Quality:   p.quality(req.Quality),
		Reference: req.Reveal.Image,
	})
	if err != nil {
		return schema.EpisodePage{}, err
	}

	full, err := p.renderer.Compose(img, page.Title, page.StoryText, p.opts.Layout)
	if err != nil {
		return schema.EpisodePage{}, err
	}
	page.ColoringImage = img
	page.FullPageImage = full

	log.Info("Episode generated", "name", c.Name, "theme", req.Theme, "episode", req.EpisodeNum,
		"choice_path", path, "stage", StageEpisodeGenerated)
	return page, nil
}

// Adventure generates episodes 1 to schema.EpisodeCount in order. At every
// choice point it consumes the next letter of req.Choices, or the default
// letter once they run out, and threads the growing path into later
// episodes. emit, when set, receives each page as soon as it is ready. On
// failure the pages finished so far are returned with the error.
func (p *Pipeline) Adventure(ctx context.Context, req schema.AdventureRequest, emit func(schema.EpisodePage) error) (schema.AdventureResponse, error) {
	if err := p.CheckAdventure(req); err != nil {
		return schema.AdventureResponse{}, err
	}
	log.Info("Adventure started", "name", req.Character.Name, "theme", req.Theme, "stage", StageThemeSelected)

	// One reveal description serves every page.
	reveal := req.Reveal
	if reveal.Description == "" && len(reveal.Image) > 0 {
		c := req.Character.Normalize()
		reveal.Description = cmp.Or(p.revealDescription(ctx, c, reveal), c.Description)
	}

	choices := []byte(strings.ToUpper(strings.TrimSpace(req.Choices)))
	var resp schema.AdventureResponse
	for num := 1; num <= schema.EpisodeCount; num++ {
		er := schema.EpisodeRequest{
			Character:  req.Character,
			Theme:      req.Theme,
			EpisodeNum: num,
			AgeLevel:   req.AgeLevel,
			ChoicePath: resp.ChoicePath,
			Quality:    req.Quality,
			Reveal:     reveal,
		}
		if req.Story != nil {
			er.Scene = &req.Story.Episodes[num-1]
		}

		page, err := p.episode(ctx, er, true)
		if err != nil {
			return resp, err
		}
		resp.Episodes = append(resp.Episodes, page)
		if emit != nil {
			if err := emit(page); err != nil {
				return resp, err
			}
		}

		if req.Story == nil {
			letter, err := p.nextLetter(req.Theme, num, resp.ChoicePath, &choices)
			if err != nil {
				return resp, err
			}
			resp.ChoicePath += letter
		}
	}
	return resp, nil
}

// CheckAdventure validates an adventure request without calling any backend.
func (p *Pipeline) CheckAdventure(req schema.AdventureRequest) error {
	if _, err := p.rules(req.AgeLevel); err != nil {
		return err
	}
	if strings.TrimSpace(req.Character.Name) == "" {
		return schema.ErrInvalidRequest.Withf("character name is required")
	}
	if req.Story != nil {
		if len(req.Story.Episodes) != schema.EpisodeCount {
			return schema.ErrInvalidRequest.Withf("story must have %d episodes, got %d", schema.EpisodeCount, len(req.Story.Episodes))
		}
		return nil
	}
	_, err := p.catalog.Theme(req.Theme)
	return err
}

// nextLetter returns the letter chosen at episode num, or "" when num is
// not a choice point. Unknown letters fall back to the default.
func (p *Pipeline) nextLetter(themeID string, num int, path string, choices *[]byte) (string, error) {
	spec, err := p.catalog.Episode(themeID, num, path)
	if err != nil || !spec.IsChoicePoint {
		return "", err
	}
	letter := spec.DefaultChoice
	if len(*choices) > 0 {
		want := string((*choices)[0])
		*choices = (*choices)[1:]
		if _, ok := spec.Choices[want]; ok {
			letter = want
		} else {
			log.Warn("Unknown choice, using default", "theme", themeID, "episode", num, "choice", want, "default", letter)
		}
	}
	return letter, nil
}
