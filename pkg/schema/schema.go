package schema

import (
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
)

func generateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

var (
	StoryOptionsSchema     = generateSchema[StoryOptions]()
	CharacterProfileSchema = generateSchema[CharacterProfile]()
)

func responseFormat(name, description string, schema any) openai.ChatCompletionNewParamsResponseFormatUnion {
	p := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: p},
	}
}

// StoryOptionsResponseFormat constrains story generation to StoryOptions.
func StoryOptionsResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	return responseFormat("story_options", "Themed ten-episode colouring adventures for one character", StoryOptionsSchema)
}

// CharacterProfileResponseFormat constrains drawing analysis to CharacterProfile.
func CharacterProfileResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	return responseFormat("character_profile", "Character extracted from a child's drawing", CharacterProfileSchema)
}
