package utils

import (
	"github.com/pkoukk/tiktoken-go"
)

func NumTokens(text string) (int, error) {
	tkm, err := tiktoken.EncodingForModel("gpt-4-0613")
	if err != nil {
		return 0, err
	}

	return len(tkm.Encode(text, nil, nil)), nil
}

// CompletionBudget estimates the completion tokens needed for a reply of
// roughly want tokens, never going below floor.
func CompletionBudget(prompt string, want, floor int64) int64 {
	n, err := NumTokens(prompt)
	if err != nil {
		n = len(prompt) / 4
	}
	return max(int64(n)/2+want, floor)
}
