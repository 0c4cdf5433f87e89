package utils

import (
	"strings"
	"unicode"

	"github.com/aryann/difflib"
)

func TokenizeWords(s string) []string {
	var out []string
	var cur []rune
	kind := -1 // 0=space,1=word,2=punct
	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, string(cur))
		cur = cur[:0]
	}
	for _, r := range s {
		k := 2
		switch {
		case unicode.IsSpace(r):
			k = 0
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || r == '-' || r == '\'':
			k = 1
		}
		if kind == -1 {
			kind = k
		}
		if k != kind {
			flush()
			kind = k
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

func words(s string) []string {
	var out []string
	for _, t := range TokenizeWords(strings.ToLower(s)) {
		if r := []rune(t)[0]; unicode.IsLetter(r) || unicode.IsNumber(r) {
			out = append(out, t)
		}
	}
	return out
}

// WordSimilarity returns the share of words two texts have in common, from 0 to 1.
func WordSimilarity(a, b string) float64 {
	aw, bw := words(a), words(b)
	if len(aw) == 0 && len(bw) == 0 {
		return 1
	}
	var common int
	for _, r := range difflib.Diff(aw, bw) {
		if r.Delta == difflib.Common {
			common++
		}
	}
	return 2 * float64(common) / float64(len(aw)+len(bw))
}
