package catalog

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"storybook/pkg/schema"
)

type ageFile struct {
	Levels []schema.AgeRules `json:"levels"`
}

type choiceFile struct {
	Prompt  string                   `json:"prompt"`
	Default string                   `json:"default,omitempty"`
	Options map[string]schema.Choice `json:"options"`
}

type variantFile struct {
	Title   string                     `json:"title,omitempty"`
	Scene   string                     `json:"scene,omitempty"`
	Stories map[schema.AgeLevel]string `json:"stories,omitempty"`
}

type branchFile struct {
	variantFile
	Default  string                 `json:"default,omitempty"`
	Branches map[string]*branchFile `json:"branches,omitempty"`
}

type episodeFile struct {
	EpisodeNum int `json:"episode_num"`
	branchFile
	// BranchOn names the choice episodes whose letters select each tree level.
	// Empty means the choice points before this episode, in order.
	BranchOn []int             `json:"branch_on,omitempty"`
	Choice   *choiceFile       `json:"choice,omitempty"`
	Endings  map[string]string `json:"endings,omitempty"`
}

type themeFile struct {
	schema.Theme
	Episodes []episodeFile `json:"episodes"`
}

type variant struct {
	title   string
	scene   string
	stories map[schema.AgeLevel]string
}

// node is one level of an episode's decision tree. A leaf holds the
// resolved variant; inner nodes pick a child by choice letter.
type node struct {
	variant  variant
	children map[string]*node
	def      string
}

func (n *node) leaf() bool { return len(n.children) == 0 }

type episode struct {
	num      int
	root     *node
	branchOn []int
	choice   *choiceFile
	endings  map[string]string
}

type theme struct {
	info     schema.Theme
	episodes []*episode
	// choicePoints lists choice episode numbers in ascending order.
	choicePoints []int
}

var tokenRX = regexp.MustCompile(`\{[A-Za-z0-9_]*\}`)

func checkTokens(field, text string, allowed []string) error {
	for _, tok := range tokenRX.FindAllString(text, -1) {
		if !slices.Contains(allowed, tok) {
			return fmt.Errorf("%s: unknown placeholder %s", field, tok)
		}
	}
	return nil
}

func defaultLetter(explicit string, keys []string) (string, error) {
	if explicit != "" {
		if !slices.Contains(keys, explicit) {
			return "", fmt.Errorf("default %q is not a defined branch", explicit)
		}
		return explicit, nil
	}
	slices.Sort(keys)
	return keys[0], nil
}

func validLetter(k string) bool {
	return len(k) == 1 && k[0] >= 'A' && k[0] <= 'Z'
}

func compileNode(b *branchFile, parent variant, depth int, where string) (*node, error) {
	v := parent
	if b.Title != "" {
		v.title = b.Title
	}
	if b.Scene != "" {
		v.scene = b.Scene
	}
	if len(b.Stories) > 0 {
		v.stories = b.Stories
	}

	n := &node{variant: v}
	if len(b.Branches) == 0 {
		if v.title == "" || strings.TrimSpace(v.scene) == "" || len(v.stories) == 0 {
			return nil, fmt.Errorf("%s: incomplete variant", where)
		}
		if err := checkTokens(where+" scene", v.scene, schema.SceneTokens); err != nil {
			return nil, err
		}
		for age, story := range v.stories {
			if !age.Valid() {
				return nil, fmt.Errorf("%s: unknown age level %q", where, age)
			}
			if err := checkTokens(fmt.Sprintf("%s story %s", where, age), story, schema.StoryTokens); err != nil {
				return nil, err
			}
		}
		return n, nil
	}
	if depth == 0 {
		return nil, fmt.Errorf("%s: branches deeper than the choices that precede it", where)
	}

	keys := slices.Collect(maps.Keys(b.Branches))
	n.children = make(map[string]*node, len(keys))
	for _, k := range keys {
		if !validLetter(k) {
			return nil, fmt.Errorf("%s: invalid branch key %q", where, k)
		}
		child, err := compileNode(b.Branches[k], v, depth-1, where+k)
		if err != nil {
			return nil, err
		}
		n.children[k] = child
	}
	def, err := defaultLetter(b.Default, keys)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", where, err)
	}
	n.def = def
	return n, nil
}

func compileTheme(tf themeFile) (*theme, error) {
	if tf.Name == "" {
		return nil, fmt.Errorf("theme %q has no name", tf.ID)
	}
	if len(tf.Episodes) != schema.EpisodeCount {
		return nil, fmt.Errorf("theme %q has %d episodes, want %d", tf.ID, len(tf.Episodes), schema.EpisodeCount)
	}
	eps := slices.Clone(tf.Episodes)
	slices.SortFunc(eps, func(a, b episodeFile) int { return a.EpisodeNum - b.EpisodeNum })

	t := &theme{info: tf.Theme}
	for i, ef := range eps {
		if ef.EpisodeNum != i+1 {
			return nil, fmt.Errorf("episodes are not numbered 1..%d", schema.EpisodeCount)
		}
		where := fmt.Sprintf("episode %d", ef.EpisodeNum)

		branchOn := ef.BranchOn
		if len(branchOn) == 0 {
			branchOn = slices.Clone(t.choicePoints)
		}
		for _, cp := range branchOn {
			if !slices.Contains(t.choicePoints, cp) {
				return nil, fmt.Errorf("%s: branches on %d which is not an earlier choice point", where, cp)
			}
		}

		root, err := compileNode(&ef.branchFile, variant{}, len(branchOn), where)
		if err != nil {
			return nil, err
		}
		ep := &episode{num: ef.EpisodeNum, root: root, branchOn: branchOn, endings: ef.Endings}

		for k, ending := range ef.Endings {
			if k == "" || strings.Trim(k, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") != "" {
				return nil, fmt.Errorf("%s: invalid ending key %q", where, k)
			}
			if err := checkTokens(where+" ending "+k, ending, schema.StoryTokens); err != nil {
				return nil, err
			}
		}

		if ef.Choice != nil {
			if len(ef.Choice.Options) == 0 {
				return nil, fmt.Errorf("%s: choice point without options", where)
			}
			keys := slices.Collect(maps.Keys(ef.Choice.Options))
			for _, k := range keys {
				if !validLetter(k) {
					return nil, fmt.Errorf("%s: invalid choice letter %q", where, k)
				}
			}
			def, err := defaultLetter(ef.Choice.Default, keys)
			if err != nil {
				return nil, fmt.Errorf("%s choice: %w", where, err)
			}
			if err := checkTokens(where+" choice prompt", ef.Choice.Prompt, schema.StoryTokens); err != nil {
				return nil, err
			}
			c := *ef.Choice
			c.Default = def
			ep.choice = &c
			t.choicePoints = append(t.choicePoints, ef.EpisodeNum)
		}
		t.episodes = append(t.episodes, ep)
	}
	return t, nil
}

// letters returns the choice letters that select each tree level of ep.
// Only choices made before ep are consulted.
func (t *theme) letters(ep *episode, path string) []byte {
	out := make([]byte, len(ep.branchOn))
	for i, cp := range ep.branchOn {
		idx := slices.Index(t.choicePoints, cp)
		if idx >= 0 && idx < len(path) {
			out[i] = path[idx]
		}
	}
	return out
}

// walk descends the decision tree, taking the child named by each letter
// and the node's default child when the letter is absent or undefined.
func (n *node) walk(letters []byte) (variant, string) {
	var key strings.Builder
	cur := n
	for i := 0; !cur.leaf(); i++ {
		next := cur.def
		if i < len(letters) {
			if _, ok := cur.children[string(letters[i])]; ok {
				next = string(letters[i])
			}
		}
		key.WriteString(next)
		cur = cur.children[next]
	}
	return cur.variant, key.String()
}

// prior trims path to the choices made strictly before episode num.
func (t *theme) prior(num int, path string) string {
	var n int
	for _, cp := range t.choicePoints {
		if cp < num {
			n++
		}
	}
	return path[:min(n, len(path))]
}

// ending returns the ending keyed by the longest prefix of path.
func (ep *episode) ending(path string) (string, bool) {
	for l := len(path); l > 0; l-- {
		if e, ok := ep.endings[path[:l]]; ok {
			return e, true
		}
	}
	return "", false
}
