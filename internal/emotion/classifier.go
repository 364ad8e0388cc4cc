package emotion

import "regexp"

// Tag labels the emotional tone of a bot reply.
type Tag string

const (
	Calm    Tag = "calm"
	Excited Tag = "excited"
	Sad     Tag = "sad"
	Angry   Tag = "angry"
	Happy   Tag = "happy"
	Neutral Tag = "neutral"
)

type rule struct {
	pattern *regexp.Regexp
	tag     Tag
}

// rules are evaluated top to bottom and the first match wins. The order is
// deliberate: a reply can contain keywords from several categories (sorry
// about that happy memory), and ties resolve to the earlier rule. Do not
// reorder or convert to a map.
var rules = []rule{
	{regexp.MustCompile(`(?i)calm|relaxed|peaceful|soothing|gentle|serene`), Calm},
	{regexp.MustCompile(`(?i)excited|amazing|awesome|fantastic|great|wow|yay|energy|enthusiastic`), Excited},
	{regexp.MustCompile(`(?i)sad|sorry|unfortunately|regret|disappointed|upset`), Sad},
	{regexp.MustCompile(`(?i)angry|frustrated|annoyed|mad|irritated`), Angry},
	{regexp.MustCompile(`(?i)happy|joy|delighted|smile|cheerful|glad`), Happy},
}

// Classify maps reply text to a tone tag. It is pure and total: unknown text
// classifies as Neutral.
func Classify(text string) Tag {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.tag
		}
	}
	return Neutral
}
