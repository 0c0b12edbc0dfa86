package services

import (
	"slices"
	"strings"
	"unicode"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// stopWords are dropped before token overlap scoring.
var stopWords = map[string]bool{
	"a": true, "about": true, "after": true, "all": true, "am": true, "an": true, "and": true, "any": true,
	"are": true, "as": true, "at": true, "be": true, "been": true, "but": true, "by": true, "can": true,
	"could": true, "did": true, "do": true, "does": true, "for": true, "from": true, "get": true, "had": true,
	"has": true, "have": true, "he": true, "her": true, "him": true, "his": true, "how": true, "i": true,
	"if": true, "in": true, "into": true, "is": true, "it": true, "its": true, "just": true, "me": true,
	"my": true, "of": true, "on": true, "or": true, "she": true, "should": true, "so": true, "some": true,
	"that": true, "the": true, "their": true, "them": true, "then": true, "there": true, "they": true,
	"this": true, "to": true, "was": true, "we": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "why": true, "will": true, "with": true, "would": true,
	"you": true, "your": true,
}

// anchorRule describes a disambiguating topic word and the context that
// confirms its intended sense.
type anchorRule struct {
	triggers       []string
	stem           string
	companions     []string
	falsePositives []string
}

// defaultAnchorRules cover topics whose words double as common idioms.
var defaultAnchorRules = []anchorRule{
	{
		triggers: []string{"medicine", "medical", "med", "medic"},
		stem:     "medic",
		companions: []string{
			"school", "student", "study", "degree", "exam", "university", "college", "doctor",
			"nurse", "hospital", "scholarship", "residency", "class", "semester", "premed", "career",
		},
		falsePositives: []string{"own medicine", "best medicine", "medicine ball"},
	},
	{
		triggers:       []string{"law", "lawyer", "legal"},
		stem:           "law",
		companions:     []string{"school", "student", "study", "degree", "exam", "firm", "university", "bar", "attorney"},
		falsePositives: []string{"law of attraction", "in law", "law of averages", "murphy's law"},
	},
	{
		triggers:       []string{"engineering", "engineer"},
		stem:           "engineer",
		companions:     []string{"school", "student", "study", "degree", "university", "software", "mechanical", "civil"},
		falsePositives: []string{"social engineering", "reverse engineer"},
	},
}

var exampleCues = []string{"example", "show me", "infield", "real life", "in action", "what did he say", "what did she say", "demonstrat"}

var techniqueCues = []string{"how do i", "how to", "how can i", "technique", "what should i say", "what do i say", "tips"}

// QueryRewriter turns a question into a query plan.
type QueryRewriter struct {
	rules []anchorRule
}

// NewQueryRewriter creates a rewriter with the built-in anchor rules.
func NewQueryRewriter() *QueryRewriter {
	return &QueryRewriter{rules: defaultAnchorRules}
}

// Rewrite normalizes the question, extracts stemmed content tokens, detects
// intent and resolves anchors.
func (r *QueryRewriter) Rewrite(question string) domain.QueryPlan {
	ws := words(question)
	plan := domain.QueryPlan{Question: strings.TrimSpace(question)}

	var content []string
	seen := make(map[string]bool)
	for _, w := range ws {
		if stopWords[w] {
			continue
		}
		content = append(content, w)
		tok := stem(w)
		if !seen[tok] {
			seen[tok] = true
			plan.Tokens = append(plan.Tokens, tok)
		}
	}
	plan.Normalized = strings.Join(content, " ")
	plan.Intent = detectIntent(strings.Join(ws, " "))

	for _, rule := range r.rules {
		for _, w := range ws {
			if !slices.Contains(rule.triggers, w) {
				continue
			}
			plan.Anchors = append(plan.Anchors, domain.Anchor{
				Word:           w,
				Stem:           rule.stem,
				Companions:     rule.companions,
				FalsePositives: rule.falsePositives,
			})
			break
		}
	}
	return plan
}

func detectIntent(normalized string) domain.QueryIntent {
	for _, cue := range exampleCues {
		if strings.Contains(normalized, cue) {
			return domain.IntentExample
		}
	}
	for _, cue := range techniqueCues {
		if strings.Contains(normalized, cue) {
			return domain.IntentTechnique
		}
	}
	return domain.IntentGeneral
}

// words lowercases text and splits it on anything but letters, digits and
// apostrophes.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// normalizePhrase is the lowercased, punctuation-free form used for phrase
// and idiom matching.
func normalizePhrase(text string) string {
	return strings.Join(words(text), " ")
}

// tokenSet returns the stemmed content tokens of a passage.
func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range words(text) {
		if !stopWords[w] {
			set[stem(w)] = true
		}
	}
	return set
}

// stem folds plural, gerund and past-tense endings.
func stem(w string) string {
	w = strings.TrimSuffix(strings.TrimSuffix(w, "'s"), "'")
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		return w[:len(w)-3]
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		return w[:len(w)-2]
	case len(w) > 4 && strings.HasSuffix(w, "es") && strings.ContainsAny(w[len(w)-3:len(w)-2], "sxz"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}
