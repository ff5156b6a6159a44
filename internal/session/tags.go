package session

import "strings"

type tagRule struct {
	tag      string
	keywords []string
}

// tagVocabulary is evaluated in order; the first MaxTags matches are kept.
var tagVocabulary = []tagRule{
	{"technology", []string{"technology", "software", "computer", "programming", "internet", "app", "device", "code"}},
	{"ai", []string{"artificial intelligence", " ai ", "machine learning", "neural", "llm", "chatgpt", "gpt", "deep learning"}},
	{"business", []string{"business", "company", "startup", "market", "industry", "enterprise", "ceo"}},
	{"finance", []string{"finance", "money", "stock", "investment", "bank", "crypto", "economy", "price"}},
	{"health", []string{"health", "medical", "doctor", "disease", "fever", "symptom", "hospital", "fitness"}},
	{"science", []string{"science", "research", "study", "experiment", "physics", "biology", "chemistry"}},
	{"education", []string{"education", "school", "university", "student", "learning", "course", "teacher"}},
	{"news", []string{"news", "breaking", "report", "announced", "headline"}},
	{"politics", []string{"politics", "government", "election", "policy", "minister", "president", "parliament"}},
	{"sports", []string{"sport", "football", "cricket", "soccer", "tennis", "match", "tournament", "olympic"}},
	{"entertainment", []string{"movie", "film", "music", "celebrity", "entertainment", "show", "game"}},
	{"travel", []string{"travel", "trip", "flight", "hotel", "tourism", "destination", "vacation"}},
}

// ExtractTags returns at most MaxTags vocabulary tags whose keywords occur in
// text, compared case-insensitively, in vocabulary order.
func ExtractTags(text string) []string {
	lowered := " " + strings.ToLower(text) + " "
	tags := make([]string, 0, MaxTags)
	for _, rule := range tagVocabulary {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				tags = append(tags, rule.tag)
				break
			}
		}
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}
