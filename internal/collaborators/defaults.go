package collaborators

import (
	"context"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

var stopwords = buildStopwords()

func buildStopwords() map[string]struct{} {
	words := []string{
		"a", "about", "above", "am", "an", "and", "any", "are", "as", "at",
		"be", "because", "been", "before", "being", "below", "between", "both", "but", "by",
		"can", "could",
		"did", "do", "does", "doing", "down", "during",
		"each", "few", "for", "from", "further",
		"had", "has", "have", "having", "he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
		"i", "id", "if", "in", "into", "is", "it", "its", "itself",
		"me", "more", "most", "my", "myself",
		"of", "off", "on", "once", "only", "or", "other", "ought", "our", "ours", "ourselves", "out", "over", "own",
		"same", "she", "should", "so", "some", "such",
		"than", "that", "the", "their", "theirs", "them", "themselves", "then", "there", "these", "they", "this", "those", "through", "to", "too",
		"under", "until", "up",
		"very",
		"was", "we", "were", "what", "when", "where", "which", "while", "who", "whom", "why", "will", "with", "would",
		"you", "your", "yours", "yourself", "yourselves",
		"http", "https", "www", "com", "org", "io",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isHashLike(tok string) bool {
	if len(tok) < 8 {
		return false
	}
	digits, letters := 0, 0
	for _, r := range tok {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'a' && r <= 'z':
			letters++
		}
	}
	return digits > 0 && letters > 0 && digits+letters == len(tok) && digits >= len(tok)/3
}

// NormalizeText lowercases text and collapses everything but alphanumerics
// to single spaces, the same pre-pass the original applies before
// tokenizing and before keying the project's query cache.
func NormalizeText(text string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// DefaultTokenizer is a regexp/stopword-list tokenizer used when no
// LLM/NLP-backed Tokenizer is configured. It reproduces the filtering
// stage of original_source/src/nl.rs's tokenize_to_cues (stopwords,
// minimum length, hash-like rejection) but not its nlprule-based
// lemmatization step, since nlprule has no Go ecosystem counterpart in
// the example pack — tokens are emitted unstemmed. A production
// deployment is expected to wire a real NLP/LLM Tokenizer behind Guard
// instead.
type DefaultTokenizer struct{}

func (DefaultTokenizer) Tokenize(_ context.Context, text string) ([]string, error) {
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil, nil
	}
	var out []string
	for _, tok := range tokenPattern.FindAllString(normalized, -1) {
		if len(tok) <= 1 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if isHashLike(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out, nil
}
