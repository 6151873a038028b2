package anonymizer

import (
	"sort"
	"strings"
	"unicode"
)

// Rules maps an original term to its placeholder token. The same map drives
// both directions: Apply swaps originals for tokens before text leaves the
// process, Reverse restores originals in text coming back.
type Rules map[string]string

// Apply replaces every original term with its token. Matching is
// case-insensitive and word-bounded; the token is inserted verbatim so the
// model always sees a stable placeholder.
func Apply(text string, rules Rules) string {
	if len(rules) == 0 {
		return text
	}
	result := text
	for _, original := range keysByLengthDesc(rules) {
		result = replaceCaseInsensitive(result, original, rules[original])
	}
	return result
}

// Reverse restores original terms in model output. Tokens are matched
// case-insensitively because models occasionally re-case them, and the
// original's case pattern follows the casing found in the text.
func Reverse(text string, rules Rules) string {
	if len(rules) == 0 {
		return text
	}
	inverted := make(map[string]string, len(rules))
	for original, token := range rules {
		inverted[token] = original
	}
	result := text
	for _, token := range keysByLengthDesc(inverted) {
		result = replaceCasePreserving(result, token, inverted[token])
	}
	return result
}

// Longest first so "John Smith" wins over "John".
func keysByLengthDesc[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return len(keys[i]) > len(keys[j])
	})
	return keys
}

func replaceCaseInsensitive(text, original, replacement string) string {
	result := text
	originalLower := strings.ToLower(original)

	searchStart := 0
	for {
		idx := strings.Index(strings.ToLower(result)[searchStart:], originalLower)
		if idx == -1 {
			break
		}
		idx += searchStart

		if !isWordBoundaryAt(result, idx, len(originalLower)) {
			searchStart = idx + 1
			continue
		}

		result = result[:idx] + replacement + result[idx+len(originalLower):]
		searchStart = idx + len(replacement)
	}
	return result
}

// Tokens found in their canonical casing restore the stored original
// verbatim. A token the model re-cased gets the original styled to match
// what the model wrote.
func replaceCasePreserving(text, token, original string) string {
	result := text
	tokenLower := strings.ToLower(token)

	searchStart := 0
	for {
		idx := strings.Index(strings.ToLower(result)[searchStart:], tokenLower)
		if idx == -1 {
			break
		}
		idx += searchStart

		if !isWordBoundaryAt(result, idx, len(tokenLower)) {
			searchStart = idx + 1
			continue
		}

		found := result[idx : idx+len(tokenLower)]
		replaced := original
		if found != token {
			replaced = applyCasePattern(found, strings.ToLower(original))
		}

		result = result[:idx] + replaced + result[idx+len(tokenLower):]
		searchStart = idx + len(replaced)
	}
	return result
}

func isWordBoundaryAt(text string, idx, length int) bool {
	if idx > 0 && isASCIILetter(text[idx-1]) {
		return false
	}
	if idx+length < len(text) && isASCIILetter(text[idx+length]) {
		return false
	}
	return true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// applyCasePattern re-cases target to follow source: all caps stays all
// caps, all lower stays all lower, anything else title-cases. Compound
// terms are handled word by word when the word counts line up.
func applyCasePattern(source, target string) string {
	if len(source) == 0 || len(target) == 0 {
		return target
	}

	if strings.Contains(source, " ") && strings.Contains(target, " ") {
		sourceWords := strings.Fields(source)
		targetWords := strings.Fields(target)
		if len(sourceWords) == len(targetWords) {
			out := make([]string, len(targetWords))
			for i := range targetWords {
				out[i] = applyWordCase(sourceWords[i], targetWords[i])
			}
			return strings.Join(out, " ")
		}
	}

	return applyWordCase(source, target)
}

func applyWordCase(source, target string) string {
	if len(source) == 0 || len(target) == 0 {
		return target
	}
	switch {
	case isAllUpper(source):
		return strings.ToUpper(target)
	case isAllLower(source):
		return strings.ToLower(target)
	default:
		return strings.ToUpper(target[:1]) + strings.ToLower(target[1:])
	}
}

func isAllUpper(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func isAllLower(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.IsLower(r) {
			return false
		}
	}
	return true
}
