package matching

import (
	"strings"
	"unicode"
)

// stopWords are tokens carrying no matching signal in bank statement
// descriptions. Tokens shorter than minTokenLength are dropped as well.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "from": {}, "with": {},
	"payment": {}, "transfer": {}, "card": {}, "ref": {}, "inv": {},
	"invoice": {}, "fee": {}, "charge": {}, "debit": {}, "credit": {},
	"ltd": {}, "llc": {}, "inc": {}, "co": {},
}

const minTokenLength = 2

// keywordOverlapMin is the minimum share of a record's description tokens
// that must appear in the bank line description for the keyword rule to fire
const keywordOverlapMin = 0.5

// normalizeReference canonicalizes a reference string for comparison:
// whitespace removed, case folded
func normalizeReference(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// normalizeName lowercases a counterparty name and collapses runs of
// whitespace into single spaces
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// tokenize splits text into lowercase alphanumeric tokens, dropping stop
// words and very short tokens
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minTokenLength {
			continue
		}
		if _, skip := stopWords[f]; skip {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// counterpartyMatches reports whether the normalized counterparty name
// appears in the line description, either as a full substring or with every
// name token present
func counterpartyMatches(description, counterparty string) bool {
	name := normalizeName(counterparty)
	if name == "" {
		return false
	}

	desc := normalizeName(description)
	if strings.Contains(desc, name) {
		return true
	}

	nameTokens := tokenize(counterparty)
	if len(nameTokens) == 0 {
		return false
	}
	descTokens := tokenSet(tokenize(description))
	for _, t := range nameTokens {
		if _, ok := descTokens[t]; !ok {
			return false
		}
	}
	return true
}

// keywordOverlap returns the share of candidate tokens present in the line
// description tokens. Returns 0 when the candidate yields no tokens.
func keywordOverlap(lineDescription, candidateText string) float64 {
	candidateTokens := tokenize(candidateText)
	if len(candidateTokens) == 0 {
		return 0
	}

	lineTokens := tokenSet(tokenize(lineDescription))
	hits := 0
	for _, t := range candidateTokens {
		if _, ok := lineTokens[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(candidateTokens))
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
