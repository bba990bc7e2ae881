package preprocess

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	urlPattern    = regexp.MustCompile(`(?i)http\S+|www.\S+`)
	emailPattern  = regexp.MustCompile(`\S+@\S+`)
	numberPattern = regexp.MustCompile(`\b\d+\b`)
	unitPattern   = regexp.MustCompile(`^\s*(?:(?:years?|months?|days?|dollars?|percent)\b|%)`)
)

// CleanText applies compatibility decomposition, drops every character that is not
// a letter, digit, underscore, whitespace or one of ". , ! ? -", collapses
// whitespace runs and trims the result.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKD.String(s)

	kept := strings.Map(func(r rune) rune {
		if keepInText(r) {
			return r
		}
		return -1
	}, s)

	return collapseSpace(kept)
}

// CleanQuery lowercases s, replaces punctuation and symbols with spaces and
// collapses whitespace.
func CleanQuery(s string) string {
	s = strings.ToLower(s)

	replaced := strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)

	return collapseSpace(replaced)
}

// PreprocessSingleText prepares one text for an embedding model: URLs, emails and
// bare integers without a unit word are removed, the rest is cleaned and lowercased.
func PreprocessSingleText(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKD.String(s)
	s = strings.ToLower(s)

	// URLs and emails go before character stripping, which would destroy their shape.
	s = urlPattern.ReplaceAllString(s, " ")
	s = emailPattern.ReplaceAllString(s, " ")
	s = removeBareNumbers(s)

	return CleanText(s)
}

// PreprocessForEmbedding maps PreprocessSingleText over texts
func PreprocessForEmbedding(texts ...string) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = PreprocessSingleText(text)
	}
	return out
}

// FilterTexts keeps the texts whose cleaned form has at least minLength characters
func FilterTexts(texts []string, minLength int) []string {
	out := make([]string, 0, len(texts))
	for _, text := range texts {
		if longEnough(text, minLength) {
			out = append(out, text)
		}
	}
	return out
}

func removeBareNumbers(s string) string {
	matches := numberPattern.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range matches {
		if unitPattern.MatchString(s[m[1]:]) {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteByte(' ')
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func longEnough(text string, minLength int) bool {
	return len([]rune(CleanText(text))) >= minLength
}

func keepInText(r rune) bool {
	if isWordRune(r) || unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '.', ',', '!', '?', '-':
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
