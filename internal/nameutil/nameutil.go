// Package nameutil provides pure text helpers for the name-collection
// onboarding flow: extracting a candidate name from free text,
// validating it, and classifying yes/no confirmation replies.
package nameutil

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Length bounds for a valid display name.
const (
	MinNameLength = 2
	MaxNameLength = 100
)

var (
	// Common self-introduction phrases stripped before extracting the
	// name. Portuguese first (primary audience), then English variants.
	introPhrases = regexp.MustCompile(`(meu nome é|eu sou|me chamo|sou o|sou a|pode me chamar de|meu nome e|eu me chamo|my name is|i am|i'm|call me)`)

	// Symbols and emoji: anything that is not a letter, digit,
	// underscore or whitespace.
	symbolPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

	digitPattern = regexp.MustCompile(`\p{N}+`)

	// Letters (accented included) and spaces only.
	validNamePattern = regexp.MustCompile(`^[a-zA-ZÀ-ÿ\s]+$`)

	titleCaser = cases.Title(language.BrazilianPortuguese)
)

// Positive confirmation keywords, tested before the negative set.
// Matching is by substring, so short entries like "s" match liberally;
// this mirrors the production keyword tables on purpose.
var positiveKeywords = []string{
	"sim", "s", "yes", "y", "yep", "yeah",
	"correto", "certo", "exato", "isso mesmo",
	"ok", "okay", "beleza", "confirmo",
	"perfeito", "pode ser", "isso", "uhum",
}

// Negative confirmation keywords.
var negativeKeywords = []string{
	"não", "nao", "n", "no", "nope",
	"incorreto", "errado", "negativo",
	"está errado", "ta errado", "nops",
}

// Normalize extracts a candidate display name from free text: strips
// self-introduction phrases, symbols, emoji and digits, collapses
// whitespace and title-cases each word. Deterministic and idempotent.
func Normalize(rawText string) string {
	if rawText == "" {
		return ""
	}

	// Stripping runs to a fixpoint: removing a symbol or collapsing
	// whitespace can expose an intro phrase that the first pass missed
	// ("sou. o pedro" -> "sou o pedro" -> "pedro"), and idempotency
	// requires a second Normalize to change nothing.
	text := strings.ToLower(rawText)
	for {
		next := introPhrases.ReplaceAllString(text, "")
		next = symbolPattern.ReplaceAllString(next, "")
		next = digitPattern.ReplaceAllString(next, "")
		next = strings.Join(strings.Fields(next), " ")
		if next == text {
			break
		}
		text = next
	}

	return strings.TrimSpace(titleCaser.String(text))
}

// IsValidName reports whether a normalized candidate looks like a real
// name: within length bounds and made of letters (accented included)
// and spaces only.
func IsValidName(candidate string) bool {
	n := utf8.RuneCountInString(candidate)
	if n < MinNameLength || n > MaxNameLength {
		return false
	}
	return validNamePattern.MatchString(candidate)
}

// ClassifyConfirmation decides whether a reply is a yes/no confirmation.
// Returns (isConfirmation, isPositive). The positive keyword set is
// tested first, so a reply containing both resolves positive; that
// precedence is deliberate and pinned by tests.
func ClassifyConfirmation(rawText string) (bool, bool) {
	text := strings.ToLower(strings.TrimSpace(rawText))

	for _, word := range positiveKeywords {
		if strings.Contains(text, word) {
			return true, true
		}
	}
	for _, word := range negativeKeywords {
		if strings.Contains(text, word) {
			return true, false
		}
	}
	return false, false
}
