package ui

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

var DefaultSuggestions = []string{
	"What's the current market trend for Bitcoin?",
	"Should I buy Ethereum now?",
	"Explain what market cap means",
}

// completeSuggestion returns the suggestion tab should put in the input. An
// empty input or one equal to a suggestion cycles through the list; anything
// else is completed to the best fuzzy match.
func completeSuggestion(input string, suggestions []string) (string, bool) {
	if len(suggestions) == 0 {
		return "", false
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return suggestions[0], true
	}
	for i, s := range suggestions {
		if s == input {
			return suggestions[(i+1)%len(suggestions)], true
		}
	}

	matches := fuzzy.Find(input, suggestions)
	if len(matches) == 0 {
		return "", false
	}
	return suggestions[matches[0].Index], true
}
