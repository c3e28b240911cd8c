package price

import (
	"fmt"
	"regexp"
	"strings"
)

var symbolIDPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Symbol identifies a coin on the price index.
type Symbol struct {
	ID   string
	Name string
}

// ParseSymbols reads "id" or "id=Name" entries. Names default to the id.
func ParseSymbols(entries []string) ([]Symbol, error) {
	symbols := make([]Symbol, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, name, _ := strings.Cut(entry, "=")
		id = strings.ToLower(strings.TrimSpace(id))
		name = strings.TrimSpace(name)
		if !symbolIDPattern.MatchString(id) {
			return nil, fmt.Errorf("invalid symbol id %q", id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if name == "" {
			name = id
		}
		symbols = append(symbols, Symbol{ID: id, Name: name})
	}
	return symbols, nil
}
