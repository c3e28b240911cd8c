package format

import "github.com/charmbracelet/glamour"

const markdownStyle = "dark"

// FormatMarkdown renders text for the terminal. A positive width wraps the
// output to fit it, leaving room for the style margins.
func FormatMarkdown(text string, width int) (string, error) {
	if width <= 0 {
		return glamour.Render(text, markdownStyle)
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(markdownStyle),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}
