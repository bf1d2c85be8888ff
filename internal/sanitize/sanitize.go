// Package sanitize normalises raw model output into a Suggestion.
package sanitize

import (
	"strings"
	"unicode/utf8"

	"github.com/knight1008610000/codegen-server/internal/models"
)

const (
	maxTextLength  = 500
	maxLabelLength = 30
)

// Models often wrap code in markdown fences even when told not to. Labelled
// variants must be stripped before the bare fence or the label survives.
var fenceMarkers = []string{"```cpp", "```python", "```c", "```"}

// Suggestion cleans raw model output and derives the display label. A nil
// result means the model produced nothing usable, which is a valid outcome,
// not an error.
func Suggestion(raw string) *models.Suggestion {
	text := strings.TrimSpace(raw)
	for _, marker := range fenceMarkers {
		text = strings.ReplaceAll(text, marker, "")
	}
	text = strings.TrimSpace(text)

	if text == "" {
		return nil
	}

	if utf8.RuneCountInString(text) > maxTextLength {
		text = string([]rune(text)[:maxTextLength])
	}

	return &models.Suggestion{Text: text, Label: label(text)}
}

// label is a single-line preview: the first 30 characters with newlines
// flattened, plus an ellipsis when the text was longer.
func label(text string) string {
	if utf8.RuneCountInString(text) <= maxLabelLength {
		return text
	}
	short := string([]rune(text)[:maxLabelLength])
	return strings.ReplaceAll(short, "\n", " ") + "..."
}
