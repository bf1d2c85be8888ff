// Package budget assembles the fill-in-middle prompt and enforces the
// upstream length budget. Allocation is pure and deterministic: the same
// context always produces the same BudgetedPrompt.
//
// Lengths are counted in runes; the upstream limit is a character budget,
// not a byte budget.
package budget

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/knight1008610000/codegen-server/internal/models"
)

const (
	// MaxTotalLength caps len(FullPrompt)+len(Suffix) sent upstream.
	MaxTotalLength = 8000
	// MaxIncludes caps the number of include lines emitted.
	MaxIncludes = 10
	// MaxFunctions caps the number of function signature lines emitted.
	MaxFunctions = 5
	// MaxPromptLength caps the near-cursor code block before assembly.
	MaxPromptLength = 4000

	// minSuffixWindow is the smallest lookahead worth keeping when the
	// suffix is squeezed by a large prompt.
	minSuffixWindow = 100
	// reservedSuffix is the suffix allowance once the prompt itself must
	// be cut from the front.
	reservedSuffix = 200

	functionsHeader = "// Available functions in this file:"
	separator       = "=========="
)

// Allocate builds the bounded prompt/suffix pair for a fill-in-middle call.
//
// Block order: includes, function signatures, then the near-cursor code. The
// prompt keeps its head (the code nearest the cursor sits at the end of the
// block); when the assembled result busts the budget the suffix gives way
// first, then the prompt is cut from the front because its tail is closest to
// the cursor.
func Allocate(ctx models.CompletionContext) models.BudgetedPrompt {
	var parts []string

	includes := cleanIncludes(ctx.Includes)
	parts = append(parts, includes...)

	functions := renderFunctions(ctx.OtherFunctions)
	if len(includes) > 0 && len(functions) > 0 {
		parts = append(parts, "", separator, "")
	}
	parts = append(parts, functions...)

	if len(includes) > 0 || len(functions) > 0 {
		parts = append(parts, "", separator, "")
	}

	trimmedPrompt := head(ctx.Prompt, MaxPromptLength)
	parts = append(parts, trimmedPrompt)

	fullPrompt := strings.Join(parts, "\n")
	suffix := ctx.Suffix

	if utf8.RuneCountInString(fullPrompt)+utf8.RuneCountInString(suffix) > MaxTotalLength {
		fullPrompt, suffix = enforce(fullPrompt, suffix, trimmedPrompt)
	}

	return models.BudgetedPrompt{FullPrompt: fullPrompt, Suffix: suffix}
}

// enforce shrinks the pair back under MaxTotalLength. The suffix is truncated
// first as long as a useful lookahead window survives; otherwise the prompt is
// cut from the front with a fixed suffix reservation. The final fallback is
// reachable only if the assembled prompt alone overruns the budget by more
// than the reservation, which current constants do not allow, but it is kept
// so the invariant holds for any constant choice.
func enforce(fullPrompt, suffix, trimmedPrompt string) (string, string) {
	maxSuffix := MaxTotalLength - utf8.RuneCountInString(fullPrompt)
	if maxSuffix > minSuffixWindow {
		return fullPrompt, head(suffix, maxSuffix)
	}

	available := MaxTotalLength - reservedSuffix
	if available > 0 {
		return tail(fullPrompt, available), head(suffix, reservedSuffix)
	}

	return tail(trimmedPrompt, 500), head(suffix, 500)
}

func cleanIncludes(includes []string) []string {
	if len(includes) > MaxIncludes {
		includes = includes[:MaxIncludes]
	}
	out := make([]string, 0, len(includes))
	for _, inc := range includes {
		if trimmed := strings.TrimSpace(inc); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func renderFunctions(functions []models.FunctionRef) []string {
	if len(functions) == 0 {
		return nil
	}
	if len(functions) > MaxFunctions {
		functions = functions[:MaxFunctions]
	}

	out := make([]string, 0, len(functions)+1)
	out = append(out, functionsHeader)
	for i, fn := range functions {
		sig := fn.Signature
		if sig == "" {
			sig = fn.Name
		}
		if sig == "" {
			// Nameless entries still get a placeholder line so the
			// model knows another function exists.
			sig = fmt.Sprintf("function_%d", i)
		}
		out = append(out, "//   "+sig)
	}
	return out
}

// head returns the first n runes of s.
func head(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	return string([]rune(s)[count-n:])
}
