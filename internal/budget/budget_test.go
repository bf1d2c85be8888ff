package budget

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/knight1008610000/codegen-server/internal/models"
)

func TestAllocatePlainPromptPassesThrough(t *testing.T) {
	got := Allocate(models.CompletionContext{Prompt: "int main(){", Suffix: "}"})

	if got.FullPrompt != "int main(){" {
		t.Errorf("FullPrompt = %q, want prompt unchanged", got.FullPrompt)
	}
	if got.Suffix != "}" {
		t.Errorf("Suffix = %q, want %q", got.Suffix, "}")
	}
	if strings.Contains(got.FullPrompt, separator) {
		t.Error("separator emitted without includes or functions")
	}
}

func TestAllocateIncludesCappedAtTen(t *testing.T) {
	includes := make([]string, 25)
	for i := range includes {
		includes[i] = fmt.Sprintf("#include <h%d.h>", i)
	}

	got := Allocate(models.CompletionContext{Prompt: "x", Suffix: "", Includes: includes})

	count := strings.Count(got.FullPrompt, "#include")
	if count != MaxIncludes {
		t.Errorf("emitted %d include lines, want %d", count, MaxIncludes)
	}
	if !strings.Contains(got.FullPrompt, "#include <h9.h>") {
		t.Error("tenth include missing; the first ten entries should be kept")
	}
	if strings.Contains(got.FullPrompt, "#include <h10.h>") {
		t.Error("eleventh include emitted despite cap")
	}
}

func TestAllocateIncludesTrimmedAndEmptiesDropped(t *testing.T) {
	got := Allocate(models.CompletionContext{
		Prompt:   "x",
		Suffix:   "",
		Includes: []string{"  #include <a.h>  ", "   ", "", "#include <b.h>"},
	})

	lines := strings.Split(got.FullPrompt, "\n")
	if lines[0] != "#include <a.h>" || lines[1] != "#include <b.h>" {
		t.Errorf("include lines = %q, want trimmed entries with empties dropped", lines[:2])
	}
}

func TestAllocateWhitespaceOnlyIncludesEmitNoBlock(t *testing.T) {
	got := Allocate(models.CompletionContext{
		Prompt:   "int main(){",
		Suffix:   "}",
		Includes: []string{"   ", "\t"},
	})

	if got.FullPrompt != "int main(){" {
		t.Errorf("FullPrompt = %q, want bare prompt when every include is blank", got.FullPrompt)
	}
}

func TestAllocateFunctionsCappedAtFive(t *testing.T) {
	functions := make([]models.FunctionRef, 9)
	for i := range functions {
		functions[i] = models.FunctionRef{Name: fmt.Sprintf("fn%d", i), Signature: fmt.Sprintf("int fn%d()", i)}
	}

	got := Allocate(models.CompletionContext{Prompt: "x", Suffix: "", OtherFunctions: functions})

	count := strings.Count(got.FullPrompt, "//   ")
	if count != MaxFunctions {
		t.Errorf("emitted %d function lines, want %d", count, MaxFunctions)
	}
	if !strings.Contains(got.FullPrompt, functionsHeader) {
		t.Error("functions header missing")
	}
	if strings.Contains(got.FullPrompt, "fn5") {
		t.Error("sixth function emitted despite cap")
	}
}

func TestAllocateFunctionRendering(t *testing.T) {
	got := Allocate(models.CompletionContext{
		Prompt: "x",
		Suffix: "",
		OtherFunctions: []models.FunctionRef{
			{Name: "add", Signature: "int add(int, int)"},
			{Name: "sub"},
			{},
		},
	})

	for _, want := range []string{
		"//   int add(int, int)",
		"//   sub",
		"//   function_2",
	} {
		if !strings.Contains(got.FullPrompt, want) {
			t.Errorf("FullPrompt missing line %q:\n%s", want, got.FullPrompt)
		}
	}
}

func TestAllocateSeparatorBetweenBlocks(t *testing.T) {
	got := Allocate(models.CompletionContext{
		Prompt:         "int main(){",
		Suffix:         "}",
		Includes:       []string{"#include <a.h>"},
		OtherFunctions: []models.FunctionRef{{Name: "f", Signature: "void f()"}},
	})

	want := strings.Join([]string{
		"#include <a.h>",
		"",
		separator,
		"",
		functionsHeader,
		"//   void f()",
		"",
		separator,
		"",
		"int main(){",
	}, "\n")
	if got.FullPrompt != want {
		t.Errorf("FullPrompt =\n%q\nwant\n%q", got.FullPrompt, want)
	}
}

func TestAllocateSingleSeparatorWhenOnlyIncludes(t *testing.T) {
	got := Allocate(models.CompletionContext{
		Prompt:   "int main(){",
		Suffix:   "}",
		Includes: []string{"#include <a.h>"},
	})

	if strings.Count(got.FullPrompt, separator) != 1 {
		t.Errorf("want exactly one separator between includes and prompt, got:\n%s", got.FullPrompt)
	}
}

func TestAllocatePromptHeadTruncated(t *testing.T) {
	prompt := strings.Repeat("a", MaxPromptLength) + strings.Repeat("b", 5000)

	got := Allocate(models.CompletionContext{Prompt: prompt, Suffix: ""})

	if utf8.RuneCountInString(got.FullPrompt) != MaxPromptLength {
		t.Fatalf("FullPrompt length = %d, want %d", utf8.RuneCountInString(got.FullPrompt), MaxPromptLength)
	}
	if strings.Contains(got.FullPrompt, "b") {
		t.Error("prompt truncation kept the tail; the head must be kept")
	}
}

func TestAllocateOversizedPromptReservesSuffixWindow(t *testing.T) {
	// The 9000-rune prompt is first head-truncated to 4000; the result
	// must be a tail slice of that truncated prompt.
	prompt := strings.Repeat("p", 9000)

	got := Allocate(models.CompletionContext{Prompt: prompt, Suffix: ""})

	n := utf8.RuneCountInString(got.FullPrompt)
	if n > MaxTotalLength-reservedSuffix {
		t.Errorf("FullPrompt length = %d, want <= %d", n, MaxTotalLength-reservedSuffix)
	}
	wantTail := tail(head(prompt, MaxPromptLength), n)
	if got.FullPrompt != wantTail {
		t.Error("FullPrompt is not the tail of the head-truncated prompt")
	}
}

func TestAllocateSuffixShrinksFirst(t *testing.T) {
	// Prompt block of 4000 leaves 4000 for the suffix: well above the
	// minimum window, so only the suffix is cut.
	prompt := strings.Repeat("p", MaxPromptLength)
	suffix := strings.Repeat("s", 6000)

	got := Allocate(models.CompletionContext{Prompt: prompt, Suffix: suffix})

	if got.FullPrompt != prompt {
		t.Error("prompt was cut even though shrinking the suffix sufficed")
	}
	if utf8.RuneCountInString(got.Suffix) != MaxTotalLength-MaxPromptLength {
		t.Errorf("Suffix length = %d, want %d", utf8.RuneCountInString(got.Suffix), MaxTotalLength-MaxPromptLength)
	}
	if got.Suffix != head(suffix, MaxTotalLength-MaxPromptLength) {
		t.Error("suffix truncation must keep the head")
	}
}

func TestAllocatePromptCutFromFrontWhenSuffixWindowTooSmall(t *testing.T) {
	// Ten large includes push the assembled prompt near 8000 so the
	// remaining suffix window drops under the minimum; the prompt must
	// then give way from the front with 200 runes reserved for the suffix.
	includes := make([]string, 10)
	for i := range includes {
		includes[i] = strings.Repeat("i", 790)
	}
	suffix := strings.Repeat("s", 1000)

	got := Allocate(models.CompletionContext{
		Prompt:   strings.Repeat("p", 500),
		Suffix:   suffix,
		Includes: includes,
	})

	if utf8.RuneCountInString(got.FullPrompt) != MaxTotalLength-reservedSuffix {
		t.Errorf("FullPrompt length = %d, want %d", utf8.RuneCountInString(got.FullPrompt), MaxTotalLength-reservedSuffix)
	}
	if utf8.RuneCountInString(got.Suffix) != reservedSuffix {
		t.Errorf("Suffix length = %d, want %d", utf8.RuneCountInString(got.Suffix), reservedSuffix)
	}
	if !strings.HasSuffix(got.FullPrompt, strings.Repeat("p", 500)) {
		t.Error("prompt cut must keep the tail, which holds the near-cursor code")
	}
}

func TestAllocateBudgetInvariantFuzz(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		ctx := models.CompletionContext{
			Prompt: strings.Repeat("p", rng.Intn(12000)),
			Suffix: strings.Repeat("s", rng.Intn(12000)),
		}
		for j := rng.Intn(20); j > 0; j-- {
			ctx.Includes = append(ctx.Includes, strings.Repeat("i", rng.Intn(2000)))
		}
		for j := rng.Intn(10); j > 0; j-- {
			ctx.OtherFunctions = append(ctx.OtherFunctions, models.FunctionRef{
				Name:      "f",
				Signature: strings.Repeat("g", rng.Intn(300)),
			})
		}

		got := Allocate(ctx)
		total := utf8.RuneCountInString(got.FullPrompt) + utf8.RuneCountInString(got.Suffix)
		if total > MaxTotalLength {
			t.Fatalf("iteration %d: total length %d exceeds budget %d", i, total, MaxTotalLength)
		}
	}
}

func TestAllocateIdempotentOnOwnOutput(t *testing.T) {
	ctxs := []models.CompletionContext{
		{Prompt: "int main(){", Suffix: "}"},
		{Prompt: strings.Repeat("p", 3000), Suffix: strings.Repeat("s", 6000)},
		{Prompt: strings.Repeat("p", 4000), Suffix: strings.Repeat("s", 4000)},
	}

	for i, ctx := range ctxs {
		first := Allocate(ctx)
		second := Allocate(models.CompletionContext{Prompt: first.FullPrompt, Suffix: first.Suffix})
		if second != first {
			t.Errorf("case %d: re-allocation changed an in-budget output", i)
		}
	}
}

func TestAllocateCountsRunesNotBytes(t *testing.T) {
	// Multi-byte runes: 4000 runes of U+4E16 are 12000 bytes, but the
	// prompt must survive head truncation untouched.
	prompt := strings.Repeat("世", MaxPromptLength)

	got := Allocate(models.CompletionContext{Prompt: prompt, Suffix: ""})

	if got.FullPrompt != prompt {
		t.Error("rune-counted prompt at the limit was truncated")
	}
}
