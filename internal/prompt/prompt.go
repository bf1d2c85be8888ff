// Package prompt renders the two-message template for the chat completion
// path. Unlike the fill-in-middle allocator there is no length budget here;
// the chat providers accept much larger inputs.
package prompt

import (
	"fmt"
	"strings"

	"github.com/knight1008610000/codegen-server/internal/models"
)

const (
	maxIncludes  = 10
	maxFunctions = 5

	// nonePlaceholder marks an absent section in the user template.
	nonePlaceholder = "无"

	// cursorMarker sits between prompt and suffix in the rendered code block.
	cursorMarker = "▌"

	systemMessage = `你是一个专业的代码补全助手。
根据上下文代码，补全光标处的代码。
只输出需要补全的代码，不要输出解释或其他内容。
保持代码风格与上下文一致。`

	userTemplate = `上下文代码:
` + "```" + `
%s
` + "```" + `

当前文件中的函数:
%s

待补全代码:
` + "```" + `
%s` + cursorMarker + `%s
` + "```" + `

请补全光标处的代码:`
)

// Build renders the system/user message pair for a chat completion request.
func Build(ctx models.CompletionContext) []models.ChatMessage {
	includes := nonePlaceholder
	if len(ctx.Includes) > 0 {
		limited := ctx.Includes
		if len(limited) > maxIncludes {
			limited = limited[:maxIncludes]
		}
		includes = strings.Join(limited, "\n")
	}

	functions := renderFunctions(ctx.OtherFunctions)

	user := fmt.Sprintf(userTemplate, includes, functions, ctx.Prompt, ctx.Suffix)

	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: systemMessage},
		{Role: models.RoleUser, Content: user},
	}
}

func renderFunctions(functions []models.FunctionRef) string {
	if len(functions) == 0 {
		return nonePlaceholder
	}
	if len(functions) > maxFunctions {
		functions = functions[:maxFunctions]
	}

	var lines []string
	for _, fn := range functions {
		sig := fn.Signature
		if sig == "" {
			sig = fn.Name
		}
		if sig == "" {
			continue
		}
		lines = append(lines, "  "+sig)
	}
	if len(lines) == 0 {
		return nonePlaceholder
	}
	return strings.Join(lines, "\n")
}
