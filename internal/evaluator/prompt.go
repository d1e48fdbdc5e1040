package evaluator

import (
	"strings"

	_ "embed"
)

//go:embed prompt_type2.md
var promptType2 string

//go:embed prompt_type3.md
var promptType3 string

// formatInstructions names the exact JSON keys the parser expects back.
const formatInstructions = `Верни ответ строго в виде JSON-объекта со следующими ключами:
{"H1": <балл 0-1>, "H1_explanation": "<обоснование>", "H2": <балл 0-3>, "H2_explanation": "<обоснование>", "H3": <балл 0-2>, "H3_explanation": "<обоснование>", "H4": <балл 0-1>, "H4_explanation": "<обоснование>"}
Не добавляй никакого текста вне JSON-объекта.`

// PromptSpec is a rendered two-part prompt: the rubric as the system
// instruction and the essay plus schema hint as the user turn.
type PromptSpec struct {
	System string
	User   string
}

// buildPrompt renders the rubric template for the given essay type. The two
// rubric texts encode the official scoring bands and are reproduced verbatim;
// essay types outside {2,3} are rejected before reaching this function.
func buildPrompt(essayType int, taskText, essayText string) PromptSpec {
	template := promptType2
	if essayType == essayTypeMoral {
		template = promptType3
	}

	return PromptSpec{
		System: strings.ReplaceAll(template, "{{TASK_TEXT}}", taskText),
		User:   "Текст сочинения: " + essayText + "\n\n" + formatInstructions,
	}
}
