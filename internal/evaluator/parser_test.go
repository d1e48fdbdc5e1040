package evaluator

import (
	"strings"
	"testing"
)

func TestParseModelOutputEmbeddedJSON(t *testing.T) {
	raw := `Вот моя оценка сочинения:
{"H1": 1, "H1_explanation": "Смысл фрагмента объяснен верно", "H2": 3, "H2_explanation": "Оба примера уместны", "H3": 2, "H3_explanation": "Логических ошибок нет", "H4": 1, "H4_explanation": "Композиция выдержана"}
Надеюсь, это поможет!`

	result := ParseModelOutput(raw)

	if result.H1 != 1 || result.H2 != 3 || result.H3 != 2 || result.H4 != 1 {
		t.Fatalf("unexpected scores: %+v", result)
	}
	if result.H2Explanation != "Оба примера уместны" {
		t.Fatalf("unexpected explanation: %q", result.H2Explanation)
	}
	if result.TotalScore() != 7 {
		t.Fatalf("expected total 7, got %d", result.TotalScore())
	}
}

func TestParseModelOutputCodeFence(t *testing.T) {
	raw := "```json\n{\"H1\": 1, \"H1_explanation\": \"ok\", \"H2\": 2, \"H2_explanation\": \"ok\", \"H3\": 1, \"H3_explanation\": \"ok\", \"H4\": 0, \"H4_explanation\": \"ok\"}\n```"

	result := ParseModelOutput(raw)
	if result.H1 != 1 || result.H2 != 2 || result.H3 != 1 || result.H4 != 0 {
		t.Fatalf("unexpected scores: %+v", result)
	}
}

func TestParseModelOutputNullAndMissingFields(t *testing.T) {
	raw := `{"H1": null, "H1_explanation": null, "H2": 2, "H3": "1"}`

	result := ParseModelOutput(raw)

	if result.H1 != 0 {
		t.Fatalf("null score must coerce to 0, got %d", result.H1)
	}
	if result.H1Explanation != missingExplanation {
		t.Fatalf("null explanation must use the placeholder, got %q", result.H1Explanation)
	}
	if result.H2 != 2 {
		t.Fatalf("expected H2=2, got %d", result.H2)
	}
	if result.H2Explanation != missingExplanation {
		t.Fatalf("missing explanation must use the placeholder, got %q", result.H2Explanation)
	}
	if result.H3 != 1 {
		t.Fatalf("string score must be parsed, got %d", result.H3)
	}
	if result.H4 != 0 {
		t.Fatalf("missing score must default to 0, got %d", result.H4)
	}
}

func TestParseModelOutputNoJSON(t *testing.T) {
	result := ParseModelOutput("Извините, я не могу оценить это сочинение.")

	for _, explanation := range []string{
		result.H1Explanation, result.H2Explanation, result.H3Explanation, result.H4Explanation,
	} {
		if explanation != noScoreFound {
			t.Fatalf("expected %q on every field, got %q", noScoreFound, explanation)
		}
	}
	if result.TotalScore() != 0 {
		t.Fatalf("expected zero total, got %d", result.TotalScore())
	}
}

func TestParseModelOutputMalformedJSON(t *testing.T) {
	result := ParseModelOutput(`{"H1": 1,, "H1_explanation": }`)

	if result.TotalScore() != 0 {
		t.Fatalf("expected zero total, got %d", result.TotalScore())
	}
	if !strings.HasPrefix(result.H1Explanation, "Ошибка парсинга:") {
		t.Fatalf("expected parse diagnostic, got %q", result.H1Explanation)
	}
	if result.H1Explanation != result.H4Explanation {
		t.Fatalf("diagnostic must repeat on all fields")
	}
}

func TestParseModelOutputOutOfRangeScoresPassThrough(t *testing.T) {
	raw := `{"H1": 5, "H1_explanation": "ok", "H2": -1, "H2_explanation": "ok", "H3": 2, "H3_explanation": "ok", "H4": 1, "H4_explanation": "ok"}`

	result := ParseModelOutput(raw)
	if result.H1 != 5 || result.H2 != -1 {
		t.Fatalf("out-of-range scores must not be clamped: %+v", result)
	}
}
