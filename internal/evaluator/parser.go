package evaluator

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	// missingExplanation substitutes a null or absent explanation field.
	missingExplanation = "Обоснование не предоставлено"
	// noScoreFound is reported when no JSON object can be located in the output.
	noScoreFound = "Не удалось извлечь оценку"
)

// ParseModelOutput extracts a structured result from a raw model completion.
// The completion may wrap the JSON object in prose or markdown fences; null
// and missing fields are coerced to safe defaults. This function never fails:
// when nothing can be extracted it returns an all-zero result whose
// explanations carry the diagnostic.
func ParseModelOutput(raw string) *Result {
	span, ok := extractJSON(raw)
	if !ok {
		return uniformResult(noScoreFound)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(span), &data); err != nil {
		return uniformResult("Ошибка парсинга: " + err.Error())
	}

	return &Result{
		H1:            coerceScore(data["H1"]),
		H1Explanation: coerceExplanation(data["H1_explanation"]),
		H2:            coerceScore(data["H2"]),
		H2Explanation: coerceExplanation(data["H2_explanation"]),
		H3:            coerceScore(data["H3"]),
		H3Explanation: coerceExplanation(data["H3_explanation"]),
		H4:            coerceScore(data["H4"]),
		H4Explanation: coerceExplanation(data["H4_explanation"]),
	}
}

// extractJSON strips markdown fences and returns the greedy brace-delimited
// span, from the first '{' to the last '}'.
func extractJSON(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}

	return raw[start : end+1], true
}

// coerceScore converts a loosely-typed score to an integer. Null and missing
// values become 0. Out-of-band values are passed through uncorrected.
func coerceScore(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0
		}
		return n
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func coerceExplanation(v any) string {
	s, ok := v.(string)
	if !ok {
		return missingExplanation
	}
	if s = strings.TrimSpace(s); s == "" {
		return missingExplanation
	}
	return s
}
