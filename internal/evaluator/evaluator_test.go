package evaluator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

const modelVerdict = `{"H1":1,"H1_explanation":"ok","H2":3,"H2_explanation":"ok","H3":2,"H3_explanation":"ok","H4":1,"H4_explanation":"ok"}`

type stubGenerator struct {
	response   string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (s *stubGenerator) Generate(_ context.Context, system, user string) (string, error) {
	s.calls++
	s.lastSystem = system
	s.lastUser = user
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func longEssay() string {
	return strings.TrimSpace(strings.Repeat("слово ", 80))
}

func TestEvaluateEssayUnsupportedType(t *testing.T) {
	stub := &stubGenerator{response: modelVerdict}
	eval := New(stub, zap.NewNop(), 0)

	result := eval.EvaluateEssay(context.Background(), longEssay(), 5, "задание")

	if result.TotalScore() != 0 {
		t.Fatalf("expected zero total, got %d", result.TotalScore())
	}

	expected := "Тип сочинения 5 не поддерживается"
	for _, explanation := range []string{
		result.H1Explanation, result.H2Explanation, result.H3Explanation, result.H4Explanation,
	} {
		if explanation != expected {
			t.Fatalf("expected %q, got %q", expected, explanation)
		}
	}

	if stub.calls != 0 {
		t.Fatalf("model must not be called for unsupported types, got %d calls", stub.calls)
	}
}

func TestEvaluateEssayShortCircuitsBelowThreshold(t *testing.T) {
	stub := &stubGenerator{response: modelVerdict}
	eval := New(stub, zap.NewNop(), 0)

	result := eval.EvaluateEssay(context.Background(), "Слишком короткое сочинение.", 2, "задание")

	if result.TotalScore() != 0 {
		t.Fatalf("expected zero total, got %d", result.TotalScore())
	}
	if result.H1Explanation != "Недостаточный объем сочинения: 3 слов при требуемых 70" {
		t.Fatalf("unexpected explanation: %q", result.H1Explanation)
	}
	if stub.calls != 0 {
		t.Fatalf("model must not be called below the word threshold, got %d calls", stub.calls)
	}
}

func TestEvaluateEssayEndToEnd(t *testing.T) {
	stub := &stubGenerator{response: modelVerdict}
	eval := New(stub, zap.NewNop(), 0)

	result := eval.EvaluateEssay(context.Background(), longEssay(), 2, "Объясните смысл фрагмента.")

	if result.H1 != 1 || result.H2 != 3 || result.H3 != 2 || result.H4 != 1 {
		t.Fatalf("unexpected scores: %+v", result)
	}
	for _, explanation := range []string{
		result.H1Explanation, result.H2Explanation, result.H3Explanation, result.H4Explanation,
	} {
		if explanation != "ok" {
			t.Fatalf("unexpected explanation: %q", explanation)
		}
	}
	if result.TotalScore() != 7 {
		t.Fatalf("expected total 7, got %d", result.TotalScore())
	}

	if stub.calls != 1 {
		t.Fatalf("expected exactly one model call, got %d", stub.calls)
	}
	if !strings.Contains(stub.lastSystem, "13.2") {
		t.Fatalf("expected type 2 rubric in system prompt: %s", stub.lastSystem)
	}
	if !strings.Contains(stub.lastSystem, "Объясните смысл фрагмента.") {
		t.Fatalf("task text missing from system prompt")
	}
	if !strings.Contains(stub.lastUser, "Текст сочинения: ") {
		t.Fatalf("essay text missing from user prompt")
	}
	if !strings.Contains(stub.lastUser, `"H4_explanation"`) {
		t.Fatalf("format instructions missing from user prompt")
	}
}

func TestEvaluateEssaySelectsMoralRubric(t *testing.T) {
	stub := &stubGenerator{response: modelVerdict}
	eval := New(stub, zap.NewNop(), 0)

	eval.EvaluateEssay(context.Background(), longEssay(), 3, "Что такое доброта?")

	if !strings.Contains(stub.lastSystem, "13.3") {
		t.Fatalf("expected type 3 rubric in system prompt: %s", stub.lastSystem)
	}
}

func TestEvaluateEssayAbsorbsModelFailure(t *testing.T) {
	stub := &stubGenerator{err: errors.New("авторизация не удалась")}
	eval := New(stub, zap.NewNop(), 0)

	result := eval.EvaluateEssay(context.Background(), longEssay(), 2, "задание")

	if result.TotalScore() != 0 {
		t.Fatalf("expected zero total, got %d", result.TotalScore())
	}
	if result.H3Explanation != "Ошибка обработки: авторизация не удалась" {
		t.Fatalf("unexpected explanation: %q", result.H3Explanation)
	}
}

func TestEvaluateBatchIsolatesFailures(t *testing.T) {
	stub := &stubGenerator{response: modelVerdict}
	eval := New(stub, zap.NewNop(), 0)

	essays := []Essay{
		{EssayText: longEssay(), TaskText: "задание", EssayType: 2},
		{EssayText: "   ", TaskText: "задание", EssayType: 2},
		{EssayText: longEssay(), TaskText: "задание", EssayType: 3},
	}

	results := eval.EvaluateBatch(context.Background(), essays)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].TotalScore != 7 || results[2].TotalScore != 7 {
		t.Fatalf("expected healthy essays to score 7: %+v", results)
	}
	if results[1].TotalScore != 0 || results[1].H1Explanation != "Текст сочинения пустой" {
		t.Fatalf("expected empty essay to fail in place: %+v", results[1])
	}

	if results[0].EssayID != 1 || results[1].EssayID != 2 || results[2].EssayID != 3 {
		t.Fatalf("expected 1-based ids: %+v", results)
	}

	if stub.calls != 2 {
		t.Fatalf("expected 2 model calls, got %d", stub.calls)
	}
}

func TestEvaluateBatchKeepsExplicitIDs(t *testing.T) {
	stub := &stubGenerator{response: modelVerdict}
	eval := New(stub, zap.NewNop(), 0)

	results := eval.EvaluateBatch(context.Background(), []Essay{
		{EssayID: 42, EssayText: longEssay(), TaskText: "задание", EssayType: 2},
	})

	if results[0].EssayID != 42 {
		t.Fatalf("expected explicit id to be kept, got %d", results[0].EssayID)
	}
}
