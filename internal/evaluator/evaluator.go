package evaluator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gromoveveryday/essay-grader/internal/ai"
	"github.com/gromoveveryday/essay-grader/internal/logger"
	"go.uber.org/zap"
)

const (
	// MinWordCount is the OGE eligibility threshold: shorter essays are
	// scored zero on every criterion without a model call.
	MinWordCount = 70

	essayTypeLiterary = 2
	essayTypeMoral    = 3

	defaultMaxLogLength = 200
)

// Evaluator orchestrates essay scoring: eligibility gates, prompt rendering,
// the model call and resilient parsing of the completion.
type Evaluator struct {
	generator ai.Generator
	log       *zap.Logger
	maxLogLen int
}

// New creates an Evaluator around the provided generator. maxLogLength
// bounds prompt and response previews in debug logs.
func New(generator ai.Generator, log *zap.Logger, maxLogLength int) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Evaluator{
		generator: generator,
		log:       log,
		maxLogLen: maxLogLength,
	}
}

// EvaluateEssay scores a single essay against the H1-H4 rubric. It never
// returns an error: unsupported types, short essays, model failures and
// malformed completions all degrade to an all-zero result whose explanations
// carry the reason.
func (e *Evaluator) EvaluateEssay(ctx context.Context, essayText string, essayType int, taskText string) *Result {
	if essayType != essayTypeLiterary && essayType != essayTypeMoral {
		return uniformResult(fmt.Sprintf("Тип сочинения %d не поддерживается", essayType))
	}

	wordCount := CountEligibleWords(essayText)
	if wordCount < MinWordCount {
		e.log.Debug("essay below word threshold",
			zap.Int("word_count", wordCount),
			zap.Int("required", MinWordCount),
		)
		return uniformResult(fmt.Sprintf("Недостаточный объем сочинения: %d слов при требуемых %d", wordCount, MinWordCount))
	}

	prompt := buildPrompt(essayType, taskText, essayText)

	e.log.Debug("model request",
		zap.Int("essay_type", essayType),
		zap.Int("word_count", wordCount),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt.User)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt.User, e.maxLogLen)),
	)

	raw, err := e.generator.Generate(ctx, prompt.System, prompt.User)
	if err != nil {
		e.log.Warn("model call failed", zap.Int("essay_type", essayType), zap.Error(err))
		return uniformResult("Ошибка обработки: " + err.Error())
	}

	e.log.Debug("model response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	return ParseModelOutput(raw)
}

// EvaluateBatch scores essays strictly sequentially, one model call at a
// time. A failure on one essay never aborts the batch: the corresponding
// entry carries the diagnostic and the loop continues.
func (e *Evaluator) EvaluateBatch(ctx context.Context, essays []Essay) []BatchResult {
	results := make([]BatchResult, 0, len(essays))

	for i, essay := range essays {
		e.log.Info("evaluating essay", zap.Int("current", i+1), zap.Int("total", len(essays)))

		id := essay.EssayID
		if id == 0 {
			id = i + 1
		}

		var result *Result
		if strings.TrimSpace(essay.EssayText) == "" {
			result = uniformResult("Текст сочинения пустой")
		} else {
			result = e.EvaluateEssay(ctx, essay.EssayText, essay.EssayType, essay.TaskText)
		}

		results = append(results, BatchResult{
			EssayID:    id,
			EssayType:  essay.EssayType,
			TaskText:   essay.TaskText,
			EssayText:  essay.EssayText,
			TotalScore: result.TotalScore(),
			Result:     *result,
		})
	}

	return results
}
