package ai

import (
	"context"
)

// Generator abstracts a language-model completion service. It accepts a
// two-part prompt (system instruction plus user content) and returns the raw
// textual completion, which may or may not contain valid JSON.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	Model() string
}
