package evaluator

// Result holds the four OGE criterion scores with their explanations. The
// JSON field names match the keys the model is instructed to produce.
//
// Documented ranges: H1 0-1 (понимание/тезис), H2 0-3 (примеры),
// H3 0-2 (логичность), H4 0-1 (композиция). Parsed values outside these
// ranges are passed through uncorrected.
type Result struct {
	H1            int    `json:"H1"`
	H1Explanation string `json:"H1_explanation"`
	H2            int    `json:"H2"`
	H2Explanation string `json:"H2_explanation"`
	H3            int    `json:"H3"`
	H3Explanation string `json:"H3_explanation"`
	H4            int    `json:"H4"`
	H4Explanation string `json:"H4_explanation"`
}

// TotalScore sums the four criterion scores. It is derived on demand and
// never stored on the result itself.
func (r *Result) TotalScore() int {
	return r.H1 + r.H2 + r.H3 + r.H4
}

// uniformResult returns an all-zero result carrying the same explanation on
// every criterion. The result shape is never partial, even on total failure.
func uniformResult(explanation string) *Result {
	return &Result{
		H1Explanation: explanation,
		H2Explanation: explanation,
		H3Explanation: explanation,
		H4Explanation: explanation,
	}
}

// Essay is a single unit of batch evaluation input.
type Essay struct {
	EssayID   int    `json:"essay_id,omitempty" mapstructure:"essay_id"`
	EssayText string `json:"essay_text" mapstructure:"essay_text"`
	TaskText  string `json:"task_text" mapstructure:"task_text"`
	EssayType int    `json:"essay_type" mapstructure:"essay_type"`
}

// BatchResult tags an evaluation result with its source essay.
type BatchResult struct {
	EssayID    int    `json:"essay_id"`
	EssayType  int    `json:"essay_type"`
	TaskText   string `json:"task_text,omitempty"`
	EssayText  string `json:"essay_text,omitempty"`
	TotalScore int    `json:"total_score"`
	Result
}
