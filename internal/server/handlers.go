package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gromoveveryday/essay-grader/internal/evaluator"
	"go.uber.org/zap"
)

const defaultEssayType = 2

// Pointers distinguish absent keys from zero values so missing fields can be
// reported by name.
type evaluateRequest struct {
	EssayID   *int    `json:"essay_id"`
	EssayText *string `json:"essay_text"`
	TaskText  *string `json:"task_text"`
	EssayType *int    `json:"essay_type"`
}

func (r *evaluateRequest) missingFields() []string {
	var missing []string
	if r.EssayText == nil {
		missing = append(missing, "essay_text")
	}
	if r.TaskText == nil {
		missing = append(missing, "task_text")
	}
	return missing
}

func (r *evaluateRequest) essayType() int {
	if r.EssayType == nil {
		return defaultEssayType
	}
	return *r.EssayType
}

type evaluateResponse struct {
	evaluator.Result
	EssayType  int    `json:"essay_type"`
	TaskText   string `json:"task_text"`
	TotalScore int    `json:"total_score"`
	Status     string `json:"status"`
}

type batchEntry struct {
	ID int `json:"id"`
	evaluator.Result
	EssayType  int    `json:"essay_type"`
	TotalScore int    `json:"total_score"`
	Status     string `json:"status"`
}

type batchErrorEntry struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "essay-grader",
	})
}

func (s *Server) handleAPIHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": s.cfg.Version,
	})
}

func (s *Server) handleAPIEvaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	if missing := req.missingFields(); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields: " + strings.Join(missing, ", ")})
		return
	}
	if strings.TrimSpace(*req.EssayText) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "essay text cannot be empty"})
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	result := s.eval.EvaluateEssay(ctx, *req.EssayText, req.essayType(), *req.TaskText)

	c.JSON(http.StatusOK, evaluateResponse{
		Result:     *result,
		EssayType:  req.essayType(),
		TaskText:   *req.TaskText,
		TotalScore: result.TotalScore(),
		Status:     "success",
	})
}

func (s *Server) handleAPIBatchEvaluate(c *gin.Context) {
	var req struct {
		Essays *[]evaluateRequest `json:"essays"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	if req.Essays == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required field: essays"})
		return
	}

	essays := *req.Essays
	if len(essays) > s.cfg.MaxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "batch size exceeds the maximum of " + strconv.Itoa(s.cfg.MaxBatchSize) + " essays",
		})
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	results := make([]any, 0, len(essays))
	successful := 0

	for i, item := range essays {
		if missing := item.missingFields(); len(missing) > 0 {
			results = append(results, batchErrorEntry{
				ID:     i,
				Status: "error",
				Error:  "missing required fields: " + strings.Join(missing, ", "),
			})
			continue
		}
		if strings.TrimSpace(*item.EssayText) == "" {
			results = append(results, batchErrorEntry{
				ID:     i,
				Status: "error",
				Error:  "essay text cannot be empty",
			})
			continue
		}

		result := s.eval.EvaluateEssay(ctx, *item.EssayText, item.essayType(), *item.TaskText)
		results = append(results, batchEntry{
			ID:         i,
			Result:     *result,
			EssayType:  item.essayType(),
			TotalScore: result.TotalScore(),
			Status:     "success",
		})
		successful++
	}

	s.log.Info("batch evaluation finished",
		zap.Int("total", len(essays)),
		zap.Int("successful", successful),
	)

	c.JSON(http.StatusOK, gin.H{
		"results":         results,
		"total_processed": len(essays),
		"successful":      successful,
		"failed":          len(essays) - successful,
	})
}

func (s *Server) handleAPIDocs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "essay-grader",
		"version": s.cfg.Version,
		"endpoints": gin.H{
			"GET /health":              "liveness probe",
			"GET /api/health":          "service health and version",
			"GET /api/docs":            "this document",
			"POST /api/evaluate":       "evaluate a single essay; body: essay_text, task_text, optional essay_type (2 or 3, default 2)",
			"POST /api/batch-evaluate": "evaluate up to " + strconv.Itoa(s.cfg.MaxBatchSize) + " essays; body: {\"essays\": [...]}",
			"POST /evaluate":           "web form: upload a CSV file or name a server-side path",
			"GET /result":              "results page for the last web evaluation",
		},
		"criteria": gin.H{
			"H1": "понимание смысла фрагмента или предложенного понятия (0-1)",
			"H2": "примеры-иллюстрации, подтверждающие понимание (0-3)",
			"H3": "логичность речи и смысловая цельность (0-2)",
			"H4": "композиционная стройность (0-1)",
		},
	})
}

