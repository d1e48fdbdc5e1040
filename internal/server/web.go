package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gromoveveryday/essay-grader/internal/csvfile"
	"github.com/gromoveveryday/essay-grader/internal/evaluator"
	"go.uber.org/zap"
)

var (
	errNoFile = errors.New("не передан CSV файл и не указан путь к файлу")
	errNotCSV = errors.New("загруженный файл не является CSV файлом")
)

func (s *Server) handleStartPage(c *gin.Context) {
	c.HTML(http.StatusOK, "start.html", gin.H{})
}

func (s *Server) handleResultPage(c *gin.Context) {
	c.HTML(http.StatusOK, "result.html", gin.H{})
}

// handleWebEvaluate takes a CSV either as a multipart upload or as a
// server-side path, runs the batch and snapshots the results for the /result
// page. Errors come back on the start page instead of a JSON response.
func (s *Server) handleWebEvaluate(c *gin.Context) {
	essays, err := s.collectEssays(c)
	if err != nil {
		s.renderStartError(c, err.Error())
		return
	}
	if len(essays) > s.cfg.MaxBatchSize {
		s.renderStartError(c, "слишком много сочинений в файле: максимум "+
			strconv.Itoa(s.cfg.MaxBatchSize))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	results := s.eval.EvaluateBatch(ctx, essays)

	if err := s.writeSnapshot(results); err != nil {
		s.log.Error("writing results snapshot", zap.Error(err))
		s.renderStartError(c, "не удалось сохранить результаты: "+err.Error())
		return
	}

	c.Redirect(http.StatusSeeOther, "/result")
}

func (s *Server) collectEssays(c *gin.Context) ([]evaluator.Essay, error) {
	if path := strings.TrimSpace(c.PostForm("csv_path")); path != "" {
		return csvfile.Load(path)
	}

	upload, err := c.FormFile("csv_file")
	if err != nil {
		return nil, errNoFile
	}
	if !strings.EqualFold(filepath.Ext(upload.Filename), ".csv") {
		return nil, errNotCSV
	}

	tmp, err := os.CreateTemp("", "essays-*.csv")
	if err != nil {
		return nil, err
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := c.SaveUploadedFile(upload, tmp.Name()); err != nil {
		return nil, err
	}

	return csvfile.Load(tmp.Name())
}

func (s *Server) writeSnapshot(results []evaluator.BatchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.cfg.DataDir, snapshotFile), data, 0o644)
}

func (s *Server) renderStartError(c *gin.Context, msg string) {
	c.HTML(http.StatusOK, "start.html", gin.H{"Error": msg})
}
