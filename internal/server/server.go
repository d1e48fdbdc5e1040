package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gromoveveryday/essay-grader/internal/evaluator"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const snapshotFile = "temp_results.json"

// EssayEvaluator is the evaluation contract the handlers depend on. The
// concrete evaluator never returns errors; every outcome is a well-formed
// result.
type EssayEvaluator interface {
	EvaluateEssay(ctx context.Context, essayText string, essayType int, taskText string) *evaluator.Result
	EvaluateBatch(ctx context.Context, essays []evaluator.Essay) []evaluator.BatchResult
}

// Config holds the HTTP surface settings.
type Config struct {
	Address string
	// DataDir stores the results snapshot served under /static.
	DataDir        string
	MaxBatchSize   int
	RequestTimeout time.Duration
	Version        string
}

// Server exposes the evaluator over HTTP: a JSON API, a CSV upload form and
// two static pages.
type Server struct {
	cfg    Config
	eval   EssayEvaluator
	log    *zap.Logger
	engine *gin.Engine
}

// New builds the server and its routes. The evaluator is injected explicitly
// so tests can substitute a stub.
func New(cfg Config, eval EssayEvaluator, log *zap.Logger) (*Server, error) {
	if eval == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.Address == "" {
		cfg.Address = ":8000"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-Timeout"},
		ExposeHeaders: []string{"Content-Length"},
	}))
	engine.SetHTMLTemplate(tmpl)

	s := &Server{
		cfg:    cfg,
		eval:   eval,
		log:    log,
		engine: engine,
	}

	engine.GET("/", s.handleStartPage)
	engine.GET("/result", s.handleResultPage)
	engine.GET("/health", s.handleHealth)
	engine.GET("/api/health", s.handleAPIHealth)
	engine.GET("/api/docs", s.handleAPIDocs)
	engine.Static("/static", cfg.DataDir)

	engine.POST("/evaluate", s.handleWebEvaluate)
	engine.POST("/api/evaluate", s.handleAPIEvaluate)
	engine.POST("/api/batch-evaluate", s.handleAPIBatchEvaluate)

	return s, nil
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	s.log.Info("starting http server", zap.String("address", s.cfg.Address))
	return s.engine.Run(s.cfg.Address)
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requestContext derives a per-request evaluation deadline. The configured
// timeout can be overridden with the X-Request-Timeout header (seconds).
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.RequestTimeout
	if header := c.GetHeader("X-Request-Timeout"); header != "" {
		if v, err := strconv.Atoi(header); err == nil && v > 0 {
			timeout = time.Duration(v) * time.Second
		}
	}

	if timeout <= 0 {
		return c.Request.Context(), func() {}
	}

	return context.WithTimeout(c.Request.Context(), timeout)
}
