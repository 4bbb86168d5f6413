// Package transport exposes the evaluation engine over HTTP.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-ocr-eval/internal/config"
	apperrors "go-ocr-eval/internal/errors"
	"go-ocr-eval/internal/evaluator"
	"go-ocr-eval/internal/storage"
)

// EvaluationRequest asks for one full dataset evaluation. Source may be a
// directory on the server or an azure://container/prefix URL. ModelConfig is
// an optional JSON object of backend-specific overrides.
type EvaluationRequest struct {
	Backend     string `json:"backend" binding:"required"`
	Source      string `json:"source" binding:"required"`
	ModelConfig string `json:"model_config,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewHandler builds the HTTP router. The logger is injected; handlers never
// reach for a package-level one.
func NewHandler(cfg *config.Config, log *logrus.Logger) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/health", healthCheck)
	r.GET("/backends", listBackends)
	r.POST("/evaluate", evaluateDataset(cfg, log))

	return r
}

func evaluateDataset(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req EvaluationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.WithError(err).WithField("ip", c.ClientIP()).Error("Invalid request format")
			respondError(c, log, http.StatusBadRequest, "invalid request format", err)
			return
		}

		// Each request gets its own config copy so overrides never leak
		// between requests.
		reqCfg := *cfg
		if err := reqCfg.ApplyModelOverrides(req.Backend, req.ModelConfig); err != nil {
			respondError(c, log, http.StatusBadRequest, "invalid model config", err)
			return
		}

		backend, err := evaluator.NewBackend(evaluator.BackendType(req.Backend), &reqCfg, log)
		if err != nil {
			respondError(c, log, http.StatusBadRequest, "unsupported backend", err)
			return
		}

		provider, err := storage.ForSource(req.Source, &reqCfg, log)
		if err != nil {
			respondError(c, log, apperrors.GetStatusCode(err), "cannot access corpus source", err)
			return
		}
		defer func() {
			if cerr := provider.Cleanup(); cerr != nil {
				log.WithError(cerr).Warn("Corpus cleanup failed")
			}
		}()

		root, err := provider.Fetch(ctx, req.Source)
		if err != nil {
			respondError(c, log, determineStatusCode(err), "cannot fetch corpus", err)
			return
		}

		runner := evaluator.NewRunner(backend, evaluator.OptionsFromConfig(&reqCfg), log)
		summary, err := runner.EvaluateDataset(ctx, root)
		if err != nil {
			respondError(c, log, determineStatusCode(err), "evaluation failed", err)
			return
		}

		log.WithFields(logrus.Fields{
			"backend":            req.Backend,
			"source":             req.Source,
			"total_images":       summary.TotalImages,
			"overall_similarity": summary.OverallSimilarity,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Evaluation request completed")

		c.JSON(http.StatusOK, summary)
	}
}

func listBackends(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"backends": evaluator.SupportedBackends()})
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing request")
		c.Next()
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, log *logrus.Logger, code int, message string, err error) {
	log.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
