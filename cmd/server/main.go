// Command server exposes the orchestration engine over HTTP: POST /invoke
// runs one question through engine.Graph.Invoke and returns the synthesized
// answer plus the audit trail; GET /health reports readiness.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/fractalhq/orcha/archive"
	"github.com/fractalhq/orcha/archive/file"
	"github.com/fractalhq/orcha/bootstrap"
	"github.com/fractalhq/orcha/config"
	"github.com/fractalhq/orcha/engine"
	"github.com/fractalhq/orcha/execctx"
	"github.com/fractalhq/orcha/history"
	"github.com/fractalhq/orcha/model"
	"github.com/fractalhq/orcha/model/anthropic"
)

// invokeRequest is the POST /invoke request body.
type invokeRequest struct {
	Question string `json:"question"`
}

// invokeResponse is the POST /invoke response body.
type invokeResponse struct {
	FinalAnswer any             `json:"final_answer,omitempty"`
	History     []history.Event `json:"history"`
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	configPath := getEnv("ORCHA_CONFIG", "agents.yaml")
	cfg, err := config.Load(configPath, ".env")
	if err != nil && !errors.Is(err, config.ErrNotFound) {
		log.Fatalf("config: %v", err)
	}

	reg := bootstrap.Registry(cfg)
	g := engine.New(reg, engineConfig(cfg))

	var modelClient model.Client
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		c, err := anthropic.NewFromAPIKey(apiKey, getEnv("ORCHA_MODEL", "claude-sonnet-4-5"))
		if err != nil {
			log.Fatalf("model client: %v", err)
		}
		modelClient = c
	}

	archiveDir := getEnv("ORCHA_ARCHIVE_DIR", "./archive-out")

	gin.SetMode(getEnv("GIN_MODE", gin.ReleaseMode))
	router := gin.Default()
	router.Use(otelgin.Middleware("orcha"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.POST("/invoke", func(c *gin.Context) {
		var req invokeRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Question == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}

		ectx, err := execctx.New(req.Question)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if modelClient != nil {
			ectx = ectx.WithModelClient("default", modelClient)
		}
		archive.Attach(c.Request.Context(), ectx, file.New(archiveDir))

		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
		defer cancel()

		ectx, err = g.Invoke(reqCtx, ectx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		answer, ok := ectx.GetFinalAnswer()
		resp := invokeResponse{History: ectx.History()}
		if ok {
			resp.FinalAnswer = answer
		}
		c.JSON(http.StatusOK, resp)
	})

	addr := ":" + getEnv("PORT", "8080")
	log.Printf("orcha listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func engineConfig(cfg *config.File) engine.Config {
	def := engine.DefaultConfig()
	if cfg == nil {
		return def
	}
	return engine.Config{
		MaxRetries: cfg.MaxRetries(def.MaxRetries),
		LoopBudget: cfg.LoopBudget(def.LoopBudget),
	}
}
