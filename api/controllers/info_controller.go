package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geekydillip/Market-Pulse-AI-sub000/llm"
	"github.com/geekydillip/Market-Pulse-AI-sub000/processors"
	"github.com/geekydillip/Market-Pulse-AI-sub000/session"
	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
)

const ollamaCheckTimeout = 3 * time.Second

type InfoController struct {
	gateway      *llm.Gateway
	catalog      *llm.Catalog
	sessions     *session.Registry
	defaultModel string
	startedAt    time.Time
}

func NewInfoController(gateway *llm.Gateway, catalog *llm.Catalog, sessions *session.Registry, defaultModel string) *InfoController {
	return &InfoController{
		gateway:      gateway,
		catalog:      catalog,
		sessions:     sessions,
		defaultModel: defaultModel,
		startedAt:    time.Now(),
	}
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version         string    `json:"version"`
	Uptime          string    `json:"uptime"`
	OllamaURL       string    `json:"ollamaUrl"`
	OllamaReachable bool      `json:"ollamaReachable"`
	OllamaError     string    `json:"ollamaError,omitempty"`
	DefaultModel    string    `json:"defaultModel"`
	ActiveSessions  []string  `json:"activeSessions"`
	Gateway         llm.Stats `json:"gateway"`
}

func (ctrl *InfoController) HandleProcessingTypes(c *gin.Context) {
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(processors.Infos()))
}

// HandleModels lists the models installed in the local Ollama.
func (ctrl *InfoController) HandleModels(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ollamaCheckTimeout)
	defer cancel()
	models, err := ctrl.catalog.Models(ctx)
	if err != nil {
		tool.DefaultLogger.Warnf("[Models] %v", err)
		c.JSON(http.StatusBadGateway, tool.FastReturnError("Ollama is not reachable at "+ctrl.gateway.Endpoint()))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(gin.H{
		"defaultModel": ctrl.defaultModel,
		"models":       models,
	}))
}

func (ctrl *InfoController) HandleStatus(c *gin.Context) {
	active := ctrl.sessions.Active()
	sort.Strings(active)
	resp := StatusResponse{
		Version:        tool.VersionString(),
		Uptime:         time.Since(ctrl.startedAt).Round(time.Second).String(),
		OllamaURL:      ctrl.gateway.Endpoint(),
		DefaultModel:   ctrl.defaultModel,
		ActiveSessions: active,
		Gateway:        ctrl.gateway.Stats(),
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), ollamaCheckTimeout)
	defer cancel()
	if err := ctrl.catalog.Reachable(ctx); err != nil {
		resp.OllamaError = err.Error()
	} else {
		resp.OllamaReachable = true
	}
	c.JSON(http.StatusOK, resp)
}
