package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/geekydillip/Market-Pulse-AI-sub000/api/controllers"
	"github.com/geekydillip/Market-Pulse-AI-sub000/api/middlewares"
	"github.com/geekydillip/Market-Pulse-AI-sub000/llm"
	"github.com/geekydillip/Market-Pulse-AI-sub000/notify"
	"github.com/geekydillip/Market-Pulse-AI-sub000/output"
	"github.com/geekydillip/Market-Pulse-AI-sub000/pipeline"
	"github.com/geekydillip/Market-Pulse-AI-sub000/session"
	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
)

// Deps are the long-lived components the HTTP surface serves. They are built once by
// main and shared by every request.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Sessions     *session.Registry
	Hub          *notify.Hub
	Gateway      *llm.Gateway
	Catalog      *llm.Catalog
	Store        *output.Store

	Port         int
	BaseURL      string
	DefaultModel string
	MaxUpload    int64 // bytes, <= 0 is unlimited
	KeepAlive    time.Duration
}

// Server represents the HTTP API server.
type Server struct {
	deps   Deps
	engine *gin.Engine
	server *http.Server
	mu     sync.RWMutex
}

func NewServer(deps Deps) *Server {
	if deps.BaseURL == "" {
		deps.BaseURL = tool.BaseURL("", deps.Port)
	}
	return &Server{deps: deps}
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())
	engine.Use(middlewares.AllowAllCORS())

	d := s.deps
	processCtrl := controllers.NewProcessController(d.Orchestrator, d.Store, d.BaseURL, d.MaxUpload, tool.DefaultLogger)
	cancelCtrl := controllers.NewCancelController(d.Sessions)
	progressCtrl := controllers.NewProgressController(d.Hub, d.KeepAlive)
	downloadCtrl := controllers.NewDownloadController(d.Store, d.BaseURL)
	infoCtrl := controllers.NewInfoController(d.Gateway, d.Catalog, d.Sessions, d.DefaultModel)

	v1 := engine.Group(tool.APIPrefix)
	{
		v1.POST("/process", middlewares.OnlyAllowLocal, processCtrl.HandleProcess)
		v1.POST("/cancel", middlewares.OnlyAllowLocal, cancelCtrl.HandleCancel)
		v1.GET("/progress", progressCtrl.HandleSSE)
		v1.GET("/progress/ws", progressCtrl.HandleWS)
		v1.GET("/download/:id", downloadCtrl.HandleDownload)
		v1.GET("/download/:id/log", downloadCtrl.HandleLog)
		v1.GET("/download/:id/qr", downloadCtrl.HandleQRCode)
		v1.GET("/processing-types", infoCtrl.HandleProcessingTypes)
		v1.GET("/models", infoCtrl.HandleModels)
		v1.GET("/status", infoCtrl.HandleStatus)
	}
	return engine
}

// Handler builds the route table without listening; used by tests.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = s.setupRoutes()
	}
	return s.engine
}

// Start starts the HTTP server and blocks until it stops. A stop through Shutdown
// returns nil.
func (s *Server) Start() error {
	handler := s.Handler()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.deps.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting API server on http://0.0.0.0:%d (downloads at %s)", s.deps.Port, s.deps.BaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	tool.DefaultLogger.Infof("[Server] Shutting down")
	return srv.Shutdown(ctx)
}
