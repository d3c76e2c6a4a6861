package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geekydillip/Market-Pulse-AI-sub000/api"
	"github.com/geekydillip/Market-Pulse-AI-sub000/llm"
	"github.com/geekydillip/Market-Pulse-AI-sub000/notify"
	"github.com/geekydillip/Market-Pulse-AI-sub000/output"
	"github.com/geekydillip/Market-Pulse-AI-sub000/pipeline"
	"github.com/geekydillip/Market-Pulse-AI-sub000/retrieval"
	"github.com/geekydillip/Market-Pulse-AI-sub000/session"
	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	flags := tool.SetFlags()

	// initialize logger
	tool.InitLogger()
	tool.SetLogMode(flags.Log)

	cfg, err := tool.LoadConfig(flags.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.ApplyFlags(&cfg, flags)
	tool.DefaultLogger.Infof("Market Pulse %s, ollama at %s, default model %s", tool.VersionString(), cfg.OllamaURL, cfg.DefaultModel)

	httpClient := tool.NewHTTPClient()
	sessions := session.NewRegistry(tool.Seconds(cfg.SessionTTLSeconds), tool.DefaultLogger)
	hub := notify.New()
	gateway := llm.NewGateway(llm.Options{
		Endpoint:          cfg.OllamaURL,
		ResponseField:     cfg.ResponseField,
		CacheTTL:          tool.Seconds(cfg.CacheTTLSeconds),
		RequestsPerSecond: cfg.RequestsPerSecond,
		Client:            httpClient,
		Logger:            tool.DefaultLogger,
	})
	catalog, err := llm.NewCatalog(cfg.OllamaURL, httpClient)
	if err != nil {
		tool.DefaultLogger.Fatalf("Invalid ollama url %q: %v", cfg.OllamaURL, err)
	}
	store, err := output.NewStore(cfg.OutputFolder, output.DefaultIndexTTL, tool.DefaultLogger)
	if err != nil {
		tool.DefaultLogger.Fatalf("Failed to prepare output folder: %v", err)
	}
	orchOpts := pipeline.Options{
		ChunkSize:    cfg.ChunkSize,
		Concurrency:  cfg.Concurrency,
		Timeout:      tool.Millis(cfg.RequestTimeoutMs),
		DefaultModel: cfg.DefaultModel,
		Logger:       tool.DefaultLogger,
	}
	if cfg.RetrievalURL != "" {
		tool.DefaultLogger.Infof("Prompt context from %s (%d passages per chunk)", cfg.RetrievalURL, cfg.RetrievalK)
		orchOpts.Enricher = retrieval.New(retrieval.Options{
			URL:    cfg.RetrievalURL,
			K:      cfg.RetrievalK,
			Client: httpClient,
			Logger: tool.DefaultLogger,
		})
	}
	orch := pipeline.New(gateway, sessions, hub, orchOpts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := catalog.Reachable(checkCtx); err != nil {
			tool.DefaultLogger.Warnf("Ollama is not reachable at %s yet: %v", cfg.OllamaURL, err)
		}
	}()

	server := api.NewServer(api.Deps{
		Orchestrator: orch,
		Sessions:     sessions,
		Hub:          hub,
		Gateway:      gateway,
		Catalog:      catalog,
		Store:        store,
		Port:         cfg.Port,
		BaseURL:      tool.BaseURL(cfg.PublicBaseURL, cfg.Port),
		DefaultModel: cfg.DefaultModel,
		MaxUpload:    int64(cfg.MaxUploadMB) << 20,
		KeepAlive:    tool.Seconds(cfg.KeepAliveSeconds),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			tool.DefaultLogger.Fatalf("API server startup failed: %v", err)
		}
		return
	case <-ctx.Done():
	}

	// stop running pipelines before draining requests
	for _, id := range sessions.Active() {
		sessions.Cancel(id)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		tool.DefaultLogger.Errorf("Graceful shutdown failed: %v", err)
	}
}
