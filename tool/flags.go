package tool

import (
	"flag"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

// SetFlags parses CLI flags and returns the override config.
func SetFlags() types.Config {
	var cfg types.Config
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.IntVar(&cfg.UsePort, "usePort", 0, "override listen port")
	flag.StringVar(&cfg.UseOllamaURL, "useOllamaUrl", "", "override ollama base url, e.g. http://localhost:11434")
	flag.StringVar(&cfg.UseModel, "useModel", "", "override default model")
	flag.IntVar(&cfg.UseChunkSize, "useChunkSize", 0, "override rows per LLM request")
	flag.IntVar(&cfg.UseConcurrency, "useConcurrency", 0, "override concurrent LLM requests")
	flag.StringVar(&cfg.UseOutputFolder, "useOutputFolder", "", "override output folder")
	flag.IntVar(&cfg.UseTimeoutMs, "useTimeoutMs", -1, "override per-request timeout in ms (0 waits indefinitely)")
	flag.StringVar(&cfg.UseResponseField, "useResponseField", "", "override the JSON field read from LLM responses")
	flag.StringVar(&cfg.UseRetrievalURL, "useRetrievalUrl", "", "enable prompt context from a similar-issues search service, e.g. http://localhost:5000")
	flag.Parse()
	return cfg
}

// ApplyFlags copies non-zero flag overrides onto cfg.
func ApplyFlags(cfg *types.AppConfig, flags types.Config) {
	if flags.UsePort > 0 {
		cfg.Port = flags.UsePort
	}
	if flags.UseOllamaURL != "" {
		cfg.OllamaURL = flags.UseOllamaURL
	}
	if flags.UseModel != "" {
		cfg.DefaultModel = flags.UseModel
	}
	if flags.UseChunkSize > 0 {
		cfg.ChunkSize = flags.UseChunkSize
	}
	if flags.UseConcurrency > 0 {
		cfg.Concurrency = flags.UseConcurrency
	}
	if flags.UseOutputFolder != "" {
		cfg.OutputFolder = flags.UseOutputFolder
	}
	if flags.UseTimeoutMs >= 0 {
		cfg.RequestTimeoutMs = flags.UseTimeoutMs
	}
	if flags.UseResponseField != "" {
		cfg.ResponseField = flags.UseResponseField
	}
	if flags.UseRetrievalURL != "" {
		cfg.RetrievalURL = flags.UseRetrievalURL
	}
}
