package types

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	Port              int    `yaml:"port"`
	OllamaURL         string `yaml:"ollamaUrl"`
	DefaultModel      string `yaml:"defaultModel"`
	ResponseField     string `yaml:"responseField"`     // field extracted from the LLM JSON body
	ChunkSize         int    `yaml:"chunkSize"`         // rows per LLM request
	Concurrency       int    `yaml:"concurrency"`       // chunk requests in flight at once
	RequestTimeoutMs  int    `yaml:"requestTimeoutMs"`  // 0 waits indefinitely
	RequestsPerSecond int    `yaml:"requestsPerSecond"` // 0 disables throttling
	CacheTTLSeconds   int    `yaml:"cacheTtlSeconds"`
	SessionTTLSeconds int    `yaml:"sessionTtlSeconds"`
	KeepAliveSeconds  int    `yaml:"keepAliveSeconds"` // idle ping interval on progress streams
	MaxUploadMB       int    `yaml:"maxUploadMb"`
	OutputFolder      string `yaml:"outputFolder"`
	PublicBaseURL     string `yaml:"publicBaseUrl,omitempty"` // used for QR codes; empty means derive from request
	RetrievalURL      string `yaml:"retrievalUrl,omitempty"`  // similar-issues search service; empty disables prompt context
	RetrievalK        int    `yaml:"retrievalK"`              // passages prepended per chunk
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log              string
	UseConfigPath    string
	UsePort          int
	UseOllamaURL     string
	UseModel         string
	UseChunkSize     int
	UseConcurrency   int
	UseOutputFolder  string
	UseTimeoutMs     int
	UseResponseField string
	UseRetrievalURL  string
}
