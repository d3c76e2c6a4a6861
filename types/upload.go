package types

// ProcessResponse is returned by the upload entry point.
type ProcessResponse struct {
	DownloadId  string        `json:"downloadId"`
	DownloadUrl string        `json:"downloadUrl"`
	LogUrl      string        `json:"logUrl"`
	FileName    string        `json:"fileName"`
	Log         ProcessingLog `json:"log"`
}

// CancelResponse reports how many in-flight LLM requests a cancel aborted.
type CancelResponse struct {
	SessionId string `json:"sessionId"`
	Cancelled int    `json:"cancelled"`
}

// ProcessingTypeInfo describes one processing type for the web UI.
type ProcessingTypeInfo struct {
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	InputColumns  []string `json:"inputColumns"`
	OutputColumns []string `json:"outputColumns"`
}

// ModelInfo is one model installed in the local Ollama.
type ModelInfo struct {
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	Family        string `json:"family,omitempty"`
	ParameterSize string `json:"parameterSize,omitempty"`
	ModifiedAt    string `json:"modifiedAt,omitempty"`
}
