package types

// Progress is one event on a session's progress stream.
type Progress struct {
	SessionId       string `json:"sessionId"`
	Percent         int    `json:"percent"`
	Message         string `json:"message,omitempty"`
	ChunksCompleted int    `json:"chunksCompleted"`
	TotalChunks     int    `json:"totalChunks"`
	Done            bool   `json:"done,omitempty"`
}
