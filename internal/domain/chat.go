package domain

// ChatRequest is the inbound shape shared by the streaming and the
// non-streaming chat endpoints. The outbound agent payload renames
// Message to query; see agent.BuildPayload.
type ChatRequest struct {
	SessionID string         `json:"sessionId" validate:"required,max=64"`
	Message   string         `json:"message" validate:"required"`
	Mode      string         `json:"mode"`
	Context   map[string]any `json:"context"`
}

// ReportMeta describes the generated report artifact attached to an
// assistant message in report mode.
type ReportMeta struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty"`
	Size     *int64 `json:"size,omitempty"`
}

// SessionCreate is the optional body of the session creation endpoint.
type SessionCreate struct {
	Title string `json:"title" validate:"max=255"`
}

// SessionListRequest pages and filters the session list.
type SessionListRequest struct {
	Status   string `json:"status"`
	From     string `json:"from"`
	To       string `json:"to"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// HistoryRequest pages a session's messages.
type HistoryRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Page      int    `json:"page"`
	PageSize  int    `json:"pageSize"`
}
