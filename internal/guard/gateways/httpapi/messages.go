package httpapi

// Request and response bodies. Field names follow the wire format the
// browser extension and lookup clients already use.

type checkURLRequest struct {
	URL string `json:"url" validate:"required"`
}

type checkURLResponse struct {
	Category string `json:"category"`
}

type addLegitimateRequest struct {
	OfficialURL string `json:"official_url" validate:"required"`
}

type addSuspiciousRequest struct {
	SuspiciousURL string `json:"suspicious_url" validate:"required"`
}

type addResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Domain  string `json:"domain"`
}

type dbTestResponse struct {
	DatabaseConnection string   `json:"database_connection"`
	LegitimateSites    uint64   `json:"legitimate_sites"`
	SuspiciousSites    uint64   `json:"suspicious_sites"`
	LegitimateExamples []string `json:"legitimate_examples"`
	SuspiciousExamples []string `json:"suspicious_examples"`
	Error              string   `json:"error,omitempty"`
}

type classifyResponse struct {
	URL       string `json:"url"`
	Category  string `json:"category"`
	Timestamp int64  `json:"timestamp"` // unix millis
	Error     string `json:"error,omitempty"`
}

type navigationRequest struct {
	URL       string `json:"url" validate:"required"`
	FrameID   int    `json:"frame_id" validate:"gte=0"`
	SessionID string `json:"session_id,omitempty"`
}

type navigationResponse struct {
	URL       string `json:"url"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	Redirect  string `json:"redirect,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}
