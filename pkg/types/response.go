package types

// Success is the body of every 2xx JSON response.
type Success struct {
	Data any `json:"data"`
}

// Problem describes a failed request. RequestID echoes X-Request-Id so a
// shopper's report can be matched to server logs.
type Problem struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Failure struct {
	Error Problem `json:"error"`
}
