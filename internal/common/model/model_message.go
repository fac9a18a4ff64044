//nolint:revive
package model

// Message is one entry of the error/warning envelope returned on 4xx/5xx.
type Message struct {
	Code          string `json:"code,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	MessageType   string `json:"messageType"` // "Error" | "Warning" | "Info"
	Text          string `json:"text"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// Result is the envelope carried by every non-2xx response.
type Result struct {
	Messages []Message `json:"messages"`
}

// PagingMetadata carries the opaque cursor of a page response; a null
// cursor marks the final page.
type PagingMetadata struct {
	Cursor *string `json:"cursor"`
}

// PagedResult is the slow-path page envelope. The fast path assembles the
// identical shape as bytes inside SQL and never instantiates this type.
type PagedResult struct {
	Result         []any          `json:"result"`
	PagingMetadata PagingMetadata `json:"paging_metadata"`
}
