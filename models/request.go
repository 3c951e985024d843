package models

// ExtractRequest is the payload for POST /api/v1/extract.
// Exactly one of Text or HTML should be set; when both are present,
// Text wins.
type ExtractRequest struct {
	// Text is the raw certificate page text, one field per line.
	Text string `json:"text,omitempty"`

	// HTML is a saved result-page dump. It is flattened to visible text
	// lines before extraction.
	HTML string `json:"html,omitempty"`
}
