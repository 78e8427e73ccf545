package handler

// UpdateRequest carries an agreement decision made by the visitor.
type UpdateRequest struct {
	Type    string `json:"type"`
	SubType string `json:"subType,omitempty"`
}

// PageviewRequest reports a page visit for the navigation heuristic.
type PageviewRequest struct {
	URL string `json:"url"`
}
