package schemas

// -- Vision Schemas --

// MatchCandidate is a single template hit produced by the matcher. It is
// transient: produced per capture and never persisted.
type MatchCandidate struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Rect    `json:"box"`
	// Scale is the template scale factor that produced the hit.
	Scale float64 `json:"scale"`
}

// TextRow is one line of text read from a list row.
type TextRow struct {
	Text       string  `json:"text"`
	Box        Rect    `json:"box"`
	Confidence float64 `json:"confidence"`
}

// ResolvedTarget is a verified click target for a username. The locator only
// constructs one when the row text matched the username above the
// confirmation threshold AND an action button was found in the row's band.
type ResolvedTarget struct {
	Target        Target  `json:"target"`
	ClickPoint    Point   `json:"click_point"`
	RowConfidence float64 `json:"row_confidence"`
	RowBox        Rect    `json:"row_box"`
	ButtonBox     Rect    `json:"button_box"`
	// Similarity of the row text to the requested username.
	Similarity float64 `json:"similarity"`
}
