package agent

// Decision is a sanitized decision-service response. The gateway defuses
// the wire shape into this form exactly once, at the boundary.
type Decision struct {
	Stage          Stage     `json:"stage"`
	UIAction       UIAction  `json:"ui_action"`
	SpokenResponse string    `json:"spoken_response"`
	Data           AtlasData `json:"data"`
}

// ConnectionErrorDecision is returned when the decision service cannot be
// reached or replies with an unusable shape. The spoken response is left
// empty so no fabricated message pollutes the chat transcript.
func ConnectionErrorDecision() *Decision {
	return &Decision{
		Stage:    StageConnectionError,
		UIAction: ActionNone,
	}
}
