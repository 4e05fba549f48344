package agent

// Interaction event vocabulary. Anything outside this set is still
// accepted and routed through the unknown-event translation.
const (
	EventInit         = "init"
	EventUserMessage  = "user_message"
	EventCTAClicked   = "cta_clicked"
	EventTierSelected = "tier_selected"
	EventPathSelected = "path_selected"
	EventInterrupt    = "interrupt"
)

// Payload carries event-specific auxiliary data.
type Payload struct {
	Text   string `json:"text,omitempty"`
	Source string `json:"source,omitempty"`
	Tier   string `json:"tier,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Interaction is the most recently attempted event, retained for retry.
type Interaction struct {
	Event   string  `json:"event"`
	Payload Payload `json:"payload"`
}

// IsInterrupt reports whether the event bypasses the in-flight lock.
func IsInterrupt(event string) bool {
	return event == EventInterrupt
}
