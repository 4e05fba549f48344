package agent

import model "github.com/apexrevenue/atlas-agent/internal/model/agent"

// statusLine is the context-aware caption shown while a request is in
// flight. Mirrors the copy the HUD shipped with.
func statusLine(state model.SystemState, last *model.Interaction) string {
	if state != model.StateProcessing {
		return ""
	}
	if last == nil {
		return "Processing..."
	}

	switch last.Event {
	case model.EventInit:
		return "Initializing Core..."
	case model.EventUserMessage:
		return "Analyzing Intent..."
	case model.EventCTAClicked:
		switch last.Payload.Source {
		case "navbar", "navbar_mobile":
			return "Checking Availability..."
		case "hero_primary":
			return "Analyzing Infrastructure..."
		case "pricing":
			return "Calculating Specs..."
		case "final_cta":
			return "Securing Slot..."
		}
	case model.EventPathSelected:
		switch last.Payload.Path {
		case "book_call":
			return "Generating Link..."
		case "activate":
			return "Initiating Activation..."
		}
	}

	return "Thinking..."
}
