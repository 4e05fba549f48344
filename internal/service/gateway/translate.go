package gateway

import (
	"fmt"

	model "github.com/apexrevenue/atlas-agent/internal/model/agent"
)

// translated is a UI event restated for the decision service: a stable
// event-type tag, the user's intent in natural language, and structured
// metadata keyed by event type.
type translated struct {
	EventType      string
	UserIntent     string
	UserMessageRaw string
	Metadata       map[string]any
}

// Translate maps a raw UI event onto the decision-service vocabulary.
// Unrecognized events are forwarded as UNKNOWN_EVENT rather than dropped.
func Translate(event string, payload model.Payload) translated {
	switch event {
	case model.EventCTAClicked:
		if t, ok := translateCTA(payload); ok {
			return t
		}

	case model.EventTierSelected:
		tier := payload.Tier
		if tier == "" {
			tier = "Unknown Tier"
		}
		return translated{
			EventType:  "INTENT_SELECT_TIER",
			UserIntent: fmt.Sprintf("I am interested in the %s plan. What is the deployment process?", tier),
			Metadata:   map[string]any{"tier": tier},
		}

	case model.EventPathSelected:
		human := payload.Path
		switch payload.Path {
		case "book_call":
			human = "Book Strategy Call"
		case "activate":
			human = "Activate Revenue Engine"
		}
		return translated{
			EventType:  "INTENT_HUD_ACTION",
			UserIntent: fmt.Sprintf("I have selected the path: %q. Proceed with next steps.", human),
			Metadata:   map[string]any{"path": payload.Path, "path_human": human},
		}

	case model.EventUserMessage:
		return translated{
			EventType:      "USER_MESSAGE",
			UserIntent:     payload.Text,
			UserMessageRaw: payload.Text,
			Metadata:       map[string]any{},
		}

	case model.EventInit:
		return translated{
			EventType:  "SESSION_INIT",
			UserIntent: "System initiated. Awaiting directive.",
			Metadata:   map[string]any{},
		}
	}

	return translated{
		EventType:  "UNKNOWN_EVENT",
		UserIntent: "User interaction detected.",
		Metadata:   map[string]any{"original_event": event, "payload": payload},
	}
}

func translateCTA(payload model.Payload) (translated, bool) {
	switch payload.Source {
	case "navbar", "navbar_mobile":
		return translated{
			EventType:  "INTENT_BOOK_GENERAL",
			UserIntent: "I want to schedule a demo immediately.",
			Metadata:   map[string]any{"source": payload.Source},
		}, true

	case "hero_primary":
		return translated{
			EventType:  "INTENT_REPLACE_SDR",
			UserIntent: "I want to replace my SDR team with AI. How do we start?",
			Metadata:   map[string]any{"source": payload.Source},
		}, true

	case "pricing":
		tier := payload.Tier
		if tier == "" {
			tier = "Unknown Tier"
		}
		return translated{
			EventType:  "INTENT_SELECT_TIER",
			UserIntent: fmt.Sprintf("I am interested in the %s plan. What is the deployment process?", tier),
			Metadata:   map[string]any{"source": payload.Source, "tier": tier},
		}, true

	case "final_cta":
		return translated{
			EventType:  "INTENT_SCARCITY_BOOKING",
			UserIntent: "I want to secure one of the remaining slots for this month.",
			Metadata:   map[string]any{"source": payload.Source},
		}, true
	}

	return translated{}, false
}
