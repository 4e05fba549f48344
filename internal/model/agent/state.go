package agent

// SystemState drives every visual affordance of the agent surface.
type SystemState string

const (
	StateIdle       SystemState = "idle"
	StateListening  SystemState = "listening"
	StateProcessing SystemState = "processing"
	StateThinking   SystemState = "thinking"
	StateSpeaking   SystemState = "speaking"
	StateFallback   SystemState = "fallback"
)

// OrbEmotion is derived from the decision stage, never set directly by
// user actions.
type OrbEmotion string

const (
	EmotionNeutral     OrbEmotion = "neutral"
	EmotionCurious     OrbEmotion = "curious"
	EmotionAttentive   OrbEmotion = "attentive"
	EmotionConfident   OrbEmotion = "confident"
	EmotionInviting    OrbEmotion = "inviting"
	EmotionCelebratory OrbEmotion = "celebratory"
	EmotionConcerned   OrbEmotion = "concerned"
)

// Stage is the decision service's notion of conversation phase,
// independent of SystemState.
type Stage string

const (
	StageIntro           Stage = "intro"
	StageQualify         Stage = "qualify"
	StageRecommend       Stage = "recommend"
	StageShowPaths       Stage = "show_paths"
	StageWaitingPayment  Stage = "waiting_payment"
	StageBookedCall      Stage = "booked_call"
	StageOnboardingReady Stage = "onboarding_ready"
	StageConnectionError Stage = "connection_error"
)

// UIAction tells presentation code which auxiliary panel to show.
type UIAction string

const (
	ActionNone             UIAction = "none"
	ActionShowPaths        UIAction = "show_paths"
	ActionShowBooking      UIAction = "show_booking"
	ActionShowWaitingState UIAction = "show_waiting_state"
	ActionRedirectDash     UIAction = "redirect_dashboard"
	ActionLockUI           UIAction = "lock_ui"
)

// AtlasData carries the optional structured payload of a directive. Every
// field is defused to nil-or-value at the gateway boundary so consumers
// never observe a missing key.
type AtlasData struct {
	RecommendedTier *string `json:"recommended_tier"`
	BookingLink     *string `json:"booking_link"`
	DashboardURL    *string `json:"dashboard_url"`
}

// AtlasState is the latest decision-service directive.
type AtlasState struct {
	Stage      Stage     `json:"stage"`
	UIAction   UIAction  `json:"ui_action"`
	Data       AtlasData `json:"data"`
	LastSpoken string    `json:"last_spoken,omitempty"`
}

// DefaultAtlasState is the directive shown before the first exchange.
func DefaultAtlasState() AtlasState {
	return AtlasState{Stage: StageIntro, UIAction: ActionNone}
}

// EmotionForStage maps a conversation stage onto the orb emotion.
func EmotionForStage(stage Stage) OrbEmotion {
	switch stage {
	case StageIntro:
		return EmotionCurious
	case StageQualify:
		return EmotionAttentive
	case StageRecommend:
		return EmotionConfident
	case StageShowPaths:
		return EmotionInviting
	case StageWaitingPayment:
		return EmotionNeutral
	case StageBookedCall:
		return EmotionCelebratory
	case StageConnectionError:
		return EmotionConcerned
	default:
		return EmotionNeutral
	}
}

// Snapshot is the externally visible state of the interaction machine.
// Presentation code only ever reads snapshots; it never mutates nested
// fields.
type Snapshot struct {
	SessionID      string        `json:"sessionId"`
	SystemState    SystemState   `json:"systemState"`
	OrbEmotion     OrbEmotion    `json:"orbEmotion"`
	IsLocked       bool          `json:"isLocked"`
	IsHudOpen      bool          `json:"isHudOpen"`
	IsAudioPlaying bool          `json:"isAudioPlaying"`
	StatusLine     string        `json:"statusLine"`
	Atlas          AtlasState    `json:"atlasState"`
	LastEvent      *Interaction  `json:"lastEvent,omitempty"`
	ChatHistory    []ChatMessage `json:"chatHistory"`
}
