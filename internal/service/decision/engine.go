package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/apexrevenue/atlas-agent/internal/config"
	model "github.com/apexrevenue/atlas-agent/internal/model/agent"
	"github.com/apexrevenue/atlas-agent/internal/service/gateway"
)

// Engine answers decision requests with a local LLM chain instead of the
// remote webhook. Selected when no webhook URL is configured.
type Engine struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewEngine compiles the decision chain over the configured Ark model.
func NewEngine(ctx context.Context, cfg config.DecisionConfig) (*Engine, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create decision chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile decision chain: %w", err)
	}

	return &Engine{chain: runnable}, nil
}

// Decide implements gateway.Backend.
func (e *Engine) Decide(ctx context.Context, req *gateway.Request) (*gateway.Reply, error) {
	response, err := e.chain.Invoke(ctx, map[string]any{
		"system": systemPrompt,
		"query":  buildQuery(req),
	})
	if err != nil {
		return nil, fmt.Errorf("run decision chain: %w", err)
	}

	decision, err := parseDecision(response.Content)
	if err != nil {
		return nil, err
	}

	log.Printf("[decision] engine stage=%s action=%s session=%s", decision.Stage, decision.UIAction, req.SessionID)
	return &gateway.Reply{Decision: decision}, nil
}

func buildQuery(req *gateway.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "event_type: %s\n", req.EventType)
	fmt.Fprintf(&b, "user_intent: %s\n", req.UserIntent)
	if req.UserMessageRaw != "" {
		fmt.Fprintf(&b, "user_message_raw: %s\n", req.UserMessageRaw)
	}
	fmt.Fprintf(&b, "time_on_page: %ds\n", req.TimeOnPage)
	if len(req.Metadata) > 0 {
		meta, err := json.Marshal(req.Metadata)
		if err == nil {
			fmt.Fprintf(&b, "metadata: %s\n", meta)
		}
	}
	return b.String()
}

// engineOutput is the JSON shape the model is instructed to emit.
type engineOutput struct {
	Stage          string `json:"stage"`
	UIAction       string `json:"ui_action"`
	SpokenResponse string `json:"spoken_response"`
	Data           struct {
		RecommendedTier *string `json:"recommended_tier"`
		BookingLink     *string `json:"booking_link"`
		DashboardURL    *string `json:"dashboard_url"`
	} `json:"data"`
}

// parseDecision defuses the model output into the strongly-typed decision.
// Code fences around the JSON body are tolerated.
func parseDecision(content string) (*model.Decision, error) {
	body := strings.TrimSpace(content)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
		body = strings.TrimSpace(body)
	}

	var out engineOutput
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("parse decision output: %w", err)
	}
	if out.Stage == "" {
		return nil, fmt.Errorf("decision output missing stage")
	}

	action := model.UIAction(out.UIAction)
	if out.UIAction == "" {
		action = model.ActionNone
	}

	return &model.Decision{
		Stage:          model.Stage(out.Stage),
		UIAction:       action,
		SpokenResponse: out.SpokenResponse,
		Data: model.AtlasData{
			RecommendedTier: emptyToNil(out.Data.RecommendedTier),
			BookingLink:     emptyToNil(out.Data.BookingLink),
			DashboardURL:    emptyToNil(out.Data.DashboardURL),
		},
	}, nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
