package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	model "github.com/apexrevenue/atlas-agent/internal/model/agent"
)

// Webhook is the remote decision-service backend.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook points a backend at the decision webhook. The overall call is
// bounded by the gateway's context; the client timeout is a backstop for
// the response body read.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// wireOutput is the duck-typed response shape. Every optional field is
// defused here, exactly once, before it can enter the store.
type wireOutput struct {
	Stage          string `json:"stage"`
	UIAction       string `json:"ui_action"`
	SpokenResponse string `json:"spoken_response"`
	Data           struct {
		RecommendedTier *string `json:"recommended_tier"`
		BookingLink     *string `json:"booking_link"`
		DashboardURL    *string `json:"dashboard_url"`
	} `json:"data"`
}

type wireItem struct {
	Output      *wireOutput `json:"output"`
	AudioBase64 string      `json:"audioBase64"`
}

// Decide posts the request and sanitizes the response.
func (w *Webhook) Decide(ctx context.Context, req *Request) (*Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal decision request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build decision request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("decision webhook call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decision webhook status %d", resp.StatusCode)
	}

	item, err := decodeWireItem(resp.Body)
	if err != nil {
		return nil, err
	}
	if item.Output == nil {
		return nil, fmt.Errorf("decision response missing output")
	}

	reply := &Reply{Decision: sanitize(item.Output)}

	if item.AudioBase64 != "" {
		wav, err := base64.StdEncoding.DecodeString(item.AudioBase64)
		if err != nil {
			// Bad audio does not invalidate the decision.
			return reply, nil
		}
		reply.AudioWAV = wav
	}

	return reply, nil
}

// decodeWireItem tolerates both a bare object and a single-element array,
// which is what the webhook runtime emits.
func decodeWireItem(r io.Reader) (*wireItem, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode decision response: %w", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []wireItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode decision response array: %w", err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("decision response array is empty")
		}
		return &items[0], nil
	}

	var item wireItem
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, fmt.Errorf("decode decision response object: %w", err)
	}
	return &item, nil
}

// sanitize coalesces every optional field so downstream consumers never
// observe a missing value.
func sanitize(out *wireOutput) *model.Decision {
	stage := model.Stage(out.Stage)
	if out.Stage == "" {
		stage = model.StageConnectionError
	}

	action := model.UIAction(out.UIAction)
	if out.UIAction == "" {
		action = model.ActionNone
	}

	return &model.Decision{
		Stage:          stage,
		UIAction:       action,
		SpokenResponse: out.SpokenResponse,
		Data: model.AtlasData{
			RecommendedTier: nonEmpty(out.Data.RecommendedTier),
			BookingLink:     nonEmpty(out.Data.BookingLink),
			DashboardURL:    nonEmpty(out.Data.DashboardURL),
		},
	}
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
