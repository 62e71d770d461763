package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// PipelineProvider talks to the chat pipeline service over HTTP. Every call
// carries a bounded timeout; there are no retries here, callers decide what
// a failure means.
type PipelineProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewPipelineProvider(baseURL string, timeout time.Duration) *PipelineProvider {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PipelineProvider{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

type pipelineMsg struct {
	Role    string `json:"Role"`
	Message string `json:"Message"`
}

type pipelineChatReq struct {
	UserID    string        `json:"UserId"`
	SessionID string        `json:"SessionId"`
	History   []pipelineMsg `json:"History"`
	Pipeline  string        `json:"Pipeline"`
	Query     string        `json:"Query"`
}

type pipelineChatResp struct {
	Response      string   `json:"Response"`
	TokensUsed    *int     `json:"TokensUsed,omitempty"`
	EstimatedCost *float64 `json:"EstimatedCost,omitempty"`
	Error         string   `json:"Error,omitempty"`
}

func (p *PipelineProvider) Generate(ctx context.Context, model, sessionID string, messages []Message) (*Result, error) {
	if p.Client == nil {
		return nil, errors.New("pipeline: http client is nil")
	}
	if len(messages) == 0 {
		return nil, errors.New("pipeline: empty context")
	}

	// The last message is the live query; the rest rides as history.
	query := messages[len(messages)-1].Content
	history := make([]pipelineMsg, 0, len(messages)-1)
	for _, m := range messages[:len(messages)-1] {
		history = append(history, pipelineMsg{Role: m.Role, Message: m.Content})
	}

	b, err := json.Marshal(pipelineChatReq{
		UserID:    sessionID,
		SessionID: sessionID,
		History:   history,
		Pipeline:  model,
		Query:     query,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/chat", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pipeline: status %d", resp.StatusCode)
	}

	var decoded pipelineChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != "" {
		return nil, errors.New(decoded.Error)
	}
	return &Result{
		Text:   decoded.Response,
		Tokens: decoded.TokensUsed,
		Cost:   decoded.EstimatedCost,
	}, nil
}

// Health probes the pipeline service.
func (p *PipelineProvider) Health(ctx context.Context) bool {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, p.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
