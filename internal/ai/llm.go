package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// LLMEngine classifies through an OpenAI-compatible chat-completions
// endpoint. Each call sends one prompt and expects a bare JSON object
// back; markdown fences around the JSON are tolerated.
type LLMEngine struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *http.Client
}

func (e LLMEngine) ModelVersion() string {
	return e.Model
}

func (e LLMEngine) DetectIntent(ctx context.Context, subject, body string) (Intent, error) {
	prompt := fmt.Sprintf(`You are the senior triage specialist for an e-commerce L1 support desk.
Classify the customer's email into exactly one intent:
order_status, refund_not_received, cancellation_request, address_change_request,
return_exchange_request, invoice_request, report_problem, general_inquiry, unknown.

Rules:
- Refund AND order status together: prioritise refund_not_received.
- Serious issues (wrong/damaged item, payment deducted without order): report_problem.
- Spam, blank or unintelligible: unknown.

Answer with JSON only: {"intent": "...", "confidence": 0.0}

Subject: %s
Body:
%s`, subject, clip(body, 3000))

	var out Intent
	if err := e.completeJSON(ctx, prompt, &out); err != nil {
		return FallbackIntent(), err
	}
	return out, nil
}

func (e LLMEngine) DetectRisk(ctx context.Context, subject, body string) (Risk, error) {
	prompt := fmt.Sprintf(`You are the risk and compliance reviewer for an e-commerce support desk.
Flag the email as high risk when it mentions, exactly or semantically:
legal action (lawyer, sue, court, consumer forum), fraud or scam claims,
financial disputes (chargeback, unauthorized transaction), harassment or abuse,
social media escalation threats, or police/government complaints.
A standard complaint without threats is not a risk.

Answer with JSON only: {"risk": true, "reason": "short phrase found"}

Subject: %s
Body:
%s`, subject, clip(body, 3000))

	var out Risk
	if err := e.completeJSON(ctx, prompt, &out); err != nil {
		return FallbackRisk(), err
	}
	return out, nil
}

func (e LLMEngine) DecideRoute(ctx context.Context, intent string, confidence float64, risk bool) (Route, error) {
	prompt := fmt.Sprintf(`You are the routing manager for an e-commerce L1 support desk.
Decide whether the case is handled by AI (first-contact resolution) or a human.

Input: intent=%q confidence=%.2f risk=%t

Matrix, in priority order:
1. risk true -> status "escalated", owner "senior_support".
2. confidence below 0.70 -> status "open", owner "agent".
3. order_status, refund_not_received, cancellation_request,
   address_change_request, invoice_request -> status "resolved", owner "ai".
4. report_problem, return_exchange_request and anything else -> status "open", owner "agent".

Answer with JSON only: {"status": "...", "owner": "..."}`, intent, confidence, risk)

	var out Route
	if err := e.completeJSON(ctx, prompt, &out); err != nil {
		return FallbackRoute(risk), err
	}
	return out, nil
}

func (e LLMEngine) completeJSON(ctx context.Context, prompt string, out any) error {
	raw, err := e.complete(ctx, prompt)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(stripFences(raw)), out)
}

func (e LLMEngine) complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(e.BaseURL) == "" {
		return "", fmt.Errorf("AI_URL is not set")
	}
	if strings.TrimSpace(e.Model) == "" {
		return "", fmt.Errorf("AI_MODEL is not set")
	}

	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	payload := struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []msg   `json:"messages"`
	}{
		Model:    e.Model,
		Messages: []msg{{Role: "user", Content: prompt}},
	}

	b, _ := json.Marshal(payload)
	url := strings.TrimRight(e.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(e.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("classifier request timed out")
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", fmt.Errorf("classifier request timed out")
		}
		return "", fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return "", fmt.Errorf("classifier http error: %s: %v", resp.Status, errBody)
	}

	var res struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("empty classifier response")
	}
	return res.Choices[0].Message.Content, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
