package ai

import (
	"context"
	"strings"
)

// KeywordEngine is the deterministic fallback used when no LLM endpoint
// is configured. Intent and risk come from keyword scans over subject
// plus body; routing applies the same matrix the LLM is prompted with.
type KeywordEngine struct{}

func (KeywordEngine) ModelVersion() string { return "keyword-v1" }

// Scan order matters: refund outranks order status when both appear.
var intentKeywords = []struct {
	intent     string
	confidence float64
	words      []string
}{
	{IntentRefund, 0.9, []string{"refund", "money not credited", "amount not received"}},
	{IntentProblem, 0.85, []string{"wrong item", "damaged", "used product", "missing item", "payment deducted"}},
	{IntentCancellation, 0.9, []string{"cancel"}},
	{IntentAddressChange, 0.9, []string{"change address", "change my address", "shipping address", "change phone"}},
	{IntentReturn, 0.85, []string{"return", "exchange", "does not fit", "size issue"}},
	{IntentInvoice, 0.9, []string{"invoice", "gst", "bill copy"}},
	{IntentOrderStatus, 0.9, []string{"where is my order", "track", "order status", "not received yet", "not delivered"}},
}

var riskKeywords = []struct {
	level string
	words []string
}{
	{"legal", []string{"lawyer", "sue", "legal", "court", "consumer forum", "notice"}},
	{"fraud", []string{"fraud", "scam", "cheated", "fake", "counterfeit"}},
	{"financial_dispute", []string{"chargeback", "dispute", "bank complaint", "unauthorized"}},
	{"social_media", []string{"twitter", "viral", "post online", "influencer", "linkedin"}},
	{"authorities", []string{"police", "fir", "authorities"}},
}

func (KeywordEngine) DetectIntent(ctx context.Context, subject, body string) (Intent, error) {
	text := strings.ToLower(subject + " " + body)
	if strings.TrimSpace(text) == "" {
		return Intent{Intent: IntentUnknown, Confidence: 0.1}, nil
	}
	for _, cand := range intentKeywords {
		for _, w := range cand.words {
			if strings.Contains(text, w) {
				return Intent{Intent: cand.intent, Confidence: cand.confidence}, nil
			}
		}
	}
	return Intent{Intent: IntentGeneral, Confidence: 0.5}, nil
}

func (KeywordEngine) DetectRisk(ctx context.Context, subject, body string) (Risk, error) {
	text := strings.ToLower(subject + " " + body)
	for _, cand := range riskKeywords {
		for _, w := range cand.words {
			if strings.Contains(text, w) {
				return Risk{Risk: true, Reason: w}, nil
			}
		}
	}
	return Risk{}, nil
}

func (KeywordEngine) DecideRoute(ctx context.Context, intent string, confidence float64, risk bool) (Route, error) {
	if risk {
		return Route{Status: "escalated", Owner: "senior_support"}, nil
	}
	if confidence < 0.70 {
		return Route{Status: "open", Owner: "agent"}, nil
	}
	switch intent {
	case IntentOrderStatus, IntentRefund, IntentCancellation, IntentAddressChange, IntentInvoice:
		return Route{Status: "resolved", Owner: "ai"}, nil
	default:
		return Route{Status: "open", Owner: "agent"}, nil
	}
}
