package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/quantaops/l1-backend/internal/ai"
	"github.com/quantaops/l1-backend/internal/models"
)

type fakeStore struct {
	pending []models.InboundEmail

	cases      []models.CaseRecord
	decisions  []string
	riskEvents []string
	childCases []string
	replies    [][]byte
	processed  []int64

	failCreateCase bool
}

func (f *fakeStore) PendingEmails(ctx context.Context, limit int) ([]models.InboundEmail, error) {
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeStore) CreateCase(ctx context.Context, c models.CaseRecord) (int64, error) {
	if f.failCreateCase {
		f.failCreateCase = false
		return 0, errors.New("insert failed")
	}
	f.cases = append(f.cases, c)
	return int64(len(f.cases)), nil
}

func (f *fakeStore) InsertDecision(ctx context.Context, caseID int64, intent string, confidence float64, decisionType, reasonCode, modelVersion string) error {
	f.decisions = append(f.decisions, intent)
	return nil
}

func (f *fakeStore) InsertRiskEvent(ctx context.Context, caseID int64, keyword, level, action string) error {
	f.riskEvents = append(f.riskEvents, keyword)
	return nil
}

func (f *fakeStore) InsertChildCase(ctx context.Context, parentCaseID int64, caseType, team, status string) error {
	f.childCases = append(f.childCases, team)
	return nil
}

func (f *fakeStore) QueueReply(ctx context.Context, caseID int64, toAddress string, payload []byte) error {
	f.replies = append(f.replies, payload)
	return nil
}

func (f *fakeStore) MarkEmailProcessed(ctx context.Context, emailID, caseID int64) error {
	f.processed = append(f.processed, emailID)
	return nil
}

func newProcessor(store Store) *Processor {
	return &Processor{Store: store, Engine: ai.KeywordEngine{}, Logger: zerolog.Nop()}
}

func TestProcessPendingHappyPath(t *testing.T) {
	store := &fakeStore{pending: []models.InboundEmail{{
		EmailID:     1,
		FromEmail:   "customer@example.com",
		Subject:     "Where is my order?",
		BodyPreview: "Ordered a week ago, please track it",
	}}}

	summary, err := newProcessor(store).ProcessPending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if len(store.cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(store.cases))
	}
	c := store.cases[0]
	if c.Channel != "email" || c.IntentType != ai.IntentOrderStatus {
		t.Fatalf("unexpected case: %+v", c)
	}
	if c.RiskFlag || c.Status != "resolved" || c.AssignedTo != "ai" {
		t.Fatalf("order status query should resolve via AI: %+v", c)
	}
	if len(store.riskEvents) != 0 {
		t.Fatalf("no risk event expected, got %v", store.riskEvents)
	}
	if len(store.childCases) != 0 {
		t.Fatalf("no child case expected for AI-owned work, got %v", store.childCases)
	}

	if len(store.replies) != 1 {
		t.Fatalf("expected one queued reply, got %d", len(store.replies))
	}
	var payload map[string]string
	if err := json.Unmarshal(store.replies[0], &payload); err != nil {
		t.Fatalf("reply payload is not JSON: %v", err)
	}
	if payload["template"] != "order_status_update" {
		t.Fatalf("unexpected template: %v", payload)
	}

	if len(store.processed) != 1 || store.processed[0] != 1 {
		t.Fatalf("email not marked processed: %v", store.processed)
	}
}

func TestProcessPendingRiskEscalates(t *testing.T) {
	store := &fakeStore{pending: []models.InboundEmail{{
		EmailID:     2,
		FromEmail:   "angry@example.com",
		Subject:     "Last chance",
		BodyPreview: "Where is my order, I will sue you in consumer forum",
	}}}

	if _, err := newProcessor(store).ProcessPending(context.Background()); err != nil {
		t.Fatal(err)
	}

	c := store.cases[0]
	if !c.RiskFlag || c.Status != "escalated" || c.AssignedTo != "senior_support" {
		t.Fatalf("risky email must escalate: %+v", c)
	}
	if len(store.riskEvents) != 1 {
		t.Fatalf("expected a risk event, got %v", store.riskEvents)
	}
	if len(store.childCases) != 1 || store.childCases[0] != "senior_support" {
		t.Fatalf("expected a senior_support child case, got %v", store.childCases)
	}

	var payload map[string]string
	_ = json.Unmarshal(store.replies[0], &payload)
	if payload["template"] != "escalation_ack" {
		t.Fatalf("unexpected template: %v", payload)
	}
}

func TestProcessPendingAgentHandoffOpensChildCase(t *testing.T) {
	store := &fakeStore{pending: []models.InboundEmail{{
		EmailID:     3,
		FromEmail:   "customer@example.com",
		Subject:     "Wrong item received",
		BodyPreview: "You sent the wrong item, the box was damaged too",
	}}}

	if _, err := newProcessor(store).ProcessPending(context.Background()); err != nil {
		t.Fatal(err)
	}

	c := store.cases[0]
	if c.Status != "open" || c.AssignedTo != "agent" {
		t.Fatalf("report_problem must go to an agent: %+v", c)
	}
	if len(store.childCases) != 1 || store.childCases[0] != "l1_agents" {
		t.Fatalf("expected l1_agents child case, got %v", store.childCases)
	}
}

func TestProcessPendingContinuesAfterFailure(t *testing.T) {
	store := &fakeStore{
		failCreateCase: true,
		pending: []models.InboundEmail{
			{EmailID: 4, FromEmail: "a@example.com", Subject: "track my order"},
			{EmailID: 5, FromEmail: "b@example.com", Subject: "track my order"},
		},
	}

	summary, err := newProcessor(store).ProcessPending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || summary.Processed != 1 {
		t.Fatalf("expected one failure and one success, got %+v", summary)
	}
	if len(store.processed) != 1 || store.processed[0] != 5 {
		t.Fatalf("second email should still be processed: %v", store.processed)
	}
}

func TestReplyTemplates(t *testing.T) {
	resolved := ai.Route{Status: "resolved", Owner: "ai"}
	tests := []struct {
		intent string
		route  ai.Route
		want   string
	}{
		{ai.IntentOrderStatus, resolved, "order_status_update"},
		{ai.IntentRefund, resolved, "refund_status_update"},
		{ai.IntentCancellation, resolved, "cancellation_self_serve"},
		{ai.IntentAddressChange, resolved, "address_change_policy"},
		{ai.IntentInvoice, resolved, "invoice_auto_email"},
		{ai.IntentProblem, ai.Route{Status: "open", Owner: "agent"}, "agent_handoff"},
		{ai.IntentOrderStatus, ai.Route{Status: "escalated", Owner: "senior_support"}, "escalation_ack"},
	}
	for _, tt := range tests {
		if got := replyTemplate(tt.intent, tt.route); got != tt.want {
			t.Errorf("replyTemplate(%s, %+v) = %q, want %q", tt.intent, tt.route, got, tt.want)
		}
	}
}
