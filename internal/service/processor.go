package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/quantaops/l1-backend/internal/ai"
	"github.com/quantaops/l1-backend/internal/models"
)

// Store is the slice of the data layer the pipeline writes through.
type Store interface {
	PendingEmails(ctx context.Context, limit int) ([]models.InboundEmail, error)
	CreateCase(ctx context.Context, c models.CaseRecord) (int64, error)
	InsertDecision(ctx context.Context, caseID int64, intent string, confidence float64, decisionType, reasonCode, modelVersion string) error
	InsertRiskEvent(ctx context.Context, caseID int64, keyword, level, action string) error
	InsertChildCase(ctx context.Context, parentCaseID int64, caseType, team, status string) error
	QueueReply(ctx context.Context, caseID int64, toAddress string, payload []byte) error
	MarkEmailProcessed(ctx context.Context, emailID, caseID int64) error
}

const batchSize = 20

// Processor turns new inbox rows into classified cases: intent, risk,
// routing decision, case row, decision/risk records, an optional child
// case for agent-owned work, and a queued templated reply.
type Processor struct {
	Store  Store
	Engine ai.Engine
	Logger zerolog.Logger
}

type Summary struct {
	Processed int     `json:"processed"`
	Failed    int     `json:"failed"`
	CaseIDs   []int64 `json:"case_ids"`
}

// ProcessPending drains one batch of unprocessed emails, oldest first.
// A failing email is logged and skipped; it never aborts the batch.
func (p *Processor) ProcessPending(ctx context.Context) (Summary, error) {
	emails, err := p.Store.PendingEmails(ctx, batchSize)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{CaseIDs: []int64{}}
	for _, email := range emails {
		caseID, err := p.processOne(ctx, email)
		if err != nil {
			p.Logger.Error().Err(err).Int64("email_id", email.EmailID).Msg("email processing failed")
			summary.Failed++
			continue
		}
		summary.Processed++
		summary.CaseIDs = append(summary.CaseIDs, caseID)
	}
	return summary, nil
}

func (p *Processor) processOne(ctx context.Context, email models.InboundEmail) (int64, error) {
	body := email.BodyPreview
	if body == "" {
		body = email.BodyHTML
	}

	intent, err := p.Engine.DetectIntent(ctx, email.Subject, body)
	if err != nil {
		p.Logger.Warn().Err(err).Int64("email_id", email.EmailID).Msg("intent engine fell back")
		intent = ai.FallbackIntent()
	}
	risk, err := p.Engine.DetectRisk(ctx, email.Subject, body)
	if err != nil {
		p.Logger.Warn().Err(err).Int64("email_id", email.EmailID).Msg("risk engine fell back")
		risk = ai.FallbackRisk()
	}
	route, err := p.Engine.DecideRoute(ctx, intent.Intent, intent.Confidence, risk.Risk)
	if err != nil {
		p.Logger.Warn().Err(err).Int64("email_id", email.EmailID).Msg("routing engine fell back")
		route = ai.FallbackRoute(risk.Risk)
	}

	caseID, err := p.Store.CreateCase(ctx, models.CaseRecord{
		Channel:    "email",
		IntentType: intent.Intent,
		Confidence: intent.Confidence,
		RiskFlag:   risk.Risk,
		Status:     route.Status,
		AssignedTo: route.Owner,
	})
	if err != nil {
		return 0, err
	}

	if err := p.Store.InsertDecision(ctx, caseID, intent.Intent, intent.Confidence, route.Status, route.Owner, p.Engine.ModelVersion()); err != nil {
		return 0, err
	}
	if risk.Risk {
		if err := p.Store.InsertRiskEvent(ctx, caseID, risk.Reason, "high", "escalated"); err != nil {
			return 0, err
		}
	}
	if route.Owner == "agent" || route.Owner == "senior_support" {
		team := "l1_agents"
		if route.Owner == "senior_support" {
			team = "senior_support"
		}
		if err := p.Store.InsertChildCase(ctx, caseID, "manual_review", team, "open"); err != nil {
			return 0, err
		}
	}

	payload, _ := json.Marshal(map[string]string{
		"template": replyTemplate(intent.Intent, route),
		"intent":   intent.Intent,
	})
	if err := p.Store.QueueReply(ctx, caseID, email.FromEmail, payload); err != nil {
		return 0, err
	}

	if err := p.Store.MarkEmailProcessed(ctx, email.EmailID, caseID); err != nil {
		return 0, err
	}

	p.Logger.Info().
		Int64("email_id", email.EmailID).
		Int64("case_id", caseID).
		Str("intent", intent.Intent).
		Bool("risk", risk.Risk).
		Str("owner", route.Owner).
		Msg("email processed")
	return caseID, nil
}

func replyTemplate(intent string, route ai.Route) string {
	if route.Status == "escalated" {
		return "escalation_ack"
	}
	if route.Owner != "ai" {
		return "agent_handoff"
	}
	switch intent {
	case ai.IntentOrderStatus:
		return "order_status_update"
	case ai.IntentRefund:
		return "refund_status_update"
	case ai.IntentCancellation:
		return "cancellation_self_serve"
	case ai.IntentAddressChange:
		return "address_change_policy"
	case ai.IntentInvoice:
		return "invoice_auto_email"
	default:
		return "agent_handoff"
	}
}
