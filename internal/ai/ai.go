// Package ai classifies inbound support emails: what the customer wants,
// whether the message carries an escalation risk, and who should own the
// resulting case.
package ai

import "context"

// Intent labels recognised by the routing matrix.
const (
	IntentOrderStatus   = "order_status"
	IntentRefund        = "refund_not_received"
	IntentCancellation  = "cancellation_request"
	IntentAddressChange = "address_change_request"
	IntentReturn        = "return_exchange_request"
	IntentInvoice       = "invoice_request"
	IntentProblem       = "report_problem"
	IntentGeneral       = "general_inquiry"
	IntentUnknown       = "unknown"
)

type Intent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type Risk struct {
	Risk   bool   `json:"risk"`
	Reason string `json:"reason"`
}

// Route is the ownership decision for a classified case.
// Status is "resolved" when the AI handles it, "open" for an agent,
// "escalated" on a risk override.
type Route struct {
	Status string `json:"status"`
	Owner  string `json:"owner"`
}

type Engine interface {
	DetectIntent(ctx context.Context, subject, body string) (Intent, error)
	DetectRisk(ctx context.Context, subject, body string) (Risk, error)
	DecideRoute(ctx context.Context, intent string, confidence float64, risk bool) (Route, error)
	ModelVersion() string
}

// Safe fallbacks applied by callers when an engine errors out.
func FallbackIntent() Intent { return Intent{Intent: IntentUnknown, Confidence: 0.1} }

func FallbackRisk() Risk { return Risk{Risk: false, Reason: "engine error"} }

func FallbackRoute(risk bool) Route {
	if risk {
		return Route{Status: "escalated", Owner: "senior_support"}
	}
	return Route{Status: "open", Owner: "agent"}
}
