// Package entity declares the descriptor for every table exposed by the
// REST facade. A descriptor carries everything a handler needs: route
// segment, table name, key and ordering columns, and the insertable
// columns with their validation rules and defaults.
package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Kind int

const (
	Text Kind = iota
	Int
	Float
	Bool
	Timestamp // ISO-8601 string, parsed by the database
	JSON      // structured value, serialized to text before storage
)

type Column struct {
	Name string
	Kind Kind
	// Rule is a validator tag evaluated against the submitted value.
	// A rule starting with "required" makes the field mandatory.
	Rule    string
	Default any
}

func (c Column) Required() bool {
	return strings.HasPrefix(c.Rule, "required")
}

type Entity struct {
	Name      string // label used in error messages, e.g. "Case"
	Path      string // route segment, e.g. "cases"
	Table     string
	Key       string
	StringKey bool
	OrderBy   string
	NullsLast bool
	// EmailFilter enables the ?email= exact-match listing (orders only).
	EmailFilter bool
	Columns     []Column
}

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Fields, "; ")
}

// InsertArgs validates the submitted payload against the column rules,
// applies declared defaults for omitted fields, serializes JSON columns
// and returns the full column/argument lists for the insert statement.
// Every declared column is present in the result; omitted optional
// fields insert as NULL, matching the write-once row contract.
func (e Entity) InsertArgs(v *validator.Validate, payload map[string]any) ([]string, []any, error) {
	cols := make([]string, 0, len(e.Columns))
	args := make([]any, 0, len(e.Columns))
	verr := &ValidationError{}

	for _, col := range e.Columns {
		val, ok := payload[col.Name]
		if !ok && col.Default != nil {
			val = col.Default
			ok = true
		}
		if !ok || val == nil {
			if col.Required() {
				verr.Fields = append(verr.Fields, fmt.Sprintf("%s is required", col.Name))
			}
			cols = append(cols, col.Name)
			args = append(args, nil)
			continue
		}

		coerced, err := coerce(col, val)
		if err != nil {
			verr.Fields = append(verr.Fields, fmt.Sprintf("%s: %v", col.Name, err))
			cols = append(cols, col.Name)
			args = append(args, nil)
			continue
		}
		if col.Rule != "" && col.Kind != JSON {
			if err := v.Var(coerced, col.Rule); err != nil {
				verr.Fields = append(verr.Fields, fmt.Sprintf("%s: failed %q", col.Name, col.Rule))
			}
		}
		cols = append(cols, col.Name)
		args = append(args, coerced)
	}

	if len(verr.Fields) > 0 {
		return nil, nil, verr
	}
	return cols, args, nil
}

func coerce(col Column, val any) (any, error) {
	switch col.Kind {
	case Text, Timestamp:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", val)
		}
		return s, nil
	case Int:
		f, ok := val.(float64)
		if !ok {
			if i, isInt := val.(int); isInt {
				return int64(i), nil
			}
			if i64, isInt64 := val.(int64); isInt64 {
				return i64, nil
			}
			return nil, fmt.Errorf("expected integer, got %T", val)
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected integer, got %v", f)
		}
		return int64(f), nil
	case Float:
		switch n := val.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		default:
			return nil, fmt.Errorf("expected number, got %T", val)
		}
	case Bool:
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", val)
		}
		return b, nil
	case JSON:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return val, nil
}

// Registry lists every entity the facade serves, in route order.
var Registry = []Entity{
	{
		Name: "Email", Path: "email-inbox", Table: "email_inbox",
		Key: "email_id", OrderBy: "received_at", NullsLast: true,
		Columns: []Column{
			{Name: "message_id"},
			{Name: "internet_message_id"},
			{Name: "from_name"},
			{Name: "from_email", Rule: "required,email"},
			{Name: "to_email", Rule: "required,email"},
			{Name: "subject"},
			{Name: "body_preview"},
			{Name: "body_html"},
			{Name: "received_at", Kind: Timestamp},
			{Name: "channel", Default: "email"},
			{Name: "processing_status", Default: "new"},
			{Name: "linked_case_id", Kind: Int, Rule: "omitempty,gt=0"},
			{Name: "raw_payload", Kind: JSON},
		},
	},
	{
		Name: "Case", Path: "cases", Table: "cases",
		Key: "case_id", OrderBy: "created_at",
		Columns: []Column{
			{Name: "salesforce_case_id"},
			{Name: "channel"},
			{Name: "intent_type"},
			{Name: "confidence_score", Kind: Float, Rule: "omitempty,gte=0,lte=1"},
			{Name: "risk_flag", Kind: Bool, Default: false},
			{Name: "status"},
			{Name: "assigned_to"},
		},
	},
	{
		Name: "Order", Path: "orders", Table: "orders",
		Key: "order_id", StringKey: true, OrderBy: "created_at", EmailFilter: true,
		Columns: []Column{
			{Name: "order_id", Rule: "required"},
			{Name: "email", Rule: "required,email"},
			{Name: "status"},
			{Name: "items"},
			{Name: "amount", Kind: Float, Rule: "omitempty,gte=0"},
		},
	},
	{
		Name: "Case order", Path: "case-orders", Table: "case_orders",
		Key: "id", OrderBy: "created_at",
		Columns: []Column{
			{Name: "case_id", Kind: Int, Rule: "required,gt=0"},
			{Name: "order_id", Rule: "required"},
			{Name: "is_valid", Kind: Bool, Default: true},
		},
	},
	{
		Name: "Order status snapshot", Path: "order-status-snapshots", Table: "order_status_snapshot",
		Key: "id", OrderBy: "fetched_at",
		Columns: []Column{
			{Name: "order_id", Rule: "required"},
			{Name: "oms_status"},
			{Name: "courier_status"},
			{Name: "tracking_id"},
			{Name: "delivery_attempts", Kind: Int, Rule: "omitempty,gte=0", Default: 0},
			{Name: "last_movement_at", Kind: Timestamp},
			{Name: "source_system"},
		},
	},
	{
		Name: "Refund case", Path: "refund-cases", Table: "refund_cases",
		Key: "refund_case_id", OrderBy: "created_at",
		Columns: []Column{
			{Name: "case_id", Kind: Int, Rule: "required,gt=0"},
			{Name: "order_id", Rule: "required"},
			{Name: "refund_type"},
			{Name: "refund_status"},
			{Name: "arn_number"},
			{Name: "sla_start_date", Kind: Timestamp},
		},
	},
	{
		Name: "Refund event", Path: "refund-events", Table: "refund_events",
		Key: "id", OrderBy: "created_at",
		Columns: []Column{
			{Name: "refund_case_id", Kind: Int, Rule: "required,gt=0"},
			{Name: "event_type"},
			{Name: "event_source"},
			{Name: "event_payload", Kind: JSON},
		},
	},
	{
		Name: "AI decision", Path: "ai-decisions", Table: "ai_decisions",
		Key: "decision_id", OrderBy: "created_at",
		Columns: []Column{
			{Name: "case_id", Kind: Int, Rule: "required,gt=0"},
			{Name: "intent_detected"},
			{Name: "confidence_score", Kind: Float, Rule: "omitempty,gte=0,lte=1"},
			{Name: "decision_type"},
			{Name: "reason_code"},
			{Name: "model_version"},
		},
	},
	{
		Name: "Risk event", Path: "risk-events", Table: "risk_events",
		Key: "id", OrderBy: "created_at",
		Columns: []Column{
			{Name: "case_id", Kind: Int, Rule: "required,gt=0"},
			{Name: "keyword_detected"},
			{Name: "risk_level"},
			{Name: "action_taken"},
		},
	},
	{
		Name: "Child case", Path: "child-cases", Table: "child_cases",
		Key: "child_case_id", OrderBy: "created_at",
		Columns: []Column{
			{Name: "parent_case_id", Kind: Int, Rule: "required,gt=0"},
			{Name: "type"},
			{Name: "assigned_team"},
			{Name: "status"},
			{Name: "closed_at", Kind: Timestamp},
		},
	},
	{
		Name: "Communication", Path: "communications", Table: "communications",
		Key: "comm_id", OrderBy: "sent_at", NullsLast: true,
		Columns: []Column{
			{Name: "case_id", Kind: Int, Rule: "required,gt=0"},
			{Name: "channel"},
			{Name: "template_id"},
			{Name: "message_status"},
			{Name: "sent_at", Kind: Timestamp},
		},
	},
	{
		Name: "Email queue item", Path: "email-queue", Table: "email_queue",
		Key: "email_id", OrderBy: "created_at",
		Columns: []Column{
			{Name: "case_id", Kind: Int, Rule: "required,gt=0"},
			{Name: "to_address", Rule: "omitempty,email"},
			{Name: "payload", Kind: JSON},
			{Name: "status"},
			{Name: "retry_count", Kind: Int, Rule: "omitempty,gte=0", Default: 0},
			{Name: "sent_at", Kind: Timestamp},
		},
	},
	{
		Name: "Email template", Path: "email-templates", Table: "email_templates",
		Key: "template_id", OrderBy: "created_at",
		Columns: []Column{
			{Name: "template_name"},
			{Name: "subject"},
			{Name: "body_html"},
			{Name: "body_text"},
		},
	},
	{
		Name: "Agent action", Path: "agent-actions", Table: "agent_actions",
		Key: "id", OrderBy: "created_at",
		Columns: []Column{
			{Name: "case_id", Kind: Int, Rule: "required,gt=0"},
			{Name: "agent_id"},
			{Name: "action_type"},
			{Name: "notes"},
		},
	},
	{
		Name: "Reopen record", Path: "case-reopen-history", Table: "case_reopen_history",
		Key: "id", OrderBy: "reopened_at",
		Columns: []Column{
			{Name: "case_id", Kind: Int, Rule: "required,gt=0"},
			{Name: "reopen_reason"},
			{Name: "reopened_at", Kind: Timestamp},
		},
	},
	{
		Name: "Confidence threshold", Path: "confidence-thresholds", Table: "confidence_thresholds",
		Key: "id", OrderBy: "created_at",
		Columns: []Column{
			{Name: "intent_type"},
			{Name: "min_confidence_for_fcr", Kind: Float, Rule: "omitempty,gte=0,lte=1"},
		},
	},
	{
		Name: "Audit log", Path: "system-audit-logs", Table: "system_audit_logs",
		Key: "id", OrderBy: "timestamp",
		Columns: []Column{
			{Name: "entity_type"},
			{Name: "entity_id"},
			{Name: "action"},
			{Name: "performed_by"},
			{Name: "timestamp", Kind: Timestamp},
		},
	},
	{
		Name: "Platform metric", Path: "platform-metrics", Table: "platform_metrics",
		Key: "id", OrderBy: "calculated_at",
		Columns: []Column{
			{Name: "fcr_rate", Kind: Float, Rule: "omitempty,gte=0"},
			{Name: "escalation_rate", Kind: Float, Rule: "omitempty,gte=0"},
			{Name: "sla_breach_rate", Kind: Float, Rule: "omitempty,gte=0"},
			{Name: "reopen_rate", Kind: Float, Rule: "omitempty,gte=0"},
			{Name: "calculated_at", Kind: Timestamp},
		},
	},
}
