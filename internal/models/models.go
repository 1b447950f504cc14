package models

import "time"

// InboundEmail is an email_inbox row as the processing pipeline sees it.
// Nullable text columns are coalesced to empty strings at scan time.
type InboundEmail struct {
	EmailID     int64  `json:"email_id"`
	FromName    string `json:"from_name"`
	FromEmail   string `json:"from_email"`
	Subject     string `json:"subject"`
	BodyPreview string `json:"body_preview"`
	BodyHTML    string `json:"body_html"`
}

// CaseRecord is the case produced by the pipeline for one inbound email.
type CaseRecord struct {
	Channel    string  `json:"channel"`
	IntentType string  `json:"intent_type"`
	Confidence float64 `json:"confidence_score"`
	RiskFlag   bool    `json:"risk_flag"`
	Status     string  `json:"status"`
	AssignedTo string  `json:"assigned_to"`
}

// QueueItem is a pending outbound reply in email_queue.
type QueueItem struct {
	EmailID   int64     `json:"email_id"`
	CaseID    int64     `json:"case_id"`
	ToAddress string    `json:"to_address"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
