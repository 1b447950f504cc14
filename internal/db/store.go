package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantaops/l1-backend/internal/entity"
	"github.com/quantaops/l1-backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// insertQuery builds "INSERT INTO t (c1,c2) VALUES ($1,$2) RETURNING *".
func insertQuery(table string, cols []string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(cols, ", "), strings.Join(ph, ", "))
}

// listQuery builds the canonical paginated select for an entity.
func listQuery(e entity.Entity) string {
	order := e.OrderBy + " DESC"
	if e.NullsLast {
		order += " NULLS LAST"
	}
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT $1 OFFSET $2", e.Table, order)
}

// InsertReturning executes one insert and returns the persisted row,
// including generated keys and database-side defaults.
func (s *Store) InsertReturning(ctx context.Context, e entity.Entity, cols []string, args []any) (map[string]any, error) {
	rows, err := s.Pool.Query(ctx, insertQuery(e.Table, cols), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	return rowToMap(rows)
}

// List returns rows ordered by the entity's recency column, newest first.
func (s *Store) List(ctx context.Context, e entity.Entity, limit, offset int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.Pool.Query(ctx, listQuery(e), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

// GetByKey fetches a single row; pgx.ErrNoRows means missing.
func (s *Store) GetByKey(ctx context.Context, e entity.Entity, key any) (map[string]any, error) {
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", e.Table, e.Key)
	rows, err := s.Pool.Query(ctx, q, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	return rowToMap(rows)
}

// ListOrdersByEmail is the one filtered listing the facade offers: all
// orders owned by the address, unpaginated, newest first.
func (s *Store) ListOrdersByEmail(ctx context.Context, email string) ([]map[string]any, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT * FROM orders WHERE email = $1 ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

func rowToMap(rows pgx.Rows) (map[string]any, error) {
	fds := rows.FieldDescriptions()
	vals, err := rows.Values()
	if err != nil {
		return nil, err
	}
	m := make(map[string]any, len(fds))
	for i, fd := range fds {
		m[string(fd.Name)] = vals[i]
	}
	return m, nil
}

func rowsToMaps(rows pgx.Rows) ([]map[string]any, error) {
	out := make([]map[string]any, 0)
	for rows.Next() {
		m, err := rowToMap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SeedOrders inserts the demo order fixtures. Re-running refreshes
// statuses instead of failing on the key conflict.
func (s *Store) SeedOrders(ctx context.Context) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (order_id, email, status, items, amount, created_at)
			VALUES
			('PUMA-1001', 'soorya@example.com', 'Shipped', 'Nitro Running Shoes', 12999.00, NOW() - INTERVAL '2 DAYS'),
			('PUMA-1002', 'user_created@example.com', 'Created', 'Puma White Sneakers', 4500.00, NOW() - INTERVAL '4 HOURS'),
			('PUMA-1003', 'user_packed@example.com', 'Packed', 'Gym Duffel Bag', 1599.00, NOW() - INTERVAL '1 DAY'),
			('PUMA-1004', 'user_delivered@example.com', 'Delivered', 'Ferrari Race T-Shirt', 2999.00, NOW() - INTERVAL '5 DAYS'),
			('PUMA-1005', 'user_returned@example.com', 'Returned', 'Yoga Mat', 1299.00, NOW() - INTERVAL '10 DAYS')
			ON CONFLICT (order_id) DO UPDATE SET status = EXCLUDED.status`)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO orders (order_id, email, status, items, amount, created_at)
			VALUES
			('PUMA-9001', 'stuck@example.com', 'Shipped', 'Track Pants Black', 2999.00, NOW() - INTERVAL '12 DAYS'),
			('PUMA-9002', 'priority@example.com', 'Shipped', 'Puma Suede Classic', 6999.00, NOW() - INTERVAL '3 DAYS'),
			('PUMA-9003', 'failed_delivery@example.com', 'Delivery Failed', 'Hoodie Grey', 3499.00, NOW() - INTERVAL '1 DAY')
			ON CONFLICT (order_id) DO UPDATE SET status = EXCLUDED.status`)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO orders (order_id, email, status, items, amount, created_at)
			VALUES
			('PUMA-2001', 'john.doe@example.com', 'Delivered', 'Puma T-Shirt Black', 1499.00, NOW() - INTERVAL '15 DAYS'),
			('PUMA-2002', 'john.doe@example.com', 'Shipped', 'Sneakers White', 4999.00, NOW() - INTERVAL '2 DAYS'),
			('PUMA-2003', 'john.doe@example.com', 'Created', 'Socks 3-Pack', 499.00, NOW() - INTERVAL '1 HOUR')
			ON CONFLICT (order_id) DO NOTHING`)
		return err
	})
}

// --- pipeline and worker statements ---

func (s *Store) PendingEmails(ctx context.Context, limit int) ([]models.InboundEmail, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT email_id, COALESCE(from_name,''), from_email,
			COALESCE(subject,''), COALESCE(body_preview,''), COALESCE(body_html,'')
		FROM email_inbox
		WHERE processing_status = 'new'
		ORDER BY received_at ASC NULLS LAST
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.InboundEmail
	for rows.Next() {
		var e models.InboundEmail
		if err := rows.Scan(&e.EmailID, &e.FromName, &e.FromEmail, &e.Subject, &e.BodyPreview, &e.BodyHTML); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CreateCase(ctx context.Context, c models.CaseRecord) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO cases (channel, intent_type, confidence_score, risk_flag, status, assigned_to)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING case_id`,
		c.Channel, c.IntentType, c.Confidence, c.RiskFlag, c.Status, c.AssignedTo).Scan(&id)
	return id, err
}

func (s *Store) InsertDecision(ctx context.Context, caseID int64, intent string, confidence float64, decisionType, reasonCode, modelVersion string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO ai_decisions (case_id, intent_detected, confidence_score, decision_type, reason_code, model_version)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		caseID, intent, confidence, decisionType, reasonCode, modelVersion)
	return err
}

func (s *Store) InsertRiskEvent(ctx context.Context, caseID int64, keyword, level, action string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO risk_events (case_id, keyword_detected, risk_level, action_taken)
		VALUES ($1,$2,$3,$4)`,
		caseID, keyword, level, action)
	return err
}

func (s *Store) InsertChildCase(ctx context.Context, parentCaseID int64, caseType, team, status string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO child_cases (parent_case_id, type, assigned_team, status)
		VALUES ($1,$2,$3,$4)`,
		parentCaseID, caseType, team, status)
	return err
}

func (s *Store) QueueReply(ctx context.Context, caseID int64, toAddress string, payload []byte) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO email_queue (case_id, to_address, payload, status)
		VALUES ($1,$2,$3,'pending')`,
		caseID, toAddress, payload)
	return err
}

func (s *Store) MarkEmailProcessed(ctx context.Context, emailID, caseID int64) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE email_inbox
		SET processing_status = 'processed', linked_case_id = $2
		WHERE email_id = $1`, emailID, caseID)
	return err
}

func (s *Store) PendingQueue(ctx context.Context, limit int) ([]models.QueueItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT email_id, case_id, COALESCE(to_address,''), COALESCE(payload,'{}'), created_at
		FROM email_queue
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.QueueItem
	for rows.Next() {
		var q models.QueueItem
		if err := rows.Scan(&q.EmailID, &q.CaseID, &q.ToAddress, &q.Payload, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) MarkQueueSent(ctx context.Context, emailID int64) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE email_queue
		SET status = 'sent', sent_at = NOW()
		WHERE email_id = $1`, emailID)
	return err
}

// RecordFCRMetric writes one platform_metrics row with the share of
// cases resolved by the AI owner, as a percentage.
func (s *Store) RecordFCRMetric(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO platform_metrics (fcr_rate)
		SELECT COUNT(*) FILTER (WHERE assigned_to = 'ai')::float /
			NULLIF(COUNT(*), 0) * 100
		FROM cases`)
	return err
}
