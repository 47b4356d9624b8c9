package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/nutriplan-app/apiserver/types"
)

// AuditRepository handles persistence for security audit events.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, event types.AuditEvent) error {
	const query = `
		INSERT INTO audit_logs (event_type, user_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	var userID any
	if event.UserID > 0 {
		userID = event.UserID
	}
	_, err := r.db.ExecContext(
		ctx,
		query,
		event.EventType,
		userID,
		event.IPAddress,
		event.UserAgent,
		event.Details,
		time.Now(),
	)
	return err
}
