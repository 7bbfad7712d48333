package repositories

import (
	"database/sql"
	"time"

	"github.com/nkjm/line-login/models"
)

// AuditRepository handles audit event persistence
type AuditRepository interface {
	Create(event *models.AuditEvent) error
	RecentByUser(userID string, limit int) ([]models.AuditEvent, error)
}

type sqliteAuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &sqliteAuditRepository{db: db}
}

// Create inserts a new audit event
func (r *sqliteAuditRepository) Create(event *models.AuditEvent) error {
	query := `
		INSERT INTO audit_events (timestamp, user_id, action, path, user_agent, ip_address)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(
		query,
		time.Now(),
		event.UserID,
		event.Action,
		event.Path,
		event.UserAgent,
		event.IPAddress,
	)

	return err
}

// RecentByUser returns the most recent audit events for a user
func (r *sqliteAuditRepository) RecentByUser(userID string, limit int) ([]models.AuditEvent, error) {
	query := `
		SELECT id, timestamp, user_id, action, path, user_agent, ip_address
		FROM audit_events
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var event models.AuditEvent
		if err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.UserID,
			&event.Action,
			&event.Path,
			&event.UserAgent,
			&event.IPAddress,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
