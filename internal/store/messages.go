package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

// UpsertMessage stores a canonical message keyed by its natural key
// (provider, provider message id, owner email). The first insert creates
// the row; subsequent calls with the same key touch only the mutable
// fields (risk score, flagged, category) and leave identity and content
// columns alone. A unique-key race with a concurrent insert lands in the
// update path and is a successful no-op, not an error.
func (s *Store) UpsertMessage(ctx context.Context, m *domain.CanonicalMessage) (bool, error) {
	recipients, err := json.Marshal(m.Recipients)
	if err != nil {
		return false, fmt.Errorf("encode recipients: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages
		   (provider, provider_message_id, owner_email, sender_email, sender_name,
		    recipients, subject, body_text, body_html, sent_at, has_attachments,
		    direction, risk_score, flagged, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider, provider_message_id, owner_email) DO NOTHING`,
		m.Provider, m.ProviderMessageID, m.OwnerEmail, m.SenderEmail, m.SenderName,
		string(recipients), m.Subject, m.BodyText, m.BodyHTML, m.SentAt, m.HasAttachments,
		m.Direction, m.RiskScore, m.Flagged, m.Category,
	)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE messages
		 SET risk_score = ?, flagged = ?, category = ?, updated_at = ?
		 WHERE provider = ? AND provider_message_id = ? AND owner_email = ?`,
		m.RiskScore, m.Flagged, m.Category, time.Now(),
		m.Provider, m.ProviderMessageID, m.OwnerEmail,
	)
	if err != nil {
		return false, fmt.Errorf("update message: %w", err)
	}
	return false, nil
}

// GetMessage fetches a message by natural key. Returns nil when no row
// exists.
func (s *Store) GetMessage(ctx context.Context, key domain.NaturalKey) (*domain.CanonicalMessage, error) {
	var m domain.CanonicalMessage
	var recipients sql.NullString
	var senderEmail, senderName, subject, bodyText, bodyHTML, category sql.NullString
	var sentAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT provider, provider_message_id, owner_email, sender_email, sender_name,
		        recipients, subject, body_text, body_html, sent_at, has_attachments,
		        direction, risk_score, flagged, category
		 FROM messages
		 WHERE provider = ? AND provider_message_id = ? AND owner_email = ?`,
		key.Provider, key.ProviderMessageID, key.OwnerEmail,
	).Scan(&m.Provider, &m.ProviderMessageID, &m.OwnerEmail, &senderEmail, &senderName,
		&recipients, &subject, &bodyText, &bodyHTML, &sentAt, &m.HasAttachments,
		&m.Direction, &m.RiskScore, &m.Flagged, &category)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.SenderEmail = senderEmail.String
	m.SenderName = senderName.String
	m.Subject = subject.String
	m.BodyText = bodyText.String
	m.BodyHTML = bodyHTML.String
	m.Category = category.String
	if sentAt.Valid {
		m.SentAt = sentAt.Time
	}
	if recipients.Valid && recipients.String != "" {
		if err := json.Unmarshal([]byte(recipients.String), &m.Recipients); err != nil {
			return nil, fmt.Errorf("decode recipients: %w", err)
		}
	}
	return &m, nil
}

// CountMessages returns the total number of stored messages, optionally
// restricted to one provider.
func (s *Store) CountMessages(ctx context.Context, provider domain.Provider) (int, error) {
	var n int
	var err error
	if provider == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE provider = ?`, provider).Scan(&n)
	}
	return n, err
}

// CountFlagged returns how many stored messages are currently flagged.
func (s *Store) CountFlagged(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE flagged = 1`).Scan(&n)
	return n, err
}
