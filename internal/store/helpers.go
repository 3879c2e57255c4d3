package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zapfunnel/zapfunnel/internal/models"
)

// rowScanner abstracts sql.Row and sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nilIfZero returns nil if t is the zero time, otherwise returns t.
func nilIfZero(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// scanLead scans a Lead with its nullable columns.
func scanLead(row rowScanner) (*models.Lead, error) {
	var l models.Lead
	var phone, email, externalID, name, currentAgent sql.NullString
	var firstMessageAt, lastInteractionAt sql.NullTime
	err := row.Scan(
		&l.ID, &phone, &email, &externalID, &name, &l.Status, &l.CurrentQueue,
		&currentAgent, &firstMessageAt, &lastInteractionAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Phone = phone.String
	l.Email = email.String
	l.ExternalID = externalID.String
	l.Name = name.String
	l.CurrentAgent = models.AgentType(currentAgent.String)
	if firstMessageAt.Valid {
		l.FirstMessageAt = firstMessageAt.Time
	}
	if lastInteractionAt.Valid {
		l.LastInteractionAt = lastInteractionAt.Time
	}
	return &l, nil
}

// scanMessage scans a Message with its nullable agent column.
func scanMessage(row rowScanner) (models.Message, error) {
	var m models.Message
	var agentType sql.NullString
	err := row.Scan(&m.ID, &m.LeadID, &m.Direction, &m.Content, &m.SentAt, &m.AIGenerated, &agentType)
	if err != nil {
		return m, fmt.Errorf("scan message failed: %w", err)
	}
	m.AgentType = models.AgentType(agentType.String)
	return m, nil
}

// scanTicket scans a Ticket with its nullable columns.
func scanTicket(row rowScanner) (*models.Ticket, error) {
	var t models.Ticket
	var category sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&t.ID, &t.LeadID, &t.Description, &t.Status, &t.Priority, &category, &t.CreatedAt, &t.UpdatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	t.Category = category.String
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	return &t, nil
}

// scanTag scans a Tag with its nullable columns.
func scanTag(row rowScanner) (*models.Tag, error) {
	var t models.Tag
	var category, color sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &category, &color); err != nil {
		return nil, err
	}
	t.Category = category.String
	t.Color = color.String
	return &t, nil
}

// scanKnowledgeEntry scans a KnowledgeEntry with its nullable category.
func scanKnowledgeEntry(row rowScanner) (models.KnowledgeEntry, error) {
	var e models.KnowledgeEntry
	var category sql.NullString
	err := row.Scan(&e.ID, &e.Title, &e.Content, &category, &e.CreatedAt)
	if err != nil {
		return e, fmt.Errorf("scan knowledge entry failed: %w", err)
	}
	e.Category = category.String
	return e, nil
}
