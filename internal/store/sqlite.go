// Package store provides storage backends for ZapFunnel.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"github.com/zapfunnel/zapfunnel/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path; the parent directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// FindOrCreateLead looks up a lead by phone, or by email when the event
// carries no phone, inserting it when absent. The UNIQUE constraints plus
// ON CONFLICT DO NOTHING make concurrent calls for the same identity converge
// on one row.
func (s *SQLiteStore) FindOrCreateLead(lead models.Lead) (*models.Lead, bool, error) {
	if err := lead.Validate(); err != nil {
		return nil, false, err
	}
	if lead.Phone == "" && lead.Email == "" {
		return nil, false, models.ErrEmptyIdentity
	}
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}

	conflict := `ON CONFLICT(phone) DO NOTHING`
	if lead.Phone == "" {
		// An email-only buyer may already exist as a phone lead with the
		// same email attached; never insert a duplicate for them.
		existing, err := s.getLeadByEmail(lead.Email)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
		conflict = `ON CONFLICT(email) WHERE phone IS NULL DO NOTHING`
	}

	res, err := s.db.Exec(`
		INSERT INTO leads (id, phone, email, external_id, name, status, current_queue, current_agent,
			first_message_at, last_interaction_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) `+conflict,
		lead.ID, nilIfEmpty(lead.Phone), nilIfEmpty(lead.Email), nilIfEmpty(lead.ExternalID), nilIfEmpty(lead.Name),
		lead.Status, lead.CurrentQueue, nilIfEmpty(string(lead.CurrentAgent)),
		nilIfZero(lead.FirstMessageAt), nilIfZero(lead.LastInteractionAt), lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore FindOrCreateLead insert failed", "error", err, "phone", lead.Phone)
		return nil, false, fmt.Errorf("failed to insert lead: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read insert result: %w", err)
	}

	var stored *models.Lead
	if lead.Phone != "" {
		stored, err = s.GetLeadByPhone(lead.Phone)
	} else {
		stored, err = s.getLeadByEmail(lead.Email)
	}
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, models.ErrLeadNotFound
	}
	created := affected == 1
	slog.Debug("SQLiteStore FindOrCreateLead succeeded", "phone", lead.Phone, "created", created)
	return stored, created, nil
}

// GetLeadByPhone returns the lead for a phone, or nil when absent.
func (s *SQLiteStore) GetLeadByPhone(phone string) (*models.Lead, error) {
	row := s.db.QueryRow(`
		SELECT id, phone, email, external_id, name, status, current_queue, current_agent,
			first_message_at, last_interaction_at, created_at, updated_at
		FROM leads WHERE phone = ?`, phone)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLeadByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query lead by phone: %w", err)
	}
	return lead, nil
}

// getLeadByEmail returns any lead carrying the email, or nil when absent.
func (s *SQLiteStore) getLeadByEmail(email string) (*models.Lead, error) {
	row := s.db.QueryRow(`
		SELECT id, phone, email, external_id, name, status, current_queue, current_agent,
			first_message_at, last_interaction_at, created_at, updated_at
		FROM leads WHERE email = ? LIMIT 1`, email)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore getLeadByEmail failed", "error", err)
		return nil, fmt.Errorf("failed to query lead by email: %w", err)
	}
	return lead, nil
}

// UpdateLead persists lead field changes.
func (s *SQLiteStore) UpdateLead(lead models.Lead) error {
	res, err := s.db.Exec(`
		UPDATE leads SET email = ?, external_id = ?, name = ?, status = ?, current_queue = ?,
			current_agent = ?, first_message_at = ?, last_interaction_at = ?, updated_at = ?
		WHERE id = ?`,
		nilIfEmpty(lead.Email), nilIfEmpty(lead.ExternalID), nilIfEmpty(lead.Name), lead.Status,
		lead.CurrentQueue, nilIfEmpty(string(lead.CurrentAgent)),
		nilIfZero(lead.FirstMessageAt), nilIfZero(lead.LastInteractionAt), lead.UpdatedAt, lead.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateLead failed", "error", err, "leadID", lead.ID)
		return fmt.Errorf("failed to update lead %s: %w", lead.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return models.ErrLeadNotFound
	}
	return nil
}

// AddQueueHistoryEntry appends one immutable queue transition record.
func (s *SQLiteStore) AddQueueHistoryEntry(entry models.QueueHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`INSERT INTO queue_history (id, lead_id, queue_type, entered_at) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.LeadID, entry.QueueType, entry.EnteredAt)
	if err != nil {
		slog.Error("SQLiteStore AddQueueHistoryEntry failed", "error", err, "leadID", entry.LeadID)
		return fmt.Errorf("failed to insert queue history entry: %w", err)
	}
	return nil
}

// GetQueueHistory returns a lead's transitions in insertion order.
func (s *SQLiteStore) GetQueueHistory(leadID string) ([]models.QueueHistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, lead_id, queue_type, entered_at FROM queue_history
		WHERE lead_id = ? ORDER BY entered_at, rowid`, leadID)
	if err != nil {
		slog.Error("SQLiteStore GetQueueHistory query failed", "error", err, "leadID", leadID)
		return nil, fmt.Errorf("failed to query queue history: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueHistoryEntry
	for rows.Next() {
		var e models.QueueHistoryEntry
		if err := rows.Scan(&e.ID, &e.LeadID, &e.QueueType, &e.EnteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddMessage records one conversation message.
func (s *SQLiteStore) AddMessage(msg models.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (id, lead_id, direction, content, sent_at, ai_generated, agent_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.LeadID, msg.Direction, msg.Content, msg.SentAt, msg.AIGenerated, nilIfEmpty(string(msg.AgentType)))
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "leadID", msg.LeadID)
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetRecentMessages returns the last limit messages in chronological order.
func (s *SQLiteStore) GetRecentMessages(leadID string, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, lead_id, direction, content, sent_at, ai_generated, agent_type FROM (
			SELECT id, lead_id, direction, content, sent_at, ai_generated, agent_type, rowid
			FROM messages WHERE lead_id = ? ORDER BY sent_at DESC, rowid DESC LIMIT ?
		) ORDER BY sent_at, rowid`, leadID, limit)
	if err != nil {
		slog.Error("SQLiteStore GetRecentMessages query failed", "error", err, "leadID", leadID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetOrCreateTag returns the tag with the given name, creating it when absent.
func (s *SQLiteStore) GetOrCreateTag(name string) (*models.Tag, error) {
	id := uuid.NewString()
	if _, err := s.db.Exec(`INSERT INTO tags (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`, id, name); err != nil {
		slog.Error("SQLiteStore GetOrCreateTag insert failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to insert tag %s: %w", name, err)
	}
	row := s.db.QueryRow(`SELECT id, name, category, color FROM tags WHERE name = ?`, name)
	tag, err := scanTag(row)
	if err != nil {
		slog.Error("SQLiteStore GetOrCreateTag select failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to query tag %s: %w", name, err)
	}
	return tag, nil
}

// ApplyTag associates a tag with a lead; reapplying is a no-op thanks to the
// composite primary key on (lead_id, tag_id).
func (s *SQLiteStore) ApplyTag(leadID, tagID string) error {
	_, err := s.db.Exec(`
		INSERT INTO lead_tags (lead_id, tag_id, applied_at) VALUES (?, ?, ?)
		ON CONFLICT(lead_id, tag_id) DO NOTHING`, leadID, tagID, time.Now())
	if err != nil {
		slog.Error("SQLiteStore ApplyTag failed", "error", err, "leadID", leadID, "tagID", tagID)
		return fmt.Errorf("failed to apply tag: %w", err)
	}
	return nil
}

// GetLeadTags returns all tags applied to a lead.
func (s *SQLiteStore) GetLeadTags(leadID string) ([]models.Tag, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.name, t.category, t.color FROM tags t
		JOIN lead_tags lt ON lt.tag_id = t.id
		WHERE lt.lead_id = ? ORDER BY t.name`, leadID)
	if err != nil {
		slog.Error("SQLiteStore GetLeadTags query failed", "error", err, "leadID", leadID)
		return nil, fmt.Errorf("failed to query lead tags: %w", err)
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, rows.Err()
}

// CreateTicket records a new support ticket.
func (s *SQLiteStore) CreateTicket(ticket models.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	var resolvedAt interface{}
	if ticket.ResolvedAt != nil {
		resolvedAt = *ticket.ResolvedAt
	}
	_, err := s.db.Exec(`
		INSERT INTO tickets (id, lead_id, description, status, priority, category, created_at, updated_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.ID, ticket.LeadID, ticket.Description, ticket.Status, ticket.Priority,
		nilIfEmpty(ticket.Category), ticket.CreatedAt, ticket.UpdatedAt, resolvedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateTicket failed", "error", err, "leadID", ticket.LeadID)
		return fmt.Errorf("failed to insert ticket: %w", err)
	}
	return nil
}

// GetOpenTicket returns the most recent unresolved ticket, or nil.
func (s *SQLiteStore) GetOpenTicket(leadID string) (*models.Ticket, error) {
	row := s.db.QueryRow(`
		SELECT id, lead_id, description, status, priority, category, created_at, updated_at, resolved_at
		FROM tickets WHERE lead_id = ? AND status != ?
		ORDER BY created_at DESC LIMIT 1`, leadID, models.TicketStatusResolved)
	ticket, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetOpenTicket failed", "error", err, "leadID", leadID)
		return nil, fmt.Errorf("failed to query open ticket: %w", err)
	}
	return ticket, nil
}

// UpdateTicket persists ticket field changes.
func (s *SQLiteStore) UpdateTicket(ticket models.Ticket) error {
	var resolvedAt interface{}
	if ticket.ResolvedAt != nil {
		resolvedAt = *ticket.ResolvedAt
	}
	res, err := s.db.Exec(`
		UPDATE tickets SET description = ?, status = ?, priority = ?, category = ?, updated_at = ?, resolved_at = ?
		WHERE id = ?`,
		ticket.Description, ticket.Status, ticket.Priority, nilIfEmpty(ticket.Category),
		ticket.UpdatedAt, resolvedAt, ticket.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateTicket failed", "error", err, "ticketID", ticket.ID)
		return fmt.Errorf("failed to update ticket %s: %w", ticket.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return models.ErrTicketNotFound
	}
	return nil
}

// AddKnowledgeEntry stores one knowledge base article.
func (s *SQLiteStore) AddKnowledgeEntry(entry models.KnowledgeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO knowledge_entries (id, title, content, category, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Title, entry.Content, nilIfEmpty(entry.Category), entry.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddKnowledgeEntry failed", "error", err, "title", entry.Title)
		return fmt.Errorf("failed to insert knowledge entry: %w", err)
	}
	return nil
}

// SearchKnowledge returns up to limit articles matching the query.
func (s *SQLiteStore) SearchKnowledge(query string, limit int) ([]models.KnowledgeEntry, error) {
	q := strings.ToLower(query)
	rows, err := s.db.Query(`
		SELECT id, title, content, category, created_at FROM knowledge_entries
		WHERE instr(?, lower(title)) > 0 OR instr(lower(title), ?) > 0 OR instr(lower(content), ?) > 0
		LIMIT ?`, q, q, q, limit)
	if err != nil {
		slog.Error("SQLiteStore SearchKnowledge query failed", "error", err)
		return nil, fmt.Errorf("failed to search knowledge base: %w", err)
	}
	defer rows.Close()

	var entries []models.KnowledgeEntry
	for rows.Next() {
		e, err := scanKnowledgeEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
