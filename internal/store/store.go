// Package store provides storage backends for ZapFunnel.
//
// It defines the Store interface used by the router, dispatcher and action
// executor, plus SQLite, PostgreSQL and in-memory implementations. The
// in-memory store backs tests and DSN-less development runs.
package store

import (
	"strings"

	"github.com/zapfunnel/zapfunnel/internal/models"
)

// Store is the persistence abstraction for leads, messages, tags, tickets,
// queue history and the support knowledge base.
type Store interface {
	// FindOrCreateLead looks up a lead by phone and creates it when absent.
	// The returned bool reports whether a new row was created. Concurrent
	// calls for the same phone must never produce duplicate leads.
	FindOrCreateLead(lead models.Lead) (*models.Lead, bool, error)
	// GetLeadByPhone returns the lead for a phone, or nil when absent.
	GetLeadByPhone(phone string) (*models.Lead, error)
	// UpdateLead persists lead field changes.
	UpdateLead(lead models.Lead) error

	// AddQueueHistoryEntry appends one immutable queue transition record.
	AddQueueHistoryEntry(entry models.QueueHistoryEntry) error
	// GetQueueHistory returns a lead's transitions in insertion order.
	GetQueueHistory(leadID string) ([]models.QueueHistoryEntry, error)

	// AddMessage records one conversation message.
	AddMessage(msg models.Message) error
	// GetRecentMessages returns the last limit messages for a lead in
	// chronological order.
	GetRecentMessages(leadID string, limit int) ([]models.Message, error)

	// GetOrCreateTag returns the tag with the given unique name, creating it
	// when absent.
	GetOrCreateTag(name string) (*models.Tag, error)
	// ApplyTag associates a tag with a lead. Reapplying is a no-op.
	ApplyTag(leadID, tagID string) error
	// GetLeadTags returns all tags applied to a lead.
	GetLeadTags(leadID string) ([]models.Tag, error)

	// CreateTicket records a new support ticket.
	CreateTicket(ticket models.Ticket) error
	// GetOpenTicket returns the most recent unresolved ticket for a lead,
	// or nil when there is none.
	GetOpenTicket(leadID string) (*models.Ticket, error)
	// UpdateTicket persists ticket field changes.
	UpdateTicket(ticket models.Ticket) error

	// AddKnowledgeEntry stores one knowledge base article.
	AddKnowledgeEntry(entry models.KnowledgeEntry) error
	// SearchKnowledge returns up to limit articles whose title or content
	// contains the query (case-insensitive substring match).
	SearchKnowledge(query string, limit int) ([]models.KnowledgeEntry, error)

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string // database connection string (file path for SQLite)
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL-style connection strings and
// "sqlite" for anything else (assumed to be a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
