// Package store provides storage backends for ZapFunnel.
//
// This file implements the in-memory store used by tests and DSN-less runs.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zapfunnel/zapfunnel/internal/models"
)

// InMemoryStore keeps all records in process memory behind one mutex. The
// mutex also serializes FindOrCreateLead, which gives the same no-duplicate
// guarantee the SQL stores get from their uniqueness constraints.
type InMemoryStore struct {
	mu        sync.Mutex
	leads     map[string]models.Lead // keyed by lead ID
	byPhone   map[string]string      // phone -> lead ID
	byEmail   map[string]string      // email -> lead ID, first lead wins
	history   []models.QueueHistoryEntry
	messages  []models.Message
	tags      map[string]models.Tag // keyed by tag ID
	tagByName map[string]string     // name -> tag ID
	leadTags  map[string]models.LeadTag
	tickets   map[string]models.Ticket
	knowledge []models.KnowledgeEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		leads:     make(map[string]models.Lead),
		byPhone:   make(map[string]string),
		byEmail:   make(map[string]string),
		tags:      make(map[string]models.Tag),
		tagByName: make(map[string]string),
		leadTags:  make(map[string]models.LeadTag),
		tickets:   make(map[string]models.Ticket),
	}
}

// FindOrCreateLead looks up a lead by phone, or by email when the event
// carries no phone, and creates it when absent. Commerce webhooks can deliver
// email-only buyers; those must not collide with each other.
func (s *InMemoryStore) FindOrCreateLead(lead models.Lead) (*models.Lead, bool, error) {
	if err := lead.Validate(); err != nil {
		return nil, false, err
	}
	if lead.Phone == "" && lead.Email == "" {
		return nil, false, models.ErrEmptyIdentity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	var found bool
	if lead.Phone != "" {
		id, found = s.byPhone[lead.Phone]
	} else {
		id, found = s.byEmail[lead.Email]
	}
	if found {
		existing := s.leads[id]
		return &existing, false, nil
	}

	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	s.leads[lead.ID] = lead
	if lead.Phone != "" {
		s.byPhone[lead.Phone] = lead.ID
	}
	if lead.Email != "" {
		if _, taken := s.byEmail[lead.Email]; !taken {
			s.byEmail[lead.Email] = lead.ID
		}
	}
	created := lead
	return &created, true, nil
}

// GetLeadByPhone returns the lead for a phone, or nil when absent.
func (s *InMemoryStore) GetLeadByPhone(phone string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return nil, nil
	}
	lead := s.leads[id]
	return &lead, nil
}

// UpdateLead persists lead field changes.
func (s *InMemoryStore) UpdateLead(lead models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[lead.ID]; !ok {
		return models.ErrLeadNotFound
	}
	s.leads[lead.ID] = lead
	if lead.Email != "" {
		if _, taken := s.byEmail[lead.Email]; !taken {
			s.byEmail[lead.Email] = lead.ID
		}
	}
	return nil
}

// AddQueueHistoryEntry appends one immutable queue transition record.
func (s *InMemoryStore) AddQueueHistoryEntry(entry models.QueueHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.history = append(s.history, entry)
	return nil
}

// GetQueueHistory returns a lead's transitions in insertion order.
func (s *InMemoryStore) GetQueueHistory(leadID string) ([]models.QueueHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []models.QueueHistoryEntry
	for _, e := range s.history {
		if e.LeadID == leadID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// AddMessage records one conversation message.
func (s *InMemoryStore) AddMessage(msg models.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	s.messages = append(s.messages, msg)
	return nil
}

// GetRecentMessages returns the last limit messages in chronological order.
func (s *InMemoryStore) GetRecentMessages(leadID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var msgs []models.Message
	for _, m := range s.messages {
		if m.LeadID == leadID {
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// GetOrCreateTag returns the tag with the given name, creating it when absent.
func (s *InMemoryStore) GetOrCreateTag(name string) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.tagByName[name]; ok {
		tag := s.tags[id]
		return &tag, nil
	}
	tag := models.Tag{ID: uuid.NewString(), Name: name}
	s.tags[tag.ID] = tag
	s.tagByName[name] = tag.ID
	return &tag, nil
}

// ApplyTag associates a tag with a lead; reapplying is a no-op.
func (s *InMemoryStore) ApplyTag(leadID, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := leadID + "|" + tagID
	if _, ok := s.leadTags[key]; ok {
		return nil
	}
	s.leadTags[key] = models.LeadTag{LeadID: leadID, TagID: tagID, AppliedAt: time.Now()}
	return nil
}

// GetLeadTags returns all tags applied to a lead.
func (s *InMemoryStore) GetLeadTags(leadID string) ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tags []models.Tag
	for _, lt := range s.leadTags {
		if lt.LeadID == leadID {
			tags = append(tags, s.tags[lt.TagID])
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

// CreateTicket records a new support ticket.
func (s *InMemoryStore) CreateTicket(ticket models.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	s.tickets[ticket.ID] = ticket
	return nil
}

// GetOpenTicket returns the most recent unresolved ticket, or nil.
func (s *InMemoryStore) GetOpenTicket(leadID string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open *models.Ticket
	for _, t := range s.tickets {
		if t.LeadID != leadID || t.Status == models.TicketStatusResolved {
			continue
		}
		t := t
		if open == nil || t.CreatedAt.After(open.CreatedAt) {
			open = &t
		}
	}
	return open, nil
}

// UpdateTicket persists ticket field changes.
func (s *InMemoryStore) UpdateTicket(ticket models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.ID]; !ok {
		return models.ErrTicketNotFound
	}
	s.tickets[ticket.ID] = ticket
	return nil
}

// AddKnowledgeEntry stores one knowledge base article.
func (s *InMemoryStore) AddKnowledgeEntry(entry models.KnowledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.knowledge = append(s.knowledge, entry)
	return nil
}

// SearchKnowledge returns up to limit articles matching the query. An article
// matches when its title appears inside the query text or the query appears
// inside its title or content, case-insensitively. Titles are short problem
// statements ("erro de acesso"), queries are whole user messages.
func (s *InMemoryStore) SearchKnowledge(query string, limit int) ([]models.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var matches []models.KnowledgeEntry
	for _, e := range s.knowledge {
		title := strings.ToLower(e.Title)
		if strings.Contains(q, title) || strings.Contains(title, q) || strings.Contains(strings.ToLower(e.Content), q) {
			matches = append(matches, e)
			if limit > 0 && len(matches) == limit {
				break
			}
		}
	}
	return matches, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
