package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultLeadTopic is recorded when a lead does not say what it is about.
const DefaultLeadTopic = "General Inquiry"

var ErrInvalidLead = errors.New("invalid lead")

// Lead is a prospective student who asked to be contacted.
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"timestamp"`
}

// LeadStore persists leads.
type LeadStore interface {
	SaveLead(ctx context.Context, lead Lead) (Lead, error)
	ListLeads(ctx context.Context) ([]Lead, error)
	ClearLeads(ctx context.Context) error
}

// NormalizeLead validates a lead and fills the id, topic and timestamp.
func NormalizeLead(lead Lead, now time.Time) (Lead, error) {
	lead.Name = strings.TrimSpace(lead.Name)
	lead.Email = strings.TrimSpace(lead.Email)
	lead.Topic = strings.TrimSpace(lead.Topic)

	if lead.Name == "" {
		return Lead{}, fmt.Errorf("%w: name is required", ErrInvalidLead)
	}
	addr, err := mail.ParseAddress(lead.Email)
	if err != nil {
		return Lead{}, fmt.Errorf("%w: email %q: %v", ErrInvalidLead, lead.Email, err)
	}
	lead.Email = addr.Address
	if lead.Topic == "" {
		lead.Topic = DefaultLeadTopic
	}
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now.UTC()
	}
	return lead, nil
}
