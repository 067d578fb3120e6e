package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github/itish2003/admissions/logger"
	"github/itish2003/admissions/rag"
)

// ChatRequest is one user message, optionally continuing a session.
type ChatRequest struct {
	SessionID string
	Message   string
}

// ChatReply is the assistant's answer to one message.
type ChatReply struct {
	SessionID   string                `json:"session_id"`
	Answer      string                `json:"answer"`
	Intent      Intent                `json:"intent"`
	UsedSources []string              `json:"used_sources"`
	Sources     []rag.QueryResultItem `json:"sources"`
	// ContextAvailable is false when retrieval failed and the answer was
	// produced without any knowledge base context.
	ContextAvailable bool  `json:"context_available"`
	Lead             *Lead `json:"lead,omitempty"`
}

// AssistantService answers admissions questions from the knowledge base and
// hands users who want to apply over to lead capture.
type AssistantService interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatReply, error)
	ResetSession(sessionID string)
}

const (
	maxSessions = 10000
	sessionTTL  = 2 * time.Hour
)

type assistantServiceImpl struct {
	kb           KnowledgeBase
	completer    Completer
	leads        LeadStore
	historyTurns int

	mu       sync.Mutex
	sessions *ExpiringCache[[]Turn]
}

// NewAssistantService builds the assistant. historyTurns bounds how many
// earlier exchanges of a session are sent with each prompt. Sessions idle for
// longer than two hours are forgotten.
func NewAssistantService(kb KnowledgeBase, completer Completer, leads LeadStore, historyTurns int) AssistantService {
	return &assistantServiceImpl{
		kb:           kb,
		completer:    completer,
		leads:        leads,
		historyTurns: historyTurns,
		sessions:     NewExpiringCache[[]Turn](maxSessions, sessionTTL),
	}
}

// Chat implements AssistantService
func (a *assistantServiceImpl) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", rag.ErrInvalidInput)
	}

	sessionID, history := a.session(req.SessionID)
	intent := ClassifyIntent(message)
	log := logger.With("session_id", sessionID, "intent", intent.String())

	reply := &ChatReply{
		SessionID:        sessionID,
		Intent:           intent,
		UsedSources:      []string{},
		Sources:          []rag.QueryResultItem{},
		ContextAvailable: true,
	}

	// Information agent: retrieval failures degrade to an answer without
	// context instead of failing the turn.
	retrieved, err := a.kb.Query(ctx, message)
	switch {
	case err == nil:
		reply.UsedSources = retrieved.UsedSources
		reply.Sources = retrieved.Items
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		log.WithError(err).Warn("Retrieval failed, answering without context")
		reply.ContextAvailable = false
		retrieved = &rag.RetrievalResult{}
	}

	var saved *Lead
	completion := CompletionRequest{
		System:  InfoAgentPersona,
		History: history,
		Prompt:  BuildPrompt(retrieved.Context, message),
	}
	if intent == IntentEnrollmentInterest && a.leads != nil && a.completer.SupportsTools() {
		completion.System = InfoAgentPersona + "\n\n" + EnrollmentAgentPersona
		completion.Tools = []Tool{newSaveLeadTool(a.leads, func(l Lead) { saved = &l })}
	}

	answer, err := a.completer.Complete(ctx, completion)
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)

	// Enrollment agent.
	if intent == IntentEnrollmentInterest {
		if saved == nil {
			saved = a.captureLead(ctx, message, history, log)
		}
		if saved != nil {
			answer += "\n\n" + leadConfirmation(*saved)
		} else {
			answer += "\n\n" + EnrollmentCallToAction
		}
	}
	reply.Answer = answer
	reply.Lead = saved

	a.remember(sessionID, Turn{Role: RoleUser, Text: message}, Turn{Role: RoleAssistant, Text: answer})
	log.WithField("sources", len(reply.UsedSources)).Info("Chat turn answered")
	return reply, nil
}

// captureLead saves a lead when the message states both a name and an email.
func (a *assistantServiceImpl) captureLead(ctx context.Context, message string, history []Turn, log *logrus.Entry) *Lead {
	if a.leads == nil {
		return nil
	}
	name, email := extractContact(message)
	if name == "" || email == "" {
		return nil
	}
	earlier := make([]string, 0, len(history)+1)
	for _, t := range history {
		if t.Role == RoleUser {
			earlier = append(earlier, t.Text)
		}
	}
	earlier = append(earlier, message)

	lead, err := a.leads.SaveLead(ctx, Lead{Name: name, Email: email, Topic: leadTopic(earlier...)})
	if err != nil {
		log.WithError(err).Warn("Could not save lead")
		return nil
	}
	logger.Info("Lead captured", "email", lead.Email, "topic", lead.Topic)
	return &lead
}

// ResetSession implements AssistantService
func (a *assistantServiceImpl) ResetSession(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions.Delete(sessionID)
}

// session returns the id and a copy of the history of an existing session,
// or a fresh id when sessionID is empty, unknown or expired.
func (a *assistantServiceImpl) session(sessionID string) (string, []Turn) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if sessionID != "" {
		if history, ok := a.sessions.Get(sessionID); ok {
			return sessionID, append([]Turn(nil), history...)
		}
	}
	sessionID = uuid.New().String()
	a.sessions.Set(sessionID, nil)
	return sessionID, nil
}

func (a *assistantServiceImpl) remember(sessionID string, turns ...Turn) {
	a.mu.Lock()
	defer a.mu.Unlock()

	previous, _ := a.sessions.Get(sessionID)
	history := append(previous, turns...)
	if limit := a.historyTurns * 2; len(history) > limit {
		history = append([]Turn(nil), history[len(history)-limit:]...)
	}
	a.sessions.Set(sessionID, history)
}
