// Package chat holds the widget's transcript: messages, the registration
// step the user is on and the data extracted so far. State is persisted as
// a single session blob after every change.
package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Role is who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ErrEmptyMessage rejects blank user input.
var ErrEmptyMessage = errors.New("message is empty")

// Message is one transcript entry.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// LegalStructure is the kind of firm being registered
type LegalStructure string

const (
	LegalStructureLLC        LegalStructure = "llc"
	LegalStructureLLCBranch  LegalStructure = "llc_branch"
	LegalStructureLLCG       LegalStructure = "llc_g"
	LegalStructureLLP        LegalStructure = "llp"
	LegalStructureLLPBranch  LegalStructure = "llp_branch"
	LegalStructureFoundation LegalStructure = "foundation"
)

// CompanyData is what the assistant extracted from the conversation so far.
type CompanyData struct {
	CompanyName        string         `json:"company_name,omitempty"`
	RegistrationNumber string         `json:"registration_number,omitempty"`
	LegalEntityType    LegalStructure `json:"legal_entity_type,omitempty"`
	ConfidenceScore    float64        `json:"confidence_score,omitempty"`
}

// Steps are the stages of the pre-qualification form, in order.
var Steps = []string{
	"Welcome to part one",
	"Legal structure and permitted activities",
	"Name of proposed firm",
	"Share capital and shareholders",
	"Financial information and projections",
	"Review",
}

// State is a snapshot of the transcript.
type State struct {
	Messages         []Message    `json:"messages"`
	IsLoading        bool         `json:"isLoading"`
	ConversationData *CompanyData `json:"conversationData"`
	CurrentStep      int          `json:"currentStep"`
	ApplicationID    string       `json:"applicationId,omitempty"`
	SessionID        string       `json:"sessionId,omitempty"`
	Error            string       `json:"error,omitempty"`
	IsOpen           bool         `json:"isOpen"`
	UploadMode       bool         `json:"uploadMode"`
}

func (s State) clone() State {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	if s.ConversationData != nil {
		data := *s.ConversationData
		out.ConversationData = &data
	}
	return out
}

// Store owns the transcript. Subscribers run after every change, in order;
// they must not mutate the store synchronously.
type Store struct {
	sessions SessionStore
	logger   zerolog.Logger

	// emitMu orders persistence and notification across mutations.
	emitMu sync.Mutex

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithSessionStore persists the transcript under SessionKey.
func WithSessionStore(s SessionStore) StoreOption {
	return func(st *Store) { st.sessions = s }
}

func WithStoreLogger(logger zerolog.Logger) StoreOption {
	return func(st *Store) { st.logger = logger }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		logger: zerolog.Nop(),
		subs:   make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "chat").Logger()
	return s
}

// Load restores the persisted transcript, if any. Loading and error flags
// are never restored.
func (s *Store) Load(ctx context.Context) error {
	if s.sessions == nil {
		return nil
	}
	blob, err := s.sessions.Load(ctx, SessionKey)
	if err != nil {
		return errors.Wrap(err, "loading chat session")
	}
	if blob == nil {
		return nil
	}
	var restored State
	if err := json.Unmarshal(blob, &restored); err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable chat session")
		return nil
	}
	s.Restore(restored)
	return nil
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn for state changes
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Send appends a user message. content is trimmed; blank content is rejected.
func (s *Store) Send(content string, metadata map[string]any) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyMessage
	}
	msg := Message{Role: RoleUser, Content: content, Metadata: metadata}
	return s.AddMessage(msg), nil
}

// AddMessage appends msg, filling in its id and timestamp when missing, and
// clears the error.
func (s *Store) AddMessage(msg Message) Message {
	if msg.ID == "" {
		msg.ID = "msg-" + uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.update(func(st *State) {
		st.Messages = append(st.Messages, msg)
		st.Error = ""
	})
	return msg
}

func (s *Store) SetLoading(loading bool) {
	s.update(func(st *State) { st.IsLoading = loading })
}

func (s *Store) SetConversationData(data CompanyData) {
	s.update(func(st *State) { st.ConversationData = &data })
}

// SetCurrentStep moves to step, clamped to the known steps.
func (s *Store) SetCurrentStep(step int) {
	if step < 0 {
		step = 0
	}
	if step >= len(Steps) {
		step = len(Steps) - 1
	}
	s.update(func(st *State) { st.CurrentStep = step })
}

func (s *Store) SetApplicationID(id string) {
	s.update(func(st *State) { st.ApplicationID = id })
}

func (s *Store) SetSessionID(id string) {
	s.update(func(st *State) { st.SessionID = id })
}

// SetError records a user-visible error and stops the loading indicator.
func (s *Store) SetError(msg string) {
	s.update(func(st *State) {
		st.Error = msg
		st.IsLoading = false
	})
}

func (s *Store) SetOpen(open bool) {
	s.update(func(st *State) { st.IsOpen = open })
}

func (s *Store) SetUploadMode(enabled bool) {
	s.update(func(st *State) { st.UploadMode = enabled })
}

// Clear resets the transcript but keeps the session id, and drops the
// persisted blob.
func (s *Store) Clear() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.state = State{SessionID: s.state.SessionID, IsOpen: s.state.IsOpen}
	snap, subs := s.state.clone(), s.subscribers()
	s.mu.Unlock()

	if s.sessions != nil {
		if err := s.sessions.Delete(context.Background(), SessionKey); err != nil {
			s.logger.Error().Err(err).Msg("failed to clear chat session")
		}
	}
	s.notify(snap, subs)
}

// Restore replaces the transcript with st, e.g. from a saved session.
func (s *Store) Restore(st State) {
	s.update(func(cur *State) {
		*cur = st.clone()
		cur.IsLoading = false
		cur.Error = ""
	})
}

func (s *Store) update(fn func(*State)) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	fn(&s.state)
	snap, subs := s.state.clone(), s.subscribers()
	s.mu.Unlock()

	s.persist(snap)
	s.notify(snap, subs)
}

func (s *Store) subscribers() []func(State) {
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func (s *Store) persist(st State) {
	if s.sessions == nil {
		return
	}
	st.IsLoading = false
	st.Error = ""
	blob, err := json.Marshal(st)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode chat session")
		return
	}
	if err := s.sessions.Save(context.Background(), SessionKey, blob); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist chat session")
	}
}

func (s *Store) notify(st State, subs []func(State)) {
	for _, fn := range subs {
		fn(st)
	}
}
