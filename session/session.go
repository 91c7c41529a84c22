// Package session owns the per-subject conversation state. A state is only
// ever touched inside Store.Mutate, which serializes turns for one subject
// while leaving different subjects fully independent.
package session

import (
	"time"

	"github.com/sesampe/preaplus/ficha"
)

// TTL after which an idle session restarts from scratch.
const DefaultTTL = 24 * time.Hour

const NoFailedModule = -1

type State struct {
	SubjectID       string          `json:"subject_id"`
	ModuleIdx       int             `json:"module_idx"`
	Ficha           ficha.Ficha     `json:"ficha"`
	Retries         map[int]int     `json:"retries,omitempty"`
	ProcessedMsgIDs map[string]bool `json:"processed_msg_ids,omitempty"`
	LastText        string          `json:"last_text,omitempty"`
	LastFailedIdx   int             `json:"last_failed_idx"`
	Completed       bool            `json:"completed"`
	RecordDelivered bool            `json:"record_delivered"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func NewState(subjectID string, now time.Time) *State {
	return &State{
		SubjectID:       subjectID,
		Retries:         map[int]int{},
		ProcessedMsgIDs: map[string]bool{},
		LastFailedIdx:   NoFailedModule,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Reset restarts the dialogue for the same subject, dropping the record but
// keeping the processed-message set so replayed webhook deliveries stay
// no-ops across the reset.
func (s *State) Reset(now time.Time) {
	processed := s.ProcessedMsgIDs
	*s = *NewState(s.SubjectID, now)
	if processed != nil {
		s.ProcessedMsgIDs = processed
	}
}

func (s *State) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}

// MarkProcessed records a transport message id, reporting false when the id
// was already seen (at-least-once delivery tolerance).
func (s *State) MarkProcessed(messageID string) bool {
	if messageID == "" {
		return true
	}
	if s.ProcessedMsgIDs == nil {
		s.ProcessedMsgIDs = map[string]bool{}
	}
	if s.ProcessedMsgIDs[messageID] {
		return false
	}
	s.ProcessedMsgIDs[messageID] = true
	return true
}

// Store hands exclusive ownership of one subject's state to fn for the
// duration of a turn. Implementations must serialize calls per subject.
type Store interface {
	Mutate(subjectID string, fn func(*State) error) error
}
