package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	delegate "github.com/armatrix/delegate-go"
)

var errNilRecord = errors.New("session: record is nil")

// Record is the persisted state of one sub-session.
type Record struct {
	ID        string
	ParentID  string
	AgentName string
	// Model is the provider/model that last served the sub-session.
	Model     string
	Messages  []delegate.Message
	TotalCost decimal.Decimal
	NumTurns  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord creates an empty record for a freshly spawned sub-session.
func NewRecord(id, parentID, agentName string) *Record {
	now := time.Now()
	return &Record{
		ID:        id,
		ParentID:  parentID,
		AgentName: agentName,
		TotalCost: decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds one exchange to the transcript.
func (r *Record) Append(msgs ...delegate.Message) {
	r.Messages = append(r.Messages, msgs...)
	r.UpdatedAt = time.Now()
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.Messages = slices.Clone(r.Messages)
	return &c
}

// Store persists sub-session records.
type Store interface {
	Save(ctx context.Context, r *Record) error
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Record, error)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", delegate.ErrSessionNotFound, id)
}

// Children returns the records whose ParentID is parentID.
func Children(ctx context.Context, s Store, parentID string) ([]*Record, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, r := range all {
		if r.ParentID == parentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func sortRecords(rs []*Record) {
	slices.SortFunc(rs, func(a, b *Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
