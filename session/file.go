package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	delegate "github.com/armatrix/delegate-go"
)

// FileStore persists records as individual JSON files in a directory.
// Each record is stored as {id}.json; generated sub-session ids are
// filesystem-safe by construction.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore that saves records to the given directory.
// The directory is created if it does not exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// recordJSON is the on-disk representation of a record.
type recordJSON struct {
	ID        string             `json:"id"`
	ParentID  string             `json:"parent_id"`
	AgentName string             `json:"agent_name"`
	Model     string             `json:"model,omitempty"`
	Messages  []delegate.Message `json:"messages"`
	TotalCost string             `json:"total_cost"`
	NumTurns  int                `json:"num_turns"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func toJSON(r *Record) recordJSON {
	return recordJSON{
		ID:        r.ID,
		ParentID:  r.ParentID,
		AgentName: r.AgentName,
		Model:     r.Model,
		Messages:  r.Messages,
		TotalCost: r.TotalCost.String(),
		NumTurns:  r.NumTurns,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromJSON(data recordJSON) *Record {
	cost, err := decimal.NewFromString(data.TotalCost)
	if err != nil {
		cost = decimal.Zero
	}
	return &Record{
		ID:        data.ID,
		ParentID:  data.ParentID,
		AgentName: data.AgentName,
		Model:     data.Model,
		Messages:  data.Messages,
		TotalCost: cost,
		NumTurns:  data.NumTurns,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}

// Save writes a record to disk as JSON.
func (f *FileStore) Save(_ context.Context, r *Record) error {
	if r == nil {
		return errNilRecord
	}
	path, err := f.path(r.ID)
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(toJSON(r), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write record file: %w", err)
	}
	return nil
}

// Load reads a record from disk by ID.
func (f *FileStore) Load(_ context.Context, id string) (*Record, error) {
	path, err := f.path(id)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("read record file: %w", err)
	}

	var data recordJSON
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return fromJSON(data), nil
}

// Delete removes a record file from disk.
func (f *FileStore) Delete(_ context.Context, id string) error {
	path, err := f.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return notFound(id)
		}
		return fmt.Errorf("remove record file: %w", err)
	}
	return nil
}

// List returns all records stored on disk, ordered by creation time.
func (f *FileStore) List(ctx context.Context) ([]*Record, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		r, err := f.Load(ctx, id)
		if err != nil {
			continue // skip corrupt files
		}
		records = append(records, r)
	}
	sortRecords(records)
	return records, nil
}

// path maps an id to its file. Ids that would escape the directory are
// rejected; such ids were never generated by this module.
func (f *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", notFound(id)
	}
	return filepath.Join(f.dir, id+".json"), nil
}
