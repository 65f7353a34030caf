// Package externalid maps source file identities to the aggregates created
// for them, so a re-import of the same file can be traced and deduplicated.
package externalid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/schedimport/internal/schedule"
)

// ObjectType is the kind of aggregate an external id points to.
type ObjectType string

const (
	ObjectWorkArea  ObjectType = "WORK_AREA"
	ObjectMilestone ObjectType = "MILESTONE"
	ObjectTask      ObjectType = "TASK"
)

// ErrDuplicate is returned when a record with the same key is saved twice.
var ErrDuplicate = errors.New("external id already exists")

// Record is one persisted mapping.
type Record struct {
	ProjectID        uuid.UUID               `json:"projectId"`
	IDType           schedule.ExternalIDType `json:"idType"`
	GUID             string                  `json:"guid,omitempty"`
	FileUniqueID     int                     `json:"fileUniqueId"`
	FileID           int                     `json:"fileId"`
	ObjectType       ObjectType              `json:"objectType"`
	ObjectIdentifier uuid.UUID               `json:"objectIdentifier"`
}

// Key identifies a record within a project.
type Key struct {
	ProjectID    uuid.UUID
	IDType       schedule.ExternalIDType
	ObjectType   ObjectType
	FileID       int
	FileUniqueID int
}

// Key returns the unique key of r.
func (r Record) Key() Key {
	return Key{
		ProjectID:    r.ProjectID,
		IDType:       r.IDType,
		ObjectType:   r.ObjectType,
		FileID:       r.FileID,
		FileUniqueID: r.FileUniqueID,
	}
}

// Registry persists external ids.
type Registry interface {
	// Save stores records atomically. A record whose key already exists with
	// the same object identifier is accepted; a conflicting one fails with ErrDuplicate.
	Save(ctx context.Context, records []Record) error
	// List returns the records of a project ordered by object type, file id and unique id.
	List(ctx context.Context, projectID uuid.UUID) ([]Record, error)
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[Key]Record
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[Key]Record)}
}

func (r *MemoryRegistry) Save(_ context.Context, records []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		if existing, ok := r.records[rec.Key()]; ok && existing.ObjectIdentifier != rec.ObjectIdentifier {
			return fmt.Errorf("%w: %s %d/%d", ErrDuplicate, rec.ObjectType, rec.FileID, rec.FileUniqueID)
		}
	}
	for _, rec := range records {
		r.records[rec.Key()] = rec
	}
	return nil
}

func (r *MemoryRegistry) List(_ context.Context, projectID uuid.UUID) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for _, rec := range r.records {
		if rec.ProjectID == projectID {
			out = append(out, rec)
		}
	}
	Sort(out)
	return out, nil
}

// Sort orders records by object type, file id and unique id.
func Sort(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.ObjectType != b.ObjectType {
			return a.ObjectType < b.ObjectType
		}
		if a.FileID != b.FileID {
			return a.FileID < b.FileID
		}
		return a.FileUniqueID < b.FileUniqueID
	})
}
