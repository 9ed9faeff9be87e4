// Package snapshot implements whole-state backup and restore: every
// collection plus both counters travels as one versioned JSON bundle.
// Restore is all-or-nothing; a bundle that fails validation leaves the
// current state untouched.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"blockforge/api/internal/store"
)

// Version tags exported bundles. Restore accepts any version; unknown
// fields are ignored, missing collections read as empty.
const Version = "2.2.0"

var ErrMalformed = errors.New("malformed backup bundle")

// Bundle is the downloadable backup document. Documents travel as the full
// mapping; restore re-splits them into individual per-document records.
type Bundle struct {
	Version      string                      `json:"version"`
	Timestamp    time.Time                   `json:"timestamp"`
	Documents    map[string]store.Document   `json:"documents"`
	Clients      map[string]store.Client     `json:"clients"`
	Templates    map[string]store.Template   `json:"templates"`
	Groups       map[string]store.BlockGroup `json:"groups"`
	GroupCounter int                         `json:"groupCounter"`
	BlockCounter int                         `json:"blockCounter"`
}

// Service builds and restores bundles against the state store.
type Service struct {
	state *store.State
	log   *zap.Logger
}

func NewService(state *store.State, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{state: state, log: log}
}

// Export captures the full state as a bundle.
func (s *Service) Export() Bundle {
	snap := s.state.Export()
	return Bundle{
		Version:      Version,
		Timestamp:    time.Now(),
		Documents:    snap.Documents,
		Clients:      snap.Clients,
		Templates:    snap.Templates,
		Groups:       snap.Groups,
		GroupCounter: snap.GroupCounter,
		BlockCounter: snap.BlockCounter,
	}
}

// Filename names the download after the backup date.
func Filename(at time.Time) string {
	return fmt.Sprintf("blockforge-backup-%s.json", at.Format("2006-01-02"))
}

// Import parses and validates raw bundle JSON, then atomically replaces the
// whole state. Validation happens entirely before the first write, so a bad
// bundle can never leave a partial import behind.
func (s *Service) Import(ctx context.Context, raw []byte) error {
	var bundle Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	snap, err := validate(bundle)
	if err != nil {
		return err
	}

	s.state.Replace(ctx, snap)
	s.log.Info("state restored from backup",
		zap.String("bundleVersion", bundle.Version),
		zap.Int("documents", len(snap.Documents)),
		zap.Int("clients", len(snap.Clients)))
	return nil
}

// validate normalizes the bundle into a state snapshot. Missing collections
// read as empty; a bundle without the default block group gets the factory
// group re-seeded so the undeletable default always survives an import.
func validate(bundle Bundle) (store.Snapshot, error) {
	snap := store.Snapshot{
		Documents:    bundle.Documents,
		Clients:      bundle.Clients,
		Templates:    bundle.Templates,
		Groups:       bundle.Groups,
		GroupCounter: bundle.GroupCounter,
		BlockCounter: bundle.BlockCounter,
	}
	if snap.Documents == nil {
		snap.Documents = map[string]store.Document{}
	}
	if snap.Clients == nil {
		snap.Clients = map[string]store.Client{}
	}
	if snap.Templates == nil {
		snap.Templates = map[string]store.Template{}
	}
	if snap.Groups == nil {
		snap.Groups = map[string]store.BlockGroup{}
	}

	if snap.GroupCounter < 0 || snap.BlockCounter < 0 {
		return store.Snapshot{}, fmt.Errorf("%w: negative counter", ErrMalformed)
	}
	for id, doc := range snap.Documents {
		if doc.ID == "" {
			return store.Snapshot{}, fmt.Errorf("%w: document %q has no id", ErrMalformed, id)
		}
		if doc.ID != id {
			return store.Snapshot{}, fmt.Errorf("%w: document key %q does not match id %q", ErrMalformed, id, doc.ID)
		}
	}
	for id, client := range snap.Clients {
		if client.ID != "" && client.ID != id {
			return store.Snapshot{}, fmt.Errorf("%w: client key %q does not match id %q", ErrMalformed, id, client.ID)
		}
	}

	if _, ok := snap.Groups[store.DefaultGroupID]; !ok {
		snap.Groups[store.DefaultGroupID] = store.FactoryGroups()[store.DefaultGroupID]
	}
	return snap, nil
}
