package store

import (
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Pebble is a durable ProcessedSet backed by a pebble key-value store.
// It survives restarts, so intents handled in a prior run are not
// re-audited or re-signed.
type Pebble struct {
	db *pebble.DB
}

// NewPebble opens (or creates) the processed-intents store under dir.
func NewPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(filepath.Join(dir, "processed-intents"), &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening pebble db")
	}
	return &Pebble{db: db}, nil
}

// Contains reports whether the identifier has been recorded.
func (p *Pebble) Contains(intentHash common.Hash) (bool, error) {
	_, closer, err := p.db.Get(intentHash.Bytes())
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "reading processed intent")
	}
	if err := closer.Close(); err != nil {
		return false, errors.Wrap(err, "closing pebble value")
	}
	return true, nil
}

// Add durably records the identifier.
func (p *Pebble) Add(intentHash common.Hash) error {
	if err := p.db.Set(intentHash.Bytes(), []byte{1}, pebble.Sync); err != nil {
		return errors.Wrap(err, "recording processed intent")
	}
	return nil
}

// Close closes the underlying database.
func (p *Pebble) Close() error {
	return p.db.Close()
}
