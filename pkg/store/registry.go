// Package store persists registered channel metadata in pebble so the
// channel directory survives restarts. Message bodies are never
// written here; relay delivery is fire-and-forget.
package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"relayd/pkg/logger"
	"relayd/pkg/metrics"
)

const channelKeyPrefix = "channel:"

// RegisteredChannel is the persisted record for one channel.
type RegisteredChannel struct {
	Name      string    `json:"name"`
	Founder   string    `json:"founder,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry wraps the pebble handle.
type Registry struct {
	db   *pebble.DB
	path string
}

// Open opens (or creates) the registry database at path.
func Open(path string) (*Registry, error) {
	logger.Info("opening_registry_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("registry_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &Registry{db: db, path: path}, nil
}

// Close closes the database.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	logger.Info("registry_closed")
	return err
}

// Ready reports whether the registry is usable.
func (r *Registry) Ready() bool {
	return r != nil && r.db != nil
}

func channelKey(name string) []byte {
	return []byte(channelKeyPrefix + strings.ToLower(name))
}

// Save upserts a channel record.
func (r *Registry) Save(ch RegisteredChannel) error {
	if !r.Ready() {
		return fmt.Errorf("registry not opened")
	}
	data, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	if err := r.db.Set(channelKey(ch.Name), data, pebble.Sync); err != nil {
		metrics.RegistryOps.WithLabelValues("save", "error").Inc()
		return err
	}
	metrics.RegistryOps.WithLabelValues("save", "ok").Inc()
	return nil
}

// Delete removes a channel record; missing records are not an error.
func (r *Registry) Delete(name string) error {
	if !r.Ready() {
		return fmt.Errorf("registry not opened")
	}
	if err := r.db.Delete(channelKey(name), pebble.Sync); err != nil {
		metrics.RegistryOps.WithLabelValues("delete", "error").Inc()
		return err
	}
	metrics.RegistryOps.WithLabelValues("delete", "ok").Inc()
	return nil
}

// List returns all persisted channel records.
func (r *Registry) List() ([]RegisteredChannel, error) {
	if !r.Ready() {
		return nil, fmt.Errorf("registry not opened")
	}
	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(channelKeyPrefix),
		UpperBound: []byte(channelKeyPrefix + "\xff"),
	})
	if err != nil {
		metrics.RegistryOps.WithLabelValues("list", "error").Inc()
		return nil, err
	}
	defer iter.Close()
	var out []RegisteredChannel
	for iter.First(); iter.Valid(); iter.Next() {
		var ch RegisteredChannel
		if err := json.Unmarshal(iter.Value(), &ch); err != nil {
			// tolerate one bad record rather than failing the restore
			logger.Warn("registry_bad_record", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, ch)
	}
	metrics.RegistryOps.WithLabelValues("list", "ok").Inc()
	return out, iter.Error()
}
