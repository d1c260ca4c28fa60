package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/forgehold/crucible/internal/manifest"
)

var (
	bucketManifests     = []byte("manifests")
	bucketInstallations = []byte("installations")
)

// BoltStore is the BoltDB-backed Registry.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the registry database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("registry: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketManifests, bucketInstallations} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: init buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// GetManifest implements Registry.
func (s *BoltStore) GetManifest(itemID string) (*manifest.Manifest, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketManifests).Get([]byte(itemID))
		if v == nil {
			return fmt.Errorf("%w: manifest %s", ErrNotFound, itemID)
		}
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return manifest.Parse(raw)
}

// GetInstallation implements Registry.
func (s *BoltStore) GetInstallation(installationID, callerID, projectID string) (*Installation, error) {
	inst, err := s.getInstallation(installationID)
	if err != nil {
		return nil, err
	}
	if !visibleTo(inst, callerID, projectID) {
		return nil, fmt.Errorf("%w: installation %s", ErrAccessDenied, installationID)
	}
	return inst, nil
}

func (s *BoltStore) getInstallation(installationID string) (*Installation, error) {
	var inst Installation
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketInstallations).Get([]byte(installationID))
		if v == nil {
			return fmt.Errorf("%w: installation %s", ErrNotFound, installationID)
		}
		return json.Unmarshal(v, &inst)
	})
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// ListInstallations implements Registry.
func (s *BoltStore) ListInstallations(callerID, projectID string) ([]*Installation, error) {
	var out []*Installation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInstallations).ForEach(func(_, v []byte) error {
			var inst Installation
			if err := json.Unmarshal(v, &inst); err != nil {
				return err
			}
			if visibleTo(&inst, callerID, projectID) {
				out = append(out, &inst)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// Bolt iterates key order; installation order is what callers and
	// the router's tie-break need.
	sortByInstallOrder(out)
	return out, nil
}

// Install implements Registry.
func (s *BoltStore) Install(inst *Installation, m *manifest.Manifest) error {
	clone := inst.Clone()
	if clone.InstalledAt.IsZero() {
		clone.InstalledAt = time.Now()
	}
	if clone.Health.Status == "" {
		clone.Health.Status = HealthUnknown
	}
	instRaw, err := json.Marshal(clone)
	if err != nil {
		return err
	}
	mRaw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		installs := tx.Bucket(bucketInstallations)
		if installs.Get([]byte(inst.ID)) != nil {
			return fmt.Errorf("%w: installation %s", ErrExists, inst.ID)
		}
		if err := tx.Bucket(bucketManifests).Put([]byte(inst.ItemID), mRaw); err != nil {
			return err
		}
		return installs.Put([]byte(inst.ID), instRaw)
	})
}

// SetEnabled implements Registry.
func (s *BoltStore) SetEnabled(installationID string, enabled bool) error {
	return s.patchInstallation(installationID, func(raw []byte) ([]byte, error) {
		return sjson.SetBytes(raw, "enabled", enabled)
	})
}

// Remove implements Registry.
func (s *BoltStore) Remove(installationID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInstallations)
		if b.Get([]byte(installationID)) == nil {
			return fmt.Errorf("%w: installation %s", ErrNotFound, installationID)
		}
		return b.Delete([]byte(installationID))
	})
}

// RecordExecution implements Registry. Counters are patched in place so
// concurrent fields (config, health) written by other paths are never
// clobbered by a stale full-document write.
func (s *BoltStore) RecordExecution(installationID string, duration time.Duration, success bool, costCents int64) error {
	return s.patchInstallation(installationID, func(raw []byte) ([]byte, error) {
		count := gjson.GetBytes(raw, "usage.executionCount").Int() + 1
		errors := gjson.GetBytes(raw, "usage.errorCount").Int()
		if !success {
			errors++
		}
		totalMS := gjson.GetBytes(raw, "usage.totalDurationMs").Int() + duration.Milliseconds()
		totalCost := gjson.GetBytes(raw, "usage.totalCostCents").Int() + costCents

		var err error
		for _, set := range []struct {
			path  string
			value interface{}
		}{
			{"usage.executionCount", count},
			{"usage.errorCount", errors},
			{"usage.totalDurationMs", totalMS},
			{"usage.totalCostCents", totalCost},
			{"usage.lastUsed", time.Now().Format(time.RFC3339Nano)},
		} {
			raw, err = sjson.SetBytes(raw, set.path, set.value)
			if err != nil {
				return nil, err
			}
		}
		return raw, nil
	})
}

// UpdateHealth implements Registry.
func (s *BoltStore) UpdateHealth(installationID string, status HealthStatus, issues []string) error {
	return s.patchInstallation(installationID, func(raw []byte) ([]byte, error) {
		health, err := json.Marshal(Health{
			Status:      status,
			LastChecked: time.Now(),
			Issues:      append([]string(nil), issues...),
		})
		if err != nil {
			return nil, err
		}
		return sjson.SetRawBytes(raw, "health", health)
	})
}

// patchInstallation applies a JSON patch to a stored installation
// inside one write transaction.
func (s *BoltStore) patchInstallation(installationID string, patch func([]byte) ([]byte, error)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInstallations)
		raw := b.Get([]byte(installationID))
		if raw == nil {
			return fmt.Errorf("%w: installation %s", ErrNotFound, installationID)
		}
		patched, err := patch(append([]byte(nil), raw...))
		if err != nil {
			return err
		}
		return b.Put([]byte(installationID), patched)
	})
}
