package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/estensen/streamflow-pipeline/internal/models"
)

// Recorder counts archive operations.
type Recorder interface {
	ObserveSnapshot(operation string, err error)
}

// SnapshotStore archives derived streams so they can be re-derived later
// without reading the ledger again.
type SnapshotStore struct {
	objects  ObjectStore
	logger   *zap.Logger
	recorder Recorder
}

func NewSnapshotStore(objects ObjectStore, logger *zap.Logger, recorder Recorder) *SnapshotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStore{objects: objects, logger: logger, recorder: recorder}
}

func snapshotName(address solana.PublicKey) string {
	return "streams/" + address.String() + ".json"
}

func (s *SnapshotStore) Save(ctx context.Context, stream models.Stream) (err error) {
	defer s.observe("put", &err)

	data, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("encoding stream %s: %w", stream.ID, err)
	}
	return s.objects.Put(ctx, snapshotName(stream.ID), data, "application/json")
}

// SaveAll archives every stream and stops at the first failure.
func (s *SnapshotStore) SaveAll(ctx context.Context, streams []models.Stream) error {
	for _, stream := range streams {
		if err := s.Save(ctx, stream); err != nil {
			return err
		}
	}
	s.logger.Info("archived stream snapshots", zap.Int("streams", len(streams)))
	return nil
}

// Load returns the archived stream at address; ErrNotFound when none exists.
func (s *SnapshotStore) Load(ctx context.Context, address solana.PublicKey) (stream models.Stream, err error) {
	defer s.observe("get", &err)

	data, err := s.objects.Get(ctx, snapshotName(address))
	if err != nil {
		return models.Stream{}, err
	}
	if err := json.Unmarshal(data, &stream); err != nil {
		return models.Stream{}, fmt.Errorf("decoding stream %s: %w", address, err)
	}
	return stream, nil
}

func (s *SnapshotStore) observe(operation string, err *error) {
	if s.recorder != nil {
		s.recorder.ObserveSnapshot(operation, *err)
	}
}
