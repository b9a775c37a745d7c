package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// StateStore persists per-table replication watermarks between runs.
type StateStore interface {
	Get(stream string) (any, bool)
	Set(stream string, value any) error
	Snapshot() map[string]any
}

// NewFileStateStore creates a store backed by <dir>/state.json, loading any
// previously persisted watermarks.
func NewFileStateStore(dir string, logger *zap.Logger) *fileStateStore {
	logger.Debug("Creating file state store", zap.String("dir", dir))
	os.MkdirAll(dir, 0o755)

	s := &fileStateStore{
		path:   filepath.Join(dir, "state.json"),
		state:  map[string]any{},
		logger: logger,
	}

	b, err := os.ReadFile(s.path)
	if err == nil {
		if err := json.Unmarshal(b, &s.state); err != nil {
			logger.Warn("Ignoring unreadable state file", zap.String("path", s.path), zap.Error(err))
			s.state = map[string]any{}
		} else {
			logger.Info("Loaded replication state",
				zap.String("path", s.path),
				zap.Int("streams", len(s.state)))
		}
	}
	return s
}

type fileStateStore struct {
	path   string
	state  map[string]any
	logger *zap.Logger
}

func (f *fileStateStore) Get(stream string) (any, bool) {
	v, ok := f.state[stream]
	return v, ok
}

func (f *fileStateStore) Set(stream string, value any) error {
	if value == nil {
		return nil
	}
	f.state[stream] = value
	b, err := json.Marshal(f.state)
	if err != nil {
		return err
	}
	f.logger.Debug("Saving replication state",
		zap.String("path", f.path),
		zap.String("stream", stream),
		zap.Any("value", value))
	return os.WriteFile(f.path, b, 0o644)
}

func (f *fileStateStore) Snapshot() map[string]any {
	out := make(map[string]any, len(f.state))
	for k, v := range f.state {
		out[k] = v
	}
	return out
}
