// Package jsonl writes schema-tagged messages as JSON lines, one message
// per line, in the Singer message style: SCHEMA, RECORD and STATE.
package jsonl

import (
	"encoding/json"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mehmetymw/tap-libsql/internal/types"
)

type message struct {
	Type           string         `json:"type"`
	Stream         string         `json:"stream,omitempty"`
	Schema         *types.Schema  `json:"schema,omitempty"`
	KeyProperties  []string       `json:"key_properties,omitempty"`
	ReplicationKey string         `json:"replication_key,omitempty"`
	Record         types.Record   `json:"record,omitempty"`
	Value          map[string]any `json:"value,omitempty"`
}

type Sink struct {
	enc    *json.Encoder
	closer io.Closer
	logger *zap.Logger
}

// New creates a sink writing to the given file path, or to stdout when the
// path is empty or "-".
func New(path string, logger *zap.Logger) (*Sink, error) {
	if path == "" || path == "-" {
		logger.Info("Creating JSONL sink on stdout")
		return &Sink{enc: json.NewEncoder(os.Stdout), logger: logger}, nil
	}

	logger.Info("Creating JSONL sink", zap.String("path", path))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Sink{enc: json.NewEncoder(f), closer: f, logger: logger}, nil
}

func (s *Sink) WriteSchema(stream string, schema *types.Schema, keyProperties []string, replicationKey string) error {
	s.logger.Debug("Writing schema message",
		zap.String("stream", stream),
		zap.Strings("key_properties", keyProperties),
		zap.String("replication_key", replicationKey))
	return s.enc.Encode(message{
		Type:           "SCHEMA",
		Stream:         stream,
		Schema:         schema,
		KeyProperties:  keyProperties,
		ReplicationKey: replicationKey,
	})
}

func (s *Sink) WriteRecord(stream string, rec types.Record) error {
	return s.enc.Encode(message{Type: "RECORD", Stream: stream, Record: rec})
}

func (s *Sink) WriteState(state map[string]any) error {
	s.logger.Debug("Writing state message", zap.Any("state", state))
	return s.enc.Encode(message{Type: "STATE", Value: state})
}

func (s *Sink) Close() error {
	s.logger.Info("Closing JSONL sink")
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
