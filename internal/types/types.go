package types

import "errors"

// ReplicationMethod selects how a table is extracted.
type ReplicationMethod string

const (
	FullTable   ReplicationMethod = "FULL_TABLE"
	Incremental ReplicationMethod = "INCREMENTAL"
)

// PropertyType is the portable type tag a source column is mapped to.
type PropertyType string

const (
	TypeInteger  PropertyType = "integer"
	TypeNumber   PropertyType = "number"
	TypeString   PropertyType = "string"
	TypeBoolean  PropertyType = "boolean"
	TypeDatetime PropertyType = "datetime"
)

// ExtractedAtColumn is the synthetic timestamp column appended to every
// schema and stamped onto every record at emission time.
const ExtractedAtColumn = "_sdc_extracted_at"

// Property describes one column of an emitted schema.
type Property struct {
	Type     PropertyType `json:"type"`
	Required bool         `json:"required"`
}

// Schema is the emitted shape of one table's records. Columns preserves
// source column order; Properties is keyed by column name.
type Schema struct {
	Columns    []string            `json:"columns"`
	Properties map[string]Property `json:"properties"`
}

// Record is a single extracted row with JSON-representable values only.
type Record map[string]any

// Sink receives schema, record and state messages for downstream delivery.
type Sink interface {
	WriteSchema(stream string, schema *Schema, keyProperties []string, replicationKey string) error
	WriteRecord(stream string, rec Record) error
	WriteState(state map[string]any) error
	Close() error
}

// Error taxonomy. Failures produced by this module wrap exactly one of
// these sentinels; callers classify with errors.Is.
var (
	// ErrConfig marks invalid or contradictory configuration.
	ErrConfig = errors.New("configuration error")
	// ErrConnection marks connectivity exhausted after retries.
	ErrConnection = errors.New("connection error")
	// ErrSchema marks a configured table missing from the database.
	ErrSchema = errors.New("schema error")
	// ErrQuery marks a database-side failure during execution or fetch.
	ErrQuery = errors.New("query error")
)
