package sink

import (
	"time"

	"github.com/ajitpratap0/tap-leaflink/pkg/state"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

// Singer message types.
const (
	TypeSchema = "SCHEMA"
	TypeRecord = "RECORD"
	TypeState  = "STATE"
)

// SchemaMessage announces a stream's schema and keys.
type SchemaMessage struct {
	Type               string                 `json:"type"`
	Stream             string                 `json:"stream"`
	Schema             map[string]interface{} `json:"schema"`
	KeyProperties      []string               `json:"key_properties"`
	BookmarkProperties []string               `json:"bookmark_properties,omitempty"`
}

// RecordMessage carries one record.
type RecordMessage struct {
	Type          string        `json:"type"`
	Stream        string        `json:"stream"`
	Record        stream.Record `json:"record"`
	TimeExtracted string        `json:"time_extracted,omitempty"`
}

// StateMessage carries the bookmarks to persist.
type StateMessage struct {
	Type  string         `json:"type"`
	Value state.Document `json:"value"`
}

// NewSchemaMessage builds the SCHEMA message for a stream.
func NewSchemaMessage(desc stream.Descriptor, schema map[string]interface{}) SchemaMessage {
	msg := SchemaMessage{
		Type:          TypeSchema,
		Stream:        desc.Name,
		Schema:        schema,
		KeyProperties: desc.PrimaryKeys,
	}
	if desc.Incremental() {
		msg.BookmarkProperties = []string{desc.ReplicationKey}
	}
	return msg
}

// NewRecordMessage builds a RECORD message.
func NewRecordMessage(desc stream.Descriptor, rec stream.Record, extractedAt time.Time) RecordMessage {
	msg := RecordMessage{
		Type:   TypeRecord,
		Stream: desc.Name,
		Record: rec,
	}
	if !extractedAt.IsZero() {
		msg.TimeExtracted = FormatTime(extractedAt)
	}
	return msg
}

// NewStateMessage builds a STATE message.
func NewStateMessage(doc state.Document) StateMessage {
	return StateMessage{Type: TypeState, Value: doc}
}

// FormatTime renders timestamps the way Singer targets expect.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
