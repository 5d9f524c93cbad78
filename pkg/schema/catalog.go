package schema

import (
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

// Replication methods reported in the catalog.
const (
	MethodIncremental = "INCREMENTAL"
	MethodFullTable   = "FULL_TABLE"
)

// Catalog is the Singer discovery document.
type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}

// CatalogEntry describes one stream.
type CatalogEntry struct {
	TapStreamID       string                 `json:"tap_stream_id"`
	Stream            string                 `json:"stream"`
	KeyProperties     []string               `json:"key_properties"`
	ReplicationKey    string                 `json:"replication_key,omitempty"`
	ReplicationMethod string                 `json:"replication_method"`
	Schema            map[string]interface{} `json:"schema"`
	Metadata          []Metadata             `json:"metadata"`
}

// Metadata is a breadcrumb-addressed metadata entry. The empty breadcrumb
// addresses the stream itself.
type Metadata struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Discover builds the catalog for descs, resolving schemas from r.
func (r *Registry) Discover(descs []stream.Descriptor) Catalog {
	cat := Catalog{Streams: make([]CatalogEntry, 0, len(descs))}
	for _, d := range descs {
		method := MethodFullTable
		if d.Incremental() {
			method = MethodIncremental
		}

		md := map[string]interface{}{
			"inclusion":                 "available",
			"selected":                  true,
			"table-key-properties":      d.PrimaryKeys,
			"forced-replication-method": method,
		}
		if d.Incremental() {
			md["valid-replication-keys"] = []string{d.ReplicationKey}
		}

		cat.Streams = append(cat.Streams, CatalogEntry{
			TapStreamID:       d.Name,
			Stream:            d.Name,
			KeyProperties:     d.PrimaryKeys,
			ReplicationKey:    d.ReplicationKey,
			ReplicationMethod: method,
			Schema:            r.Lookup(d.SchemaKey),
			Metadata:          []Metadata{{Breadcrumb: []string{}, Metadata: md}},
		})
	}
	return cat
}
