// Package tapleaflink extracts data from the LeafLink cannabis wholesale
// marketplace REST API and emits it as a stream of records.
//
// # Architecture
//
// Every LeafLink resource is described by a stream.Descriptor: its path,
// primary key and, for incremental streams, the replication key. A single
// stream.Syncer drives all of them:
//
//  1. Build query parameters: limit=100, the query of the previous page's
//     next link, and {replication_key}__gte for incremental streams.
//  2. GET the page with "Authorization: App <key>".
//  3. Decode the page and hand each element of "results" to the sink.
//  4. Follow the next link until the API returns null.
//
// The highest replication value seen becomes the stream's bookmark, which
// the next run passes back as the lower bound. Bookmarks are committed only
// after the whole stream succeeded, so a failed run replays rather than
// skips records.
//
// # Packages
//
//   - pkg/stream: catalog, paginator, parameter builder, extractor, syncer
//   - pkg/state: Singer state bookmarks
//   - pkg/schema: OpenAPI schemas and the discovery catalog
//   - pkg/sink: singer (stdout), jsonl, s3 and kafka outputs
//   - internal/pipeline: runs the selected streams into a sink
//   - pkg/auth, pkg/clients: App-key authentication and the HTTP client
//   - pkg/config, pkg/logger, pkg/errors, pkg/metrics, pkg/observability
//
// # Quick Start
//
//	tap-leaflink streams
//	tap-leaflink discover > catalog.json
//	LEAFLINK_API_KEY=... tap-leaflink sync --start-date 2024-01-01 --state state.json
//
// Write records to compressed files instead of stdout:
//
//	tap-leaflink sync --config config.yaml --output jsonl
//
// with
//
//	api_key: ${LEAFLINK_API_KEY}
//	output:
//	  type: jsonl
//	  path: ./out
//	  compression: zstd
package tapleaflink
