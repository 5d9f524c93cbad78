// Package sinks links every sink implementation into the binary so each
// registers itself with the sink registry.
package sinks

import (
	// Register all sinks
	_ "github.com/ajitpratap0/tap-leaflink/pkg/sink/jsonl"
	_ "github.com/ajitpratap0/tap-leaflink/pkg/sink/kafka"
	_ "github.com/ajitpratap0/tap-leaflink/pkg/sink/s3"
	_ "github.com/ajitpratap0/tap-leaflink/pkg/sink/singer"
)
