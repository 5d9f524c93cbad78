// Package config provides configuration management for tap-leaflink.
//
// A run is described by a single TapConfig. Values are resolved in three
// layers, later layers winning:
//
//  1. NewTapConfig defaults (production API root, 30s request timeout, singer output)
//  2. The --config file (YAML or JSON) with ${VAR_NAME} substitution
//  3. Changed CLI flags and LEAFLINK_* environment variables, via Resolve
//
// # Usage
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	config.Resolve(cfg, config.NewViper())
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// # Configuration File
//
//	api_key: ${LEAFLINK_API_KEY}
//	api_url: https://www.sandbox.leaflink.com/api/v2
//	start_date: "2024-01-01"
//	streams: [orders_received, products]
//	output:
//	  type: jsonl
//	  path: ./out
//	  compression: zstd
//
// # Environment Overrides
//
// Keys map to upper-case variables with the LEAFLINK_ prefix and dots
// replaced by underscores:
//
//	LEAFLINK_API_KEY=...        api_key
//	LEAFLINK_OUTPUT_TYPE=kafka  output.type
//	LEAFLINK_STREAMS=a,b        streams
//
// Validation fails with an ErrorTypeConfig error before any request is made
// when api_key is missing or api_url/start_date cannot be parsed.
package config
