package config_test

import (
	"fmt"

	"github.com/ajitpratap0/tap-leaflink/pkg/config"
	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
)

// ExampleNewTapConfig demonstrates the defaults of a new configuration.
func ExampleNewTapConfig() {
	cfg := config.NewTapConfig()

	fmt.Printf("API URL: %s\n", cfg.APIURL)
	fmt.Printf("Request Timeout: %s\n", cfg.Timeouts.Request)
	fmt.Printf("Output: %s\n", cfg.Output.Type)

	// Output:
	// API URL: https://app.leaflink.com/api/v2
	// Request Timeout: 30s
	// Output: singer
}

// ExampleTapConfig_Validate shows that a missing API key is rejected
// before any request is attempted.
func ExampleTapConfig_Validate() {
	cfg := config.NewTapConfig()

	err := cfg.Validate()
	fmt.Println(errors.IsType(err, errors.ErrorTypeConfig))

	cfg.APIKey = "app-key"
	cfg.APIURL = config.SandboxAPIURL
	cfg.StartDate = "2024-01-01"
	fmt.Println(cfg.Validate())

	// Output:
	// true
	// <nil>
}
