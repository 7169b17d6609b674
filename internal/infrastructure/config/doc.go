// Package config handles loading and validating Gray Logic hub configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Filling per-entry polling defaults from the coordinator section
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/hub.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range cfg.Entries {
//	    fmt.Println(e.ID, len(e.Categories))
//	}
package config
