// Package config handles loading and validating the MQTT MCP server configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a .env file into the environment (existing variables win)
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and management API secrets should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - tls.verify_certs=false is for development brokers only
//
// Usage:
//
//	_ = config.LoadEnvFile(".env")
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.BrokerAddress())
package config
