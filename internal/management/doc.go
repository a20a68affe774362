// Package management is a client for the EMQX HTTP management API (v5).
//
// It lists, inspects and disconnects broker clients and publishes messages
// over HTTP, independently of the MQTT session. Calls are stateless
// request/response; results are returned as generic JSON documents.
//
// Authentication uses HTTP Basic with an EMQX API key and secret.
//
// Usage:
//
//	client, err := management.New(cfg.Management)
//	if errors.Is(err, management.ErrNotConfigured) {
//	    // management tools disabled
//	}
//	doc, err := client.ListClients(ctx, management.ListClientsParams{Page: 1, Limit: 10})
package management
