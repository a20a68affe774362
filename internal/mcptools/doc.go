// Package mcptools exposes the session, history, command and management
// operations as Model Context Protocol tools.
//
// Every tool is a thin caller of another package. Each returns a JSON
// document with at least "success" and "message"; call failures add an
// "error" field and mark the result as an error result. No tool panics or
// returns a protocol error for a domain failure.
//
// Tool groups:
//   - Session: subscribe_mqtt_topic, unsubscribe_mqtt_topic,
//     get_subscribed_topics, get_mqtt_messages, get_session_status
//   - Management API: publish_mqtt_message, list_mqtt_clients,
//     get_mqtt_client, kick_mqtt_client
//   - Classroom: get_temperature, get_humidity, get_ac_status,
//     set_ac_power, set_ac_temperature
//
// The server runs over stdio (ServeStdio) or streamable HTTP (HTTPHandler).
package mcptools
