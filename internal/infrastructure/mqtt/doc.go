// Package mqtt provides MQTT broker connectivity for the MCP server.
//
// This package manages:
//   - Opening broker connections (Dialer.Dial) over TCP or TLS
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Topic name and filter validation
//
// # Architecture
//
// A Conn is one connection and never reconnects by itself. Reconnection,
// backoff and subscription replay belong to the session controller, which
// dials a fresh Conn after every loss:
//
//	session.Controller → Dialer.Dial → Conn ↔ MQTT Broker
//
// All inbound messages, for every filter, arrive through Handlers.OnMessage
// in arrival order.
//
// # Security Considerations
//
//   - Enable TLS for any broker outside the local network (tls.enabled=true)
//   - tls.verify_certs=false disables certificate checks; development only
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	tlsConfig, err := mqtt.NewTLSConfig(cfg.MQTT.TLS)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dialer := mqtt.NewDialer(cfg.MQTT, tlsConfig)
//	conn, err := dialer.Dial(ctx, mqtt.Handlers{
//	    OnMessage: func(msg mqtt.Message) {
//	        log.Printf("Received: %s = %s", msg.Topic, msg.Payload)
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	topics := mqtt.Topics{Prefix: "classroom"}
//	conn.Subscribe(ctx, topics.Temperature(), 1)
//	conn.Publish(ctx, topics.ACControl(), []byte(`{"command":"set_power","value":true}`), 1, false)
package mqtt
