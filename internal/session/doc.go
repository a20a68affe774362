// Package session owns the single long-lived MQTT broker connection.
//
// The Controller is an explicit state machine (Disconnected, Connecting,
// Connected, Failed). It connects in the background, retries with capped
// exponential backoff, records every inbound message into the history store
// and, after every successful (re)connect, replays the full subscription set
// before reporting Connected. Callers never manage the connection; they
// subscribe, unsubscribe and publish through the Controller and consult
// State() or Status().
//
// Publish never queues: while not Connected it fails fast with
// ErrNotConnected, which callers treat as retryable.
//
// Usage:
//
//	ctrl := session.New(mqtt.NewDialer(cfg.MQTT, tlsConfig), store, session.OptionsFromConfig(cfg.MQTT))
//	ctrl.SetLogger(logger.Component("session"))
//	ctrl.Start(ctx)
//	defer ctrl.Stop()
//
//	_ = ctrl.Subscribe(ctx, "classroom/temperature", 1) // queued until Connected
package session
