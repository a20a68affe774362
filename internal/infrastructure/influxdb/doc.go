// Package influxdb exports MQTT traffic telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// # Purpose
//
// The export is a write-only side channel; nothing is read back. It records:
//   - One mqtt_message point per received message (size, QoS, retain flag and
//     the numeric or boolean top-level fields of a JSON payload)
//   - One mqtt_command point per device command dispatch attempt
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	store.SetObserver(func(rec history.Record) {
//	    client.WriteMessage(rec.Topic, rec.Payload, rec.QoS, rec.Retained, rec.ReceivedAt)
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes are non-blocking; batch errors are delivered to the SetOnError
// callback. Connection and health check errors are returned directly.
package influxdb
