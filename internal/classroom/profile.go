// Package classroom describes the classroom device set: its topics, the
// sensor and status topics subscribed at startup, and how AC status is
// assembled from several status topics.
package classroom

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/command"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/query"
)

// Default sensor identities used when a payload does not name its sensor.
const (
	TemperatureSensorID = "classroom-temp-sensor"
	HumiditySensorID    = "classroom-humidity-sensor"
	ACDeviceID          = "classroom-ac"
)

// AC status field names, tried in order.
var (
	PowerFields      = []string{"power", "status", "ac_status"}
	TargetTempFields = []string{"target_temperature", "temperature"}
)

// subscribeQoS is used for every profile topic.
const subscribeQoS byte = 1

// Subscriber adds entries to the session subscription set.
type Subscriber interface {
	Subscribe(ctx context.Context, filter string, qos byte) error
}

// Profile is one classroom's device topics and AC limits.
type Profile struct {
	ID       string
	DeviceID string
	Topics   mqtt.Topics
	TempMin  float64
	TempMax  float64

	autoSubscribe bool
}

// NewProfile builds a Profile from the classroom configuration.
func NewProfile(cfg config.ClassroomConfig) Profile {
	return Profile{
		ID:            cfg.ID,
		DeviceID:      cfg.DeviceID,
		Topics:        mqtt.Topics{Prefix: cfg.TopicPrefix},
		TempMin:       cfg.ACTempMin,
		TempMax:       cfg.ACTempMax,
		autoSubscribe: cfg.AutoSubscribe,
	}
}

// SubscribeTopics returns the sensor and AC status topics.
func (p Profile) SubscribeTopics() []string {
	return []string{
		p.Topics.Temperature(),
		p.Topics.Humidity(),
		p.Topics.ACPowerStatus(),
		p.Topics.ACTemperatureStatus(),
	}
}

// AutoSubscribe adds every sensor and status topic to the subscription set
// when auto-subscribe is enabled. Entries are queued until the session is
// connected, so this is safe to call right after Start.
func (p Profile) AutoSubscribe(ctx context.Context, sub Subscriber) error {
	if !p.autoSubscribe {
		return nil
	}
	var errs []error
	for _, topic := range p.SubscribeTopics() {
		if err := sub.Subscribe(ctx, topic, subscribeQoS); err != nil {
			errs = append(errs, fmt.Errorf("subscribing %s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}

// ACStatusSources lists the status topics reconciled into the AC status.
func (p Profile) ACStatusSources() []query.StatusSource {
	return []query.StatusSource{
		{Name: "power", Topic: p.Topics.ACPowerStatus(), Fields: PowerFields},
		{Name: "temperature", Topic: p.Topics.ACTemperatureStatus(), Fields: TargetTempFields},
	}
}

// CommandConfig returns the dispatcher settings for the AC controller.
func (p Profile) CommandConfig(cfg config.CommandsConfig) command.Config {
	return command.Config{
		Topic:     p.Topics.ACControl(),
		DeviceID:  p.DeviceID,
		TempMin:   p.TempMin,
		TempMax:   p.TempMax,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	}
}
