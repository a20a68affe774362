package mqtt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxTopicLength is the MQTT limit on topic names and filters, in bytes.
const maxTopicLength = 65535

// Topics provides builders for classroom MQTT topics under a prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{Prefix: "classroom"}
//	topics.Temperature()
//	// Returns: "classroom/temperature"
type Topics struct {
	Prefix string
}

// Temperature returns the topic the temperature sensor publishes on.
//
// Example: classroom/temperature
func (t Topics) Temperature() string {
	return t.join("temperature")
}

// Humidity returns the topic the humidity sensor publishes on.
//
// Example: classroom/humidity
func (t Topics) Humidity() string {
	return t.join("humidity")
}

// ACControl returns the topic AC commands are published to.
//
// Example: classroom/control/ac
func (t Topics) ACControl() string {
	return t.join("control/ac")
}

// ACPowerStatus returns the topic the AC reports its power state on.
//
// Example: classroom/ac/power/status
func (t Topics) ACPowerStatus() string {
	return t.join("ac/power/status")
}

// ACTemperatureStatus returns the topic the AC reports its target temperature on.
//
// Example: classroom/ac/temperature/status
func (t Topics) ACTemperatureStatus() string {
	return t.join("ac/temperature/status")
}

// All returns a filter matching every topic under the prefix.
//
// Example: classroom/#
func (t Topics) All() string {
	return t.join("#")
}

func (t Topics) join(suffix string) string {
	prefix := strings.TrimSuffix(t.Prefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}

// ValidateTopic checks a topic name used for publishing.
//
// A topic name must be non-empty valid UTF-8, contain no NUL character and
// no wildcard characters.
func ValidateTopic(topic string) error {
	if err := validateCommon(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in topic name %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateFilter checks a subscription topic filter.
//
// Rules:
//   - + must occupy an entire level
//   - # must occupy an entire level and be the last level
func ValidateFilter(filter string) error {
	if err := validateCommon(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: # must be the whole last level in %q", ErrInvalidTopic, filter)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: + must be a whole level in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}

// IsWildcard reports whether filter contains wildcard levels.
func IsWildcard(filter string) bool {
	return strings.ContainsAny(filter, "+#")
}

func validateCommon(topic string) error {
	switch {
	case topic == "":
		return fmt.Errorf("%w: cannot be empty", ErrInvalidTopic)
	case len(topic) > maxTopicLength:
		return fmt.Errorf("%w: exceeds %d bytes", ErrInvalidTopic, maxTopicLength)
	case !utf8.ValidString(topic):
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidTopic)
	case strings.ContainsRune(topic, 0):
		return fmt.Errorf("%w: contains NUL", ErrInvalidTopic)
	}
	return nil
}
