package mqtt

import (
	"errors"
	"strings"
	"testing"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "classroom"}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Temperature", topics.Temperature(), "classroom/temperature"},
		{"Humidity", topics.Humidity(), "classroom/humidity"},
		{"ACControl", topics.ACControl(), "classroom/control/ac"},
		{"ACPowerStatus", topics.ACPowerStatus(), "classroom/ac/power/status"},
		{"ACTemperatureStatus", topics.ACTemperatureStatus(), "classroom/ac/temperature/status"},
		{"All", topics.All(), "classroom/#"},
		{"trailing slash", Topics{Prefix: "lab/"}.Humidity(), "lab/humidity"},
		{"empty prefix", Topics{}.Temperature(), "temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		topic string
		valid bool
	}{
		{"classroom/temperature", true},
		{"/leading/slash", true},
		{"a", true},
		{"", false},
		{"classroom/+", false},
		{"classroom/#", false},
		{"bad\x00topic", false},
		{string([]byte{0xff, 0xfe}), false},
		{strings.Repeat("a", maxTopicLength+1), false},
	}

	for _, tt := range tests {
		err := ValidateTopic(tt.topic)
		if tt.valid && err != nil {
			t.Errorf("ValidateTopic(%q) error = %v, want nil", tt.topic, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ValidateTopic(%q) error = %v, want ErrInvalidTopic", tt.topic, err)
		}
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		filter string
		valid  bool
	}{
		{"classroom/temperature", true},
		{"#", true},
		{"+", true},
		{"classroom/#", true},
		{"classroom/+/status", true},
		{"+/+/#", true},
		{"", false},
		{"classroom/#/status", false},
		{"classroom#", false},
		{"classroom/temp+", false},
		{"classroom/+x/status", false},
	}

	for _, tt := range tests {
		err := ValidateFilter(tt.filter)
		if tt.valid && err != nil {
			t.Errorf("ValidateFilter(%q) error = %v, want nil", tt.filter, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ValidateFilter(%q) error = %v, want ErrInvalidTopic", tt.filter, err)
		}
	}
}

func TestIsWildcard(t *testing.T) {
	if IsWildcard("classroom/temperature") {
		t.Error("IsWildcard(literal) = true, want false")
	}
	if !IsWildcard("classroom/+/status") || !IsWildcard("classroom/#") {
		t.Error("IsWildcard(filter) = false, want true")
	}
}
