package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/classroom"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/command"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/query"
)

// reading describes one sensor tool.
type reading struct {
	label    string // human name used in messages
	field    string
	unit     string
	sensorID string
}

func (s *Server) registerClassroomTools() {
	lo, hi := s.deps.Commands.Range()

	s.mcp.AddTool(mcp.NewTool("get_temperature",
		mcp.WithDescription("Get the latest classroom temperature"),
	), s.sensorTool(func() string { return s.deps.Profile.Topics.Temperature() }, reading{
		label: "temperature", field: "temperature", unit: "°C", sensorID: classroom.TemperatureSensorID,
	}))

	s.mcp.AddTool(mcp.NewTool("get_humidity",
		mcp.WithDescription("Get the latest classroom humidity"),
	), s.sensorTool(func() string { return s.deps.Profile.Topics.Humidity() }, reading{
		label: "humidity", field: "humidity", unit: "%", sensorID: classroom.HumiditySensorID,
	}))

	s.mcp.AddTool(mcp.NewTool("get_ac_status",
		mcp.WithDescription("Get the classroom air conditioner power and target temperature"),
	), s.acStatus)

	s.mcp.AddTool(mcp.NewTool("set_ac_power",
		mcp.WithDescription("Switch the classroom air conditioner on or off"),
		mcp.WithBoolean("power", mcp.Required(), mcp.Description("true to switch on, false to switch off")),
	), s.setACPower)

	s.mcp.AddTool(mcp.NewTool("set_ac_temperature",
		mcp.WithDescription(fmt.Sprintf("Set the classroom air conditioner target temperature (%g-%g°C)", lo, hi)),
		mcp.WithNumber("temperature", mcp.Required(), mcp.Description("Target temperature in °C"), mcp.Min(lo), mcp.Max(hi)),
	), s.setACTemperature)
}

func (s *Server) sensorTool(topic func() string, r reading) mcpserver.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		v := s.deps.Query.LatestValue(topic(), r.field)

		switch v.Status {
		case query.StatusOK:
			unit := v.String("unit", r.unit)
			return result(doc{
				"success":   true,
				r.field:     v.Value,
				"unit":      unit,
				"timestamp": v.ReceivedAt,
				"sensor_id": v.String("sensor_id", r.sensorID),
				"message":   fmt.Sprintf("Current classroom %s: %v%s", r.label, v.Value, unit),
			})
		case query.StatusNoData:
			state := s.deps.Query.SessionState()
			return result(doc{
				"success":     false,
				"mqtt_status": state,
				"message": fmt.Sprintf("No %s data yet (MQTT status: %s). Waiting for the sensor to publish.",
					r.label, state),
			})
		case query.StatusMalformed:
			return result(doc{
				"success":   false,
				"raw_data":  v.Raw,
				"timestamp": v.ReceivedAt,
				"message":   fmt.Sprintf("The %s payload is not valid JSON", r.label),
			})
		default:
			if v.Error != "" {
				return result(doc{
					"success":   false,
					"error":     v.Error,
					"timestamp": v.ReceivedAt,
					"message":   fmt.Sprintf("The %s sensor reported an error", r.label),
				})
			}
			return result(doc{
				"success":   false,
				"raw_data":  v.Raw,
				"timestamp": v.ReceivedAt,
				"message":   fmt.Sprintf("Unexpected %s payload format", r.label),
			})
		}
	}
}

func (s *Server) acStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ds := s.deps.Query.DeviceStatus(s.deps.Profile.ACStatusSources())

	status := doc{}
	var parts []string
	if v := ds.Fields["power"]; v.Status != query.StatusNoData {
		if v.Found {
			status["power"] = doc{
				"status":    v.Value,
				"timestamp": v.ReceivedAt,
				"device_id": v.String("device_id", classroom.ACDeviceID),
			}
			parts = append(parts, "power "+powerWord(v.Value))
		} else {
			d := statusProblem(v, "power status")
			status["power"] = d
			parts = append(parts, fmt.Sprintf("power status unavailable (%s)", d["message"]))
		}
	}
	if v := ds.Fields["temperature"]; v.Status != query.StatusNoData {
		if v.Found {
			unit := v.String("unit", "°C")
			status["temperature"] = doc{
				"target_temperature": v.Value,
				"unit":               unit,
				"timestamp":          v.ReceivedAt,
				"device_id":          v.String("device_id", classroom.ACDeviceID),
			}
			parts = append(parts, fmt.Sprintf("target temperature %v%s", v.Value, unit))
		} else {
			d := statusProblem(v, "temperature status")
			status["temperature"] = d
			parts = append(parts, fmt.Sprintf("temperature status unavailable (%s)", d["message"]))
		}
	}

	if len(status) == 0 {
		return result(doc{
			"success":     false,
			"mqtt_status": ds.SessionState,
			"message": fmt.Sprintf("No AC status data yet (MQTT status: %s). Wait for the controller to report or send a command first.",
				ds.SessionState),
		})
	}

	return result(doc{
		"success":   true,
		"status":    status,
		"available": ds.Available,
		"missing":   ds.Missing,
		"device":    s.deps.Profile.DeviceID,
		"message":   "AC status: " + strings.Join(parts, ", "),
	})
}

// statusProblem describes a status topic whose latest payload has no usable value.
func statusProblem(v query.Value, label string) doc {
	d := doc{"success": false, "timestamp": v.ReceivedAt}
	switch {
	case v.Status == query.StatusMalformed:
		d["raw_data"] = v.Raw
		d["message"] = label + " payload is not valid JSON"
	case v.Error != "":
		d["error"] = v.Error
		d["message"] = label + " reported an error"
	default:
		d["raw_data"] = v.Raw
		d["message"] = "unexpected " + label + " payload format"
	}
	return d
}

func powerWord(v any) string {
	switch p := v.(type) {
	case bool:
		if p {
			return "on"
		}
		return "off"
	default:
		return fmt.Sprint(p)
	}
}

func (s *Server) setACPower(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	on, err := req.RequireBool("power")
	if err != nil {
		return failure("Missing or invalid parameter: power", err)
	}

	res, err := s.deps.Commands.SetPower(ctx, on)
	if err != nil {
		return s.commandFailure(err)
	}
	return result(doc{
		"success": true,
		"message": "Air conditioner switched " + powerWord(on),
		"command": res.Document,
		"id":      res.ID,
	})
}

func (s *Server) setACTemperature(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value, err := req.RequireFloat("temperature")
	if err != nil {
		return failure("Missing or invalid parameter: temperature", err)
	}

	res, err := s.deps.Commands.SetTargetTemperature(ctx, value)
	if err != nil {
		return s.commandFailure(err)
	}
	return result(doc{
		"success": true,
		"message": fmt.Sprintf("Air conditioner target temperature set to %g°C", value),
		"command": res.Document,
		"id":      res.ID,
	})
}

// commandFailure reports a dispatch error. Retryable errors carry the
// session state so the caller knows to try again later.
func (s *Server) commandFailure(err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, command.ErrOutOfRange):
		lo, hi := s.deps.Commands.Range()
		return failure(fmt.Sprintf("Temperature must be between %g and %g°C", lo, hi), err)
	case command.IsRetryable(err):
		state := s.deps.Query.SessionState()
		res, encErr := result(doc{
			"success":     false,
			"retryable":   true,
			"mqtt_status": state,
			"error":       err.Error(),
			"message":     fmt.Sprintf("Command not sent (MQTT status: %s); try again shortly", state),
		})
		if encErr != nil {
			return nil, encErr
		}
		res.IsError = true
		return res, nil
	default:
		s.logger.Error("command failed", "error", err)
		return failure("Failed to send command", err)
	}
}
