package mcptools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/history"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/session"
)

const defaultMessageLimit = 10

func (s *Server) registerSessionTools() {
	s.mcp.AddTool(mcp.NewTool("subscribe_mqtt_topic",
		mcp.WithDescription("Subscribe to an MQTT topic filter. Wildcards such as classroom/# and classroom/+/temperature are allowed. "+
			"The subscription is kept across reconnects."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic filter")),
		mcp.WithNumber("qos", mcp.Description("Quality of service: 0, 1 or 2 (default 0)")),
	), s.subscribeTopic)

	s.mcp.AddTool(mcp.NewTool("unsubscribe_mqtt_topic",
		mcp.WithDescription("Remove a topic filter from the subscription set"),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic filter, exactly as subscribed")),
	), s.unsubscribeTopic)

	s.mcp.AddTool(mcp.NewTool("get_subscribed_topics",
		mcp.WithDescription("List the current subscription set"),
	), s.subscribedTopics)

	s.mcp.AddTool(mcp.NewTool("get_mqtt_messages",
		mcp.WithDescription("Read received MQTT messages, newest first"),
		mcp.WithString("topic", mcp.Description("Only topics containing this text")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of messages (default 10)")),
		mcp.WithNumber("since_minutes", mcp.Description("Only messages received in the last N minutes")),
	), s.messages)

	s.mcp.AddTool(mcp.NewTool("get_session_status",
		mcp.WithDescription("Report the broker connection state and subscription count"),
	), s.sessionStatus)
}

func (s *Server) subscribeTopic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := req.GetString("topic", "")
	if topic == "" {
		return failure("Missing required parameter: topic", nil)
	}
	qos, ok := qosArg(req, 0)
	if !ok {
		return failure("QoS must be 0, 1 or 2", session.ErrInvalidQoS)
	}

	if err := s.deps.Session.Subscribe(ctx, topic, qos); err != nil {
		s.logger.Warn("subscribe failed", "topic", topic, "error", err)
		return failure(fmt.Sprintf("Failed to subscribe to topic %s", topic), err)
	}

	state := s.deps.Session.State()
	message := fmt.Sprintf("Successfully subscribed to topic: %s", topic)
	if state != session.Connected {
		message = fmt.Sprintf("Subscription to %s recorded; it will be sent when the session connects (state %s)", topic, state)
	}
	return result(doc{
		"success":       true,
		"message":       message,
		"topic":         topic,
		"qos":           qos,
		"session_state": state,
	})
}

func (s *Server) unsubscribeTopic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := req.GetString("topic", "")
	if topic == "" {
		return failure("Missing required parameter: topic", nil)
	}

	err := s.deps.Session.Unsubscribe(ctx, topic)
	switch {
	case errors.Is(err, session.ErrNotSubscribed):
		return result(doc{
			"success": false,
			"message": fmt.Sprintf("Not subscribed to topic: %s", topic),
			"topic":   topic,
		})
	case errors.Is(err, session.ErrUnsubscribeFailed):
		// The entry is gone locally even though the broker did not confirm.
		s.logger.Warn("unsubscribe not confirmed by broker", "topic", topic, "error", err)
		return result(doc{
			"success": true,
			"message": fmt.Sprintf("Unsubscribed from topic %s locally; the broker did not confirm", topic),
			"topic":   topic,
			"warning": err.Error(),
		})
	case err != nil:
		return failure(fmt.Sprintf("Failed to unsubscribe from topic %s", topic), err)
	}

	return result(doc{
		"success": true,
		"message": fmt.Sprintf("Successfully unsubscribed from topic: %s", topic),
		"topic":   topic,
	})
}

func (s *Server) subscribedTopics(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subs := s.deps.Session.Subscriptions()
	return result(doc{
		"success":           true,
		"message":           fmt.Sprintf("%d subscribed topic(s)", len(subs)),
		"subscribed_topics": subs,
		"count":             len(subs),
	})
}

func (s *Server) messages(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultMessageLimit)
	if limit < 0 {
		return failure("limit must not be negative", nil)
	}
	since := req.GetInt("since_minutes", 0)
	if since < 0 {
		return failure("since_minutes must not be negative", nil)
	}

	snap := s.deps.Query.History(history.Filter{
		Topic: req.GetString("topic", ""),
		Limit: limit,
		Since: time.Duration(since) * time.Minute,
	})
	return result(doc{
		"success":       true,
		"message":       fmt.Sprintf("%d message(s)", snap.Count),
		"messages":      snap.Records,
		"count":         snap.Count,
		"total_topics":  snap.TotalTopics,
		"session_state": snap.SessionState,
	})
}

func (s *Server) sessionStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.deps.Session.Status()
	return result(doc{
		"success": true,
		"message": fmt.Sprintf("Session %s (broker %s)", st.State, st.Broker),
		"status":  st,
	})
}
