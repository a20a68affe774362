package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/management"
)

const defaultClientPageSize = 100

func (s *Server) registerManagementTools() {
	s.mcp.AddTool(mcp.NewTool("publish_mqtt_message",
		mcp.WithDescription("Publish an MQTT message to the broker"),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic name (no wildcards)")),
		mcp.WithString("payload", mcp.Required(), mcp.Description("Message content")),
		mcp.WithNumber("qos", mcp.Description("Quality of service: 0, 1 or 2 (default 0)")),
		mcp.WithBoolean("retain", mcp.Description("Retain the message on the broker (default false)")),
	), s.publishMessage)

	s.mcp.AddTool(mcp.NewTool("list_mqtt_clients",
		mcp.WithDescription("List MQTT clients connected to the broker"),
		mcp.WithNumber("page", mcp.Description("Page number (default 1)")),
		mcp.WithNumber("limit", mcp.Description("Results per page, max 10000 (default 100)")),
		mcp.WithString("node", mcp.Description("Broker node name")),
		mcp.WithString("clientid", mcp.Description("Client ID")),
		mcp.WithString("username", mcp.Description("Username")),
		mcp.WithString("ip_address", mcp.Description("Client IP address")),
		mcp.WithString("conn_state", mcp.Description("Connection state: connected, idle or disconnected")),
		mcp.WithBoolean("clean_start", mcp.Description("Clean start flag")),
		mcp.WithString("proto_ver", mcp.Description("Protocol version")),
		mcp.WithString("like_clientid", mcp.Description("Fuzzy match on client ID")),
		mcp.WithString("like_username", mcp.Description("Fuzzy match on username")),
		mcp.WithString("like_ip_address", mcp.Description("Fuzzy match on IP address")),
	), s.listClients)

	s.mcp.AddTool(mcp.NewTool("get_mqtt_client",
		mcp.WithDescription("Get detailed information about an MQTT client by client ID"),
		mcp.WithString("clientid", mcp.Required(), mcp.Description("Client ID")),
	), s.getClient)

	s.mcp.AddTool(mcp.NewTool("kick_mqtt_client",
		mcp.WithDescription("Disconnect a client from the broker by client ID"),
		mcp.WithString("clientid", mcp.Required(), mcp.Description("Client ID")),
	), s.kickClient)
}

func (s *Server) publishMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := req.GetString("topic", "")
	if topic == "" {
		return failure("Missing required parameter: topic", nil)
	}
	payload, ok := req.GetArguments()["payload"]
	if !ok || payload == nil {
		return failure("Missing required parameter: payload", nil)
	}
	qos, ok := qosArg(req, 0)
	if !ok {
		return failure("QoS must be 0, 1 or 2", nil)
	}
	retain := req.GetBool("retain", false)
	body, err := payloadText(payload)
	if err != nil {
		return failure("payload must be a string or JSON value", err)
	}

	if s.deps.Management == nil {
		if err := s.deps.Session.Publish(ctx, topic, []byte(body), qos, retain); err != nil {
			return failure(fmt.Sprintf("Failed to publish to topic %s", topic), err)
		}
		return result(doc{
			"success": true,
			"message": fmt.Sprintf("Message published to topic: %s", topic),
			"topic":   topic,
			"qos":     qos,
			"retain":  retain,
			"via":     "session",
		})
	}

	res, err := s.deps.Management.Publish(ctx, management.PublishRequest{
		Topic:   topic,
		Payload: body,
		QoS:     int(qos),
		Retain:  retain,
	})
	if err != nil {
		s.logger.Warn("management publish failed", "topic", topic, "error", err)
		return failure(fmt.Sprintf("Failed to publish to topic %s", topic), err)
	}
	return merged(fmt.Sprintf("Message published to topic: %s", topic), res, doc{
		"topic": topic,
		"qos":   qos,
		"via":   "management",
	})
}

func (s *Server) listClients(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.deps.Management == nil {
		return failure("Broker management API is not configured", management.ErrNotConfigured)
	}

	params := management.ListClientsParams{
		Page:          req.GetInt("page", 1),
		Limit:         req.GetInt("limit", defaultClientPageSize),
		Node:          req.GetString("node", ""),
		ClientID:      req.GetString("clientid", ""),
		Username:      req.GetString("username", ""),
		IPAddress:     req.GetString("ip_address", ""),
		ConnState:     req.GetString("conn_state", ""),
		ProtoVer:      req.GetString("proto_ver", ""),
		LikeClientID:  req.GetString("like_clientid", ""),
		LikeUsername:  req.GetString("like_username", ""),
		LikeIPAddress: req.GetString("like_ip_address", ""),
	}
	if _, ok := req.GetArguments()["clean_start"]; ok {
		cleanStart := req.GetBool("clean_start", false)
		params.CleanStart = &cleanStart
	}

	res, err := s.deps.Management.ListClients(ctx, params)
	if err != nil {
		return failure("Failed to list MQTT clients", err)
	}
	return merged("Client list retrieved", res, nil)
}

func (s *Server) getClient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.deps.Management == nil {
		return failure("Broker management API is not configured", management.ErrNotConfigured)
	}
	clientID := req.GetString("clientid", "")
	if clientID == "" {
		return failure("Client ID is required", nil)
	}

	res, err := s.deps.Management.GetClient(ctx, clientID)
	if err != nil {
		return failure(fmt.Sprintf("Failed to get client %s", clientID), err)
	}
	return merged(fmt.Sprintf("Client info for %s retrieved", clientID), res, nil)
}

func (s *Server) kickClient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.deps.Management == nil {
		return failure("Broker management API is not configured", management.ErrNotConfigured)
	}
	clientID := req.GetString("clientid", "")
	if clientID == "" {
		return failure("Client ID is required", nil)
	}

	res, err := s.deps.Management.KickClient(ctx, clientID)
	if err != nil {
		return failure(fmt.Sprintf("Failed to disconnect client %s", clientID), err)
	}
	s.logger.Info("client disconnected via management API", "client_id", clientID)
	return merged(fmt.Sprintf("Client %s has been disconnected", clientID), res, nil)
}

// merged builds a success result from an API document. Fields of the API
// document keep their names; message is used only when the API sent none.
func merged(message string, api management.Document, extra doc) (*mcp.CallToolResult, error) {
	d := doc{}
	for k, v := range api {
		d[k] = v
	}
	for k, v := range extra {
		d[k] = v
	}
	d["success"] = true
	if _, ok := d["message"]; !ok {
		d["message"] = message
	}
	return result(d)
}

// payloadText returns a string payload as is and encodes anything else as JSON.
func payloadText(v any) (string, error) {
	if str, ok := v.(string); ok {
		return str, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
