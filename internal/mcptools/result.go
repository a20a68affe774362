package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// doc is the JSON document every tool returns.
type doc map[string]any

// result encodes d as the tool result.
func result(d doc) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(map[string]any(d))
}

// failure is a result for a call that could not be carried out.
func failure(message string, err error) (*mcp.CallToolResult, error) {
	d := doc{"success": false, "message": message}
	if err != nil {
		d["error"] = err.Error()
	} else {
		d["error"] = message
	}
	res, encErr := result(d)
	if encErr != nil {
		return nil, encErr
	}
	res.IsError = true
	return res, nil
}

// qosArg reads an optional QoS argument, defaulting to def.
func qosArg(req mcp.CallToolRequest, def int) (byte, bool) {
	qos := req.GetInt("qos", def)
	if qos < 0 || qos > 2 {
		return 0, false
	}
	return byte(qos), true
}
