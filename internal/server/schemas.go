package server

import "encoding/json"

// Tool schemas are written by hand. The SDK's generated schemas use
// "type": ["null", "object"], which strict MCP clients reject.

// startAuthFlowInputSchema is the input schema for start-auth-flow.
var startAuthFlowInputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"currentPath": {
			"type": "string",
			"description": "Current opened file's absolute path. If no file is opened, use the project root path"
		}
	},
	"required": ["currentPath"],
	"additionalProperties": false
}`)
