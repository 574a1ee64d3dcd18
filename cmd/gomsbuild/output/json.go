package output

import (
	"encoding/json"
	"io"
	"time"
)

// JSON output types matching the schema contract

// EvaluateOutput represents the JSON output for the evaluate command
type EvaluateOutput struct {
	SchemaVersion string             `json:"schemaVersion"`
	Project       string             `json:"project"`
	ToolsVersion  string             `json:"toolsVersion"`
	Properties    []EvaluatedProp    `json:"properties"`
	Items         []EvaluatedItem    `json:"items"`
	ElapsedMs     int64              `json:"elapsedMs"`
}

// EvaluatedProp represents one evaluated property in JSON output
type EvaluatedProp struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Global bool   `json:"global,omitempty"`
}

// EvaluatedItem represents one evaluated item in JSON output
type EvaluatedItem struct {
	ItemType string            `json:"itemType"`
	Include  string            `json:"include"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TargetsOutput represents the JSON output for the targets command
type TargetsOutput struct {
	SchemaVersion  string       `json:"schemaVersion"`
	Project        string       `json:"project"`
	DefaultTargets []string     `json:"defaultTargets"`
	InitialTargets []string     `json:"initialTargets"`
	Targets        []TargetInfo `json:"targets"`
	Plan           []string     `json:"plan,omitempty"`
	ElapsedMs      int64        `json:"elapsedMs"`
}

// TargetInfo represents one registered target in JSON output
type TargetInfo struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"dependsOn,omitempty"`
	Before    []string `json:"beforeTargets,omitempty"`
	After     []string `json:"afterTargets,omitempty"`
	Condition string   `json:"condition,omitempty"`
}

// WriteJSON writes a JSON object to the specified writer (typically stdout)
// When --format json is used, ALL JSON goes to stdout and ALL messages go to stderr
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// MeasureElapsed returns elapsed time in milliseconds since start
func MeasureElapsed(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// CurrentSchemaVersion is the schema version for all JSON outputs
const CurrentSchemaVersion = "1.0.0"
