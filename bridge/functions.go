package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Function names the AI can call.
const (
	FuncEndCall   = "end_call"
	FuncMuteSelf  = "mute_self"
	FuncTakeNotes = "take_notes"
	funcUnknown   = "unknown"
)

// FunctionCall is a decoded call: EndCall, MuteSelf, TakeNotes or UnknownCall.
type FunctionCall interface {
	FunctionName() string
}

type EndCall struct {
	Reason string `json:"reason"`
}

type MuteSelf struct {
	DurationSeconds *float64 `json:"duration_seconds"`
	Reason          string   `json:"reason"`
}

type TakeNotes struct {
	NoteContent string `json:"note_content"`
	Category    string `json:"category"`
}

// UnknownCall carries a call whose name is not recognised.
type UnknownCall struct {
	Name      string
	Arguments string
}

func (EndCall) FunctionName() string       { return FuncEndCall }
func (MuteSelf) FunctionName() string      { return FuncMuteSelf }
func (TakeNotes) FunctionName() string     { return FuncTakeNotes }
func (c UnknownCall) FunctionName() string { return c.Name }

// DecodeFunctionCall validates the JSON arguments against the schema of the
// named function. An empty name falls back to inferFunctionName.
func DecodeFunctionCall(name, arguments string) (FunctionCall, error) {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(arguments), &fields); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if name == "" {
		name = inferFunctionName(fields)
	}

	switch name {
	case FuncEndCall:
		var c EndCall
		if err := json.Unmarshal([]byte(arguments), &c); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return c, nil
	case FuncMuteSelf:
		var c MuteSelf
		if err := json.Unmarshal([]byte(arguments), &c); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return c, nil
	case FuncTakeNotes:
		var c TakeNotes
		if err := json.Unmarshal([]byte(arguments), &c); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		if strings.TrimSpace(c.NoteContent) == "" {
			return nil, fmt.Errorf("invalid arguments for %s: note_content is required", name)
		}
		return c, nil
	default:
		return UnknownCall{Name: name, Arguments: arguments}, nil
	}
}

// inferFunctionName guesses a function from its argument fields. It is only
// used when neither the call start nor the done event named the function, and
// it stops working as soon as two functions share a distinguishing field.
func inferFunctionName(fields map[string]json.RawMessage) string {
	_, hasDuration := fields["duration_seconds"]
	_, hasNote := fields["note_content"]
	_, hasReason := fields["reason"]

	switch {
	case hasDuration:
		return FuncMuteSelf
	case hasNote:
		return FuncTakeNotes
	case hasReason:
		return FuncEndCall
	default:
		return funcUnknown
	}
}

// functionOutput is serialised into the function_call_output item.
type functionOutput struct {
	Success         bool     `json:"success"`
	Message         string   `json:"message,omitempty"`
	Error           string   `json:"error,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	NoteCount       *int     `json:"note_count,omitempty"`
}

func failure(format string, args ...any) functionOutput {
	return functionOutput{Success: false, Error: fmt.Sprintf(format, args...)}
}

func (o functionOutput) encode() string {
	data, err := json.Marshal(o)
	if err != nil {
		return `{"success":false,"error":"could not encode output"}`
	}
	return string(data)
}
