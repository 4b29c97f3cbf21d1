// Package realtime is a client for the OpenAI realtime websocket protocol.
package realtime

import (
	"encoding/json"
	"fmt"
)

// EventKind classifies a server event so handlers can switch on it exhaustively.
type EventKind int

const (
	EventOther EventKind = iota
	EventSessionCreated
	EventSessionUpdated
	EventSpeechStarted
	EventSpeechStopped
	EventResponseCreated
	EventAudioDelta
	EventFunctionCallStarted
	EventFunctionCallArgumentsDelta
	EventFunctionCallArgumentsDone
	EventResponseDone
	EventError
)

var eventKindNames = map[EventKind]string{
	EventOther:                      "other",
	EventSessionCreated:             "session_created",
	EventSessionUpdated:             "session_updated",
	EventSpeechStarted:              "speech_started",
	EventSpeechStopped:              "speech_stopped",
	EventResponseCreated:            "response_created",
	EventAudioDelta:                 "audio_delta",
	EventFunctionCallStarted:        "function_call_started",
	EventFunctionCallArgumentsDelta: "function_call_arguments_delta",
	EventFunctionCallArgumentsDone:  "function_call_arguments_done",
	EventResponseDone:               "response_done",
	EventError:                      "error",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Wire names of the server events the bridge reacts to.
const (
	TypeSessionCreated         = "session.created"
	TypeSessionUpdated         = "session.updated"
	TypeSpeechStarted          = "input_audio_buffer.speech_started"
	TypeSpeechStopped          = "input_audio_buffer.speech_stopped"
	TypeResponseCreated        = "response.created"
	TypeAudioDelta             = "response.output_audio.delta"
	TypeAudioDeltaLegacy       = "response.audio.delta"
	TypeOutputItemAdded        = "response.output_item.added"
	TypeFunctionArgumentsDelta = "response.function_call_arguments.delta"
	TypeFunctionArgumentsDone  = "response.function_call_arguments.done"
	TypeResponseDone           = "response.done"
	TypeError                  = "error"
)

// Item is a conversation item as carried by output_item events.
type Item struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// APIError is the payload of an error event.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	EventID string `json:"event_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("realtime %s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("realtime %s: %s", e.Type, e.Message)
}

// ServerEvent is one decoded message from the server.
type ServerEvent struct {
	Kind EventKind `json:"-"`

	Type       string    `json:"type"`
	EventID    string    `json:"event_id,omitempty"`
	ResponseID string    `json:"response_id,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	CallID     string    `json:"call_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Delta      string    `json:"delta,omitempty"`
	Arguments  string    `json:"arguments,omitempty"`
	Item       *Item     `json:"item,omitempty"`
	Error      *APIError `json:"error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ParseServerEvent decodes a raw message and classifies it.
func ParseServerEvent(data []byte) (ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ServerEvent{}, fmt.Errorf("could not decode server event: %w", err)
	}
	if ev.Type == "" {
		return ServerEvent{}, fmt.Errorf("server event has no type")
	}
	ev.Raw = append(json.RawMessage(nil), data...)
	ev.Kind = classify(ev)
	return ev, nil
}

func classify(ev ServerEvent) EventKind {
	switch ev.Type {
	case TypeSessionCreated:
		return EventSessionCreated
	case TypeSessionUpdated:
		return EventSessionUpdated
	case TypeSpeechStarted:
		return EventSpeechStarted
	case TypeSpeechStopped:
		return EventSpeechStopped
	case TypeResponseCreated:
		return EventResponseCreated
	case TypeAudioDelta, TypeAudioDeltaLegacy:
		return EventAudioDelta
	case TypeOutputItemAdded:
		if ev.Item != nil && ev.Item.Type == "function_call" {
			return EventFunctionCallStarted
		}
		return EventOther
	case TypeFunctionArgumentsDelta:
		return EventFunctionCallArgumentsDelta
	case TypeFunctionArgumentsDone:
		return EventFunctionCallArgumentsDone
	case TypeResponseDone:
		return EventResponseDone
	case TypeError:
		return EventError
	default:
		return EventOther
	}
}
