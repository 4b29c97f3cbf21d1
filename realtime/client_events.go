package realtime

import "encoding/base64"

// ClientEvent is a message sent to the server.
type ClientEvent struct {
	Type    string            `json:"type"`
	EventID string            `json:"event_id,omitempty"`
	Session *SessionConfig    `json:"session,omitempty"`
	Audio   string            `json:"audio,omitempty"`
	Item    *ConversationItem `json:"item,omitempty"`
}

// ConversationItem is the item payload of conversation.item.create.
type ConversationItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

// SessionUpdate configures voice, instructions, tools and turn detection.
func SessionUpdate(cfg SessionConfig) ClientEvent {
	return ClientEvent{Type: "session.update", Session: &cfg}
}

// AppendAudio carries one base64 encoded PCM buffer.
func AppendAudio(pcm []byte) ClientEvent {
	return ClientEvent{Type: "input_audio_buffer.append", Audio: base64.StdEncoding.EncodeToString(pcm)}
}

func CommitAudio() ClientEvent {
	return ClientEvent{Type: "input_audio_buffer.commit"}
}

func CreateResponse() ClientEvent {
	return ClientEvent{Type: "response.create"}
}

// FunctionCallOutput answers a function call. output is a JSON document.
func FunctionCallOutput(callID, output string) ClientEvent {
	return ClientEvent{
		Type: "conversation.item.create",
		Item: &ConversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	}
}
