package bridge

import (
	"strings"

	"github.com/EasterCompany/dex-voice-bridge/notes"
	"github.com/EasterCompany/dex-voice-bridge/realtime"
)

const toolGuidance = "Available tools: 1) Use 'end_call' when users want to stop/hang up. " +
	"2) Use 'mute_self' to pause and listen when you need to think or let the user speak uninterrupted. " +
	"3) Use 'take_notes' to save important information, decisions, or action items from the conversation."

func (s *Session) sessionConfig() realtime.SessionConfig {
	td := s.cfg.TurnDetection
	return realtime.SessionConfig{
		Type:             "realtime",
		Model:            s.cfg.Model,
		OutputModalities: []string{"audio"},
		Audio: &realtime.AudioConfig{
			Input: &realtime.AudioInput{TurnDetection: &td},
			Output: &realtime.AudioOutput{
				Voice: s.opts.Voice,
				Speed: s.cfg.Speed,
			},
		},
		Tools:        toolDeclarations(),
		ToolChoice:   "auto",
		Instructions: strings.TrimSpace(s.opts.Instructions) + " " + toolGuidance,
	}
}

func toolDeclarations() []realtime.Tool {
	categories := make([]string, len(notes.Categories))
	for i, c := range notes.Categories {
		categories[i] = string(c)
	}

	return []realtime.Tool{
		{
			Type:        "function",
			Name:        FuncEndCall,
			Description: "End the current voice call session when the user asks to stop, hang up, or end the call.",
			Parameters: realtime.ToolParameters{
				Type:   "object",
				Strict: true,
				Properties: map[string]realtime.Property{
					"reason": {Type: "string", Description: "The reason for ending the call (e.g., 'user requested', 'conversation complete')"},
				},
				Required: []string{"reason"},
			},
		},
		{
			Type:        "function",
			Name:        FuncMuteSelf,
			Description: "Temporarily mute yourself (stop speaking) while continuing to listen to the user. Use when you need to pause, think, or let the user speak uninterrupted.",
			Parameters: realtime.ToolParameters{
				Type:   "object",
				Strict: true,
				Properties: map[string]realtime.Property{
					"duration_seconds": {Type: "number", Description: "How long to stay muted in seconds (default: 5, max: 30)"},
					"reason":           {Type: "string", Description: "Why you're muting (e.g., 'thinking', 'letting user speak', 'processing')"},
				},
				Required: []string{"reason"},
			},
		},
		{
			Type:        "function",
			Name:        FuncTakeNotes,
			Description: "Save important points, decisions, or action items from the conversation for later reference.",
			Parameters: realtime.ToolParameters{
				Type:   "object",
				Strict: true,
				Properties: map[string]realtime.Property{
					"note_content": {Type: "string", Description: "The important information to save"},
					"category":     {Type: "string", Description: "Type of note being saved", Enum: categories},
				},
				Required: []string{"note_content", "category"},
			},
		},
	}
}
