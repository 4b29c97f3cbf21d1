package realtime

// Voices the realtime endpoint accepts. The first entry is the default.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// DefaultVoice is used when a caller does not choose one.
const DefaultVoice = "alloy"

// ValidVoice reports whether v is one of Voices.
func ValidVoice(v string) bool {
	for _, known := range Voices {
		if v == known {
			return true
		}
	}
	return false
}

// SessionConfig is the body of a session.update event.
type SessionConfig struct {
	Type             string       `json:"type"`
	Model            string       `json:"model,omitempty"`
	OutputModalities []string     `json:"output_modalities,omitempty"`
	Audio            *AudioConfig `json:"audio,omitempty"`
	Tools            []Tool       `json:"tools,omitempty"`
	ToolChoice       string       `json:"tool_choice,omitempty"`
	Instructions     string       `json:"instructions,omitempty"`
}

type AudioConfig struct {
	Input  *AudioInput  `json:"input,omitempty"`
	Output *AudioOutput `json:"output,omitempty"`
}

type AudioInput struct {
	TurnDetection *TurnDetection `json:"turn_detection,omitempty"`
}

// TurnDetection holds the server voice activity detection parameters.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
	CreateResponse    bool    `json:"create_response"`
}

type AudioOutput struct {
	Voice string  `json:"voice"`
	Speed float64 `json:"speed,omitempty"`
}

// Tool declares a function the model may call.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

type ToolParameters struct {
	Type       string              `json:"type"`
	Strict     bool                `json:"strict,omitempty"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}
