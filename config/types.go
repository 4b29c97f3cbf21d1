package config

// MainConfig is config.json. It names the other files.
type MainConfig struct {
	DiscordConfig  string `json:"discord_config"`
	BridgeConfig   string `json:"bridge_config"`
	RealtimeConfig string `json:"realtime_config"`
	RedisConfig    string `json:"redis_config"`
}

type DiscordConfig struct {
	Token        string `json:"token"`
	LogChannelID string `json:"log_channel_id"`
}

// BridgeConfig holds session behaviour and local paths.
type BridgeConfig struct {
	DefaultVoice        string `json:"default_voice"`
	DefaultInstructions string `json:"default_instructions"`
	SilenceTimeoutMs    int    `json:"silence_timeout_ms"`
	EndCallGraceMs      int    `json:"end_call_grace_ms"`
	MuteDefaultSeconds  int    `json:"mute_default_seconds"`
	MuteMaxSeconds      int    `json:"mute_max_seconds"`
	NotesDir            string `json:"notes_dir"`
	EventsDumpPath      string `json:"events_dump_path"`
	CaptureDir          string `json:"capture_dir"`
	HTTPAddr            string `json:"http_addr"`
	NoteWorkers         int    `json:"note_workers"`
}

type TurnDetectionConfig struct {
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
	CreateResponse    bool    `json:"create_response"`
}

// RealtimeConfig is the AI endpoint. OPENAI_API_KEY overrides APIKey.
type RealtimeConfig struct {
	APIKey                  string              `json:"api_key"`
	URL                     string              `json:"url"`
	Model                   string              `json:"model"`
	Speed                   float64             `json:"speed"`
	HandshakeTimeoutSeconds int                 `json:"handshake_timeout_seconds"`
	TurnDetection           TurnDetectionConfig `json:"turn_detection"`
}

// RedisConfig is optional; an empty Addr disables the cache.
type RedisConfig struct {
	Addr                string `json:"addr"`
	Username            string `json:"username"`
	Password            string `json:"password"`
	DB                  int    `json:"db"`
	RecordingTTLMinutes int    `json:"recording_ttl_minutes"`
	MirrorLogs          bool   `json:"mirror_logs"`
}

// AllConfig is every loaded file.
type AllConfig struct {
	Main     *MainConfig
	Discord  *DiscordConfig
	Bridge   *BridgeConfig
	Realtime *RealtimeConfig
	Redis    *RedisConfig
}
