package config

func defaultMainConfig() *MainConfig {
	return &MainConfig{
		DiscordConfig:  "discord.json",
		BridgeConfig:   "bridge.json",
		RealtimeConfig: "realtime.json",
		RedisConfig:    "redis.json",
	}
}

func defaultDiscordConfig() *DiscordConfig {
	return &DiscordConfig{}
}

func defaultBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		DefaultVoice:        "alloy",
		DefaultInstructions: "You are a helpful voice assistant in a Discord server. Be conversational and friendly. Keep responses concise but natural.",
		SilenceTimeoutMs:    1500,
		EndCallGraceMs:      2000,
		MuteDefaultSeconds:  5,
		MuteMaxSeconds:      30,
		NotesDir:            "~/Dexter/data/notes",
		EventsDumpPath:      "~/Dexter/data/events.json",
		HTTPAddr:            "127.0.0.1:8089",
		NoteWorkers:         1,
	}
}

func defaultRealtimeConfig() *RealtimeConfig {
	return &RealtimeConfig{
		URL:                     "wss://api.openai.com/v1/realtime",
		Model:                   "gpt-realtime",
		Speed:                   1.0,
		HandshakeTimeoutSeconds: 10,
		TurnDetection: TurnDetectionConfig{
			Threshold:         0.8,
			PrefixPaddingMs:   300,
			SilenceDurationMs: 1000,
			CreateResponse:    false,
		},
	}
}

func defaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:                "localhost:6379",
		RecordingTTLMinutes: 60,
	}
}
