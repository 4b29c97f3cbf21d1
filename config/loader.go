package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/EasterCompany/dex-voice-bridge/realtime"
)

// osUserHomeDir is swapped in tests.
var osUserHomeDir = os.UserHomeDir

// Dir is ~/Dexter/config.
func Dir() (string, error) {
	home, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, "Dexter", "config"), nil
}

// ExpandPath resolves a leading "~/" against the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// LoadAllConfigs reads every config file, creating missing ones with
// defaults, then applies environment overrides.
func LoadAllConfigs() (*AllConfig, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create config directory: %w", err)
	}

	mainCfg := defaultMainConfig()
	if err := loadOrCreate(dir, "config.json", mainCfg); err != nil {
		return nil, err
	}
	defaults := defaultMainConfig()
	if mainCfg.DiscordConfig == "" {
		mainCfg.DiscordConfig = defaults.DiscordConfig
	}
	if mainCfg.BridgeConfig == "" {
		mainCfg.BridgeConfig = defaults.BridgeConfig
	}
	if mainCfg.RealtimeConfig == "" {
		mainCfg.RealtimeConfig = defaults.RealtimeConfig
	}
	if mainCfg.RedisConfig == "" {
		mainCfg.RedisConfig = defaults.RedisConfig
	}

	all := &AllConfig{
		Main:     mainCfg,
		Discord:  defaultDiscordConfig(),
		Bridge:   defaultBridgeConfig(),
		Realtime: defaultRealtimeConfig(),
		Redis:    defaultRedisConfig(),
	}
	files := []struct {
		name string
		v    any
	}{
		{mainCfg.DiscordConfig, all.Discord},
		{mainCfg.BridgeConfig, all.Bridge},
		{mainCfg.RealtimeConfig, all.Realtime},
		{mainCfg.RedisConfig, all.Redis},
	}
	for _, f := range files {
		if err := loadOrCreate(dir, f.name, f.v); err != nil {
			return nil, err
		}
	}

	applyEnv(all)
	return all, nil
}

// loadOrCreate decodes dir/name over v, which already holds the defaults.
// A missing file is written out from v.
func loadOrCreate(dir, name string, v any) error {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("could not encode default config %s: %w", name, err)
		}
		if err := os.WriteFile(path, out, 0644); err != nil {
			return fmt.Errorf("could not create config file %s: %w", name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read config file %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("could not decode config file %s: %w", name, err)
	}
	return nil
}

func applyEnv(all *AllConfig) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		all.Realtime.APIKey = key
	}
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		all.Discord.Token = token
	}
}

// Validate reports every problem that would stop the service from working.
func (c *AllConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Discord.Token) == "" {
		errs = append(errs, errors.New("discord token is not set (discord.json or DISCORD_TOKEN)"))
	}
	if strings.TrimSpace(c.Realtime.APIKey) == "" {
		errs = append(errs, errors.New("realtime api key is not set (realtime.json or OPENAI_API_KEY)"))
	}
	if c.Bridge.DefaultVoice != "" && !realtime.ValidVoice(c.Bridge.DefaultVoice) {
		errs = append(errs, fmt.Errorf("default_voice %q is not one of %s", c.Bridge.DefaultVoice, strings.Join(realtime.Voices, ", ")))
	}
	if c.Bridge.MuteMaxSeconds > 0 && c.Bridge.MuteDefaultSeconds > c.Bridge.MuteMaxSeconds {
		errs = append(errs, fmt.Errorf("mute_default_seconds %d exceeds mute_max_seconds %d", c.Bridge.MuteDefaultSeconds, c.Bridge.MuteMaxSeconds))
	}
	if t := c.Realtime.TurnDetection.Threshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("turn_detection.threshold %g is outside 0..1", t))
	}
	if s := c.Realtime.Speed; s != 0 && (s < 0.25 || s > 1.5) {
		errs = append(errs, fmt.Errorf("speed %g is outside 0.25..1.5", s))
	}
	if c.Bridge.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is empty"))
	}
	return errors.Join(errs...)
}
