// Package health formats component status lines for the boot report.
package health

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Pinger is anything with a liveness check.
type Pinger interface {
	Ping() error
}

// GetDiscordStatus checks and returns the status of the Discord connection as a formatted string.
func GetDiscordStatus(s *discordgo.Session) string {
	if s == nil {
		return "**ERROR**: `No session`"
	}
	if s.DataReady {
		return "**OK**"
	}
	return "**CONNECTING**"
}

// GetCacheStatus checks and returns the status of a cache connection as a formatted string.
func GetCacheStatus(c Pinger, configured bool) string {
	if !configured {
		return "`Not Configured`"
	}
	if c == nil {
		return "**ERROR**: `Initialization failed`"
	}
	if err := c.Ping(); err != nil {
		return fmt.Sprintf("**ERROR**: `%v`", err)
	}
	return "**OK**"
}

// GetRealtimeStatus reports whether calls can be started at all.
func GetRealtimeStatus(apiKey, model string) string {
	if strings.TrimSpace(apiKey) == "" {
		return "**ERROR**: `No API key`"
	}
	return fmt.Sprintf("**OK** (`%s`)", model)
}

// Report is a named set of status lines.
type Report struct {
	lines []string
}

func (r *Report) Add(name, status string) {
	r.lines = append(r.lines, fmt.Sprintf("%s: %s", name, status))
}

func (r *Report) String() string {
	return strings.Join(r.lines, "\n")
}
