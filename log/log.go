package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"runtime"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const discordMessageLimit = 1900

// Logger is the logging surface every component receives.
type Logger interface {
	Info(msg string)
	Error(context string, err error)
	Fatal(context string, err error)
}

// exit is swapped in tests.
var exit = os.Exit

type logger struct {
	out       *stdlog.Logger
	session   *discordgo.Session
	channelID string
}

// New returns a Logger that writes to out.
func New(out io.Writer) Logger {
	return &logger{out: stdlog.New(out, "", stdlog.LstdFlags)}
}

// NewDiscordLogger writes to out and mirrors errors to a Discord channel.
func NewDiscordLogger(s *discordgo.Session, channelID string, out io.Writer) Logger {
	return &logger{
		out:       stdlog.New(out, "", stdlog.LstdFlags),
		session:   s,
		channelID: channelID,
	}
}

func (l *logger) Info(msg string) {
	l.out.Printf("[INFO] %s", msg)
}

// Error logs an error with the caller's file and line.
func (l *logger) Error(context string, err error) {
	msg := fmt.Sprintf("[ERROR] in %s: %s\n%v", callerInfo(2), context, err)
	l.out.Print(msg)
	l.post(msg)
}

// Fatal logs an error and then exits the program.
func (l *logger) Fatal(context string, err error) {
	msg := fmt.Sprintf("[FATAL] in %s: %s\n%v", callerInfo(2), context, err)
	l.out.Print(msg)
	if l.session != nil && l.channelID != "" {
		_, _ = l.session.ChannelMessageSend(l.channelID, codeBlock(msg))
	}
	exit(1)
}

// post sends to the log channel without blocking the caller.
func (l *logger) post(msg string) {
	if l.session == nil || l.channelID == "" {
		return
	}
	go func() {
		_, _ = l.session.ChannelMessageSend(l.channelID, codeBlock(msg))
	}()
}

func codeBlock(msg string) string {
	if len(msg) > discordMessageLimit {
		msg = msg[:discordMessageLimit] + "..."
	}
	return "```\n" + msg + "\n```"
}

func callerInfo(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		file = strings.Join(parts[len(parts)-2:], "/")
	}
	return fmt.Sprintf("%s:%d", file, line)
}
