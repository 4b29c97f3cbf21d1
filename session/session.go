// Package session creates the Discord gateway session.
package session

import (
	"github.com/bwmarrin/discordgo"
)

// Intents are the gateway events a voice bridge needs: guild metadata and
// voice state updates for joining channels.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

// NewSession creates a new Discord session
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = Intents
	session.StateEnabled = true

	return session, nil
}
