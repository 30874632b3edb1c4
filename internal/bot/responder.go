package bot

import "github.com/bwmarrin/discordgo"

// Responder provides an abstraction for responding to Discord interactions.
// This interface enables testing handlers without a live Discord connection.
type Responder interface {
	// Respond sends a response to an interaction.
	Respond(response *discordgo.InteractionResponse) error

	// Followup sends a followup message after a deferred response.
	Followup(params *discordgo.WebhookParams) (*discordgo.Message, error)
}

// DiscordResponder implements Responder using a live Discord session.
type DiscordResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
}

// NewDiscordResponder creates a new DiscordResponder.
func NewDiscordResponder(s *discordgo.Session, i *discordgo.Interaction) *DiscordResponder {
	return &DiscordResponder{
		session:     s,
		interaction: i,
	}
}

// Respond sends a response to the interaction via Discord API.
func (r *DiscordResponder) Respond(response *discordgo.InteractionResponse) error {
	return r.session.InteractionRespond(r.interaction, response)
}

// Followup sends a followup message to the interaction via Discord API.
func (r *DiscordResponder) Followup(params *discordgo.WebhookParams) (*discordgo.Message, error) {
	return r.session.FollowupMessageCreate(r.interaction, true, params)
}

// MockResponder is a test double for Responder.
type MockResponder struct {
	LastResponse *discordgo.InteractionResponse
	LastFollowup *discordgo.WebhookParams
	FollowupMsg  *discordgo.Message
	Err          error
}

// Respond records the response for testing.
func (m *MockResponder) Respond(response *discordgo.InteractionResponse) error {
	m.LastResponse = response
	return m.Err
}

// Followup records the followup params for testing.
func (m *MockResponder) Followup(params *discordgo.WebhookParams) (*discordgo.Message, error) {
	m.LastFollowup = params
	if m.FollowupMsg != nil {
		return m.FollowupMsg, m.Err
	}
	return &discordgo.Message{ID: "0"}, m.Err
}
