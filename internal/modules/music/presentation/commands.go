package presentation

import "github.com/bwmarrin/discordgo"

// Commands returns all slash commands for the music module.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Queue a track from URL or search",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "URL or search term",
					Required:    true,
				},
			},
		},
		{
			Name:        "search",
			Description: "Search for tracks and pick one by reacting",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Search term",
					Required:    true,
				},
			},
		},
		{
			Name:        "queue",
			Description: "Show the current queue",
		},
		{
			Name:        "skip",
			Description: "Skip the current track",
		},
		{
			Name:        "stop",
			Description: "Stop playback and clear the queue",
		},
		{
			Name:        "volume",
			Description: "Set the playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "percent",
					Description: "Volume from 0 to 100",
					Required:    true,
					MinValue:    floatPtr(0),
					MaxValue:    100,
				},
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
