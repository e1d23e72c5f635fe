package controller

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

const (
	RemoveSelectID   = "remove_ctf_select"
	CredsModalPrefix = "creds_modal_"
	maxSelectOptions = 25
	credsUsernameID  = "username"
	credsPasswordID  = "password"
	credsPersonalID  = "personal"
)

var (
	adminPermission  int64 = discordgo.PermissionAdministrator
	dmPermission           = false
	minUpcomingLimit       = 1.0
	maxUpcomingLimit       = 10.0
)

// Commands is the slash command surface registered on startup.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:                     "init",
		Description:              "Configure the bot for this server",
		DefaultMemberPermissions: &adminPermission,
		DMPermission:             &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "active_category",
				Description:  "Category new CTF channels are created in",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
				Required:     true,
			},
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "archive_category",
				Description:  "Category finished CTF channels are moved to",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
				Required:     true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionRole,
				Name:        "manager_role",
				Description: "Role allowed to manage CTFs",
				Required:    true,
			},
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "feed_channel",
				Description:  "Channel CTF announcements are posted in",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
				Required:     true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionRole,
				Name:        "team_role",
				Description: "Role pinged when a new CTF is published",
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "ctftime_team_id",
				Description: "Team id on CTFtime, used for reports",
			},
		},
	},
	{
		Name:                     "teardown",
		Description:              "Remove the configuration of this server",
		DefaultMemberPermissions: &adminPermission,
		DMPermission:             &dmPermission,
	},
	{
		Name:         "create",
		Description:  "Create a CTF from its CTFtime event",
		DMPermission: &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "ctftime",
				Description: "CTFtime event url or id",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "team",
				Description: "Team name on the scoring platform",
			},
		},
	},
	{
		Name:         "remove",
		Description:  "Remove one or more CTFs",
		DMPermission: &dmPermission,
	},
	{
		Name:         "flag",
		Description:  "Register a flag for the CTF of this channel",
		DMPermission: &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "flag",
				Description: "The flag",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "challenge",
				Description: "Name of the challenge",
			},
		},
	},
	{
		Name:         "delete-flag",
		Description:  "Remove the last registered flag",
		DMPermission: &dmPermission,
	},
	{
		Name:         "report",
		Description:  "Show the report of the CTF of this channel",
		DMPermission: &dmPermission,
	},
	{
		Name:         "creds",
		Description:  "Show or set the credentials of the CTF of this channel",
		DMPermission: &dmPermission,
	},
	{
		Name:         "delete-creds",
		Description:  "Delete the credentials of the CTF of this channel",
		DMPermission: &dmPermission,
	},
	{
		Name:        "next-ctfs",
		Description: "List upcoming CTFs from CTFtime",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "limit",
				Description: "Number of CTFs to show",
				MinValue:    &minUpcomingLimit,
				MaxValue:    maxUpcomingLimit,
			},
		},
	},
	{
		Name:         "chall",
		Description:  "Open a thread for a challenge",
		DMPermission: &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "name",
				Description: "Name of the challenge",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "description",
				Description: "Short description",
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "category",
				Description: "Category, e.g. pwn or web",
			},
		},
	},
	{
		Name:         "token",
		Description:  "Get a dashboard token for this server",
		DMPermission: &dmPermission,
	},
	{
		Name:        "version",
		Description: "Show the bot version",
	},
}

type CommandRegistrar interface {
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// RegisterCommands registers the commands globally, or only in guildId when it is set.
func RegisterCommands(registrar CommandRegistrar, appId string, guildId string) error {
	registered, err := registrar.ApplicationCommandBulkOverwrite(appId, guildId, Commands)
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	log.Printf("registered %d commands", len(registered))
	return nil
}
