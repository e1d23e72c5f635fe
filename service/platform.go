package service

import (
	"context"
	"ctfbot/client"
	"ctfbot/repository"
	"ctfbot/utils"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Platform is the subset of the chat platform the bot writes to. client.DiscordClient implements it.
type Platform interface {
	CreateRole(ctx context.Context, guildID string, params *discordgo.RoleParams) (*discordgo.Role, error)
	EditRole(ctx context.Context, guildID string, roleID string, params *discordgo.RoleParams) (*discordgo.Role, error)
	DeleteRole(ctx context.Context, guildID string, roleID string) error
	CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error)
	MoveChannel(ctx context.Context, channelID string, parentID string, position int) (*discordgo.Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	CreateScheduledEvent(ctx context.Context, guildID string, event *client.ScheduledEventCreate) (*discordgo.GuildScheduledEvent, error)
	DeleteScheduledEvent(ctx context.Context, guildID string, eventID string) error
	SendMessage(ctx context.Context, channelID string, message *discordgo.MessageSend) (*discordgo.Message, error)
	DeleteMessage(ctx context.Context, channelID string, messageID string) error
	PinMessage(ctx context.Context, channelID string, messageID string) error
	AddReaction(ctx context.Context, channelID string, messageID string, emoji string) error
	AddMemberRole(ctx context.Context, guildID string, userID string, roleID string) error
	RemoveMemberRole(ctx context.Context, guildID string, userID string, roleID string) error
	StartThread(ctx context.Context, channelID string, messageID string, name string) (*discordgo.Channel, error)
}

// Caller is the member who invoked a command.
type Caller struct {
	UserID        string
	RoleIDs       []string
	Administrator bool
}

func (c Caller) HasRole(roleID string) bool {
	return utils.Contains(c.RoleIDs, roleID)
}

// CanManage reports whether the caller may run manager commands on a server.
func (c Caller) CanManage(server *repository.Server) bool {
	return c.Administrator || c.HasRole(server.RoleManagerID)
}

type ServerStore interface {
	GetServerById(serverId string) (*repository.Server, error)
	ReplaceServer(server *repository.Server) error
	DeleteServer(serverId string) error
}

type CTFStore interface {
	AddCTF(ctf *repository.CTF) error
	IsCTFPresent(name string, serverId string) (bool, error)
	GetCTFById(ctfId int) (*repository.CTF, error)
	GetCTFByName(name string, serverId string) (*repository.CTF, error)
	GetCTFByMessageId(messageId string, serverId string) (*repository.CTF, error)
	GetCTFByChannelId(channelId string, serverId string) (*repository.CTF, error)
	ListCTFs(serverId string) ([]*repository.CTF, error)
	DeleteCTF(ctfId int) error
}

type ReportStore interface {
	GetReport(ctfId int) (*repository.Report, error)
	UpdateReport(report *repository.Report) error
	AddSolve(ctfId int, challenge string) (*repository.Report, error)
	RemoveSolve(ctfId int) (*repository.Report, error)
}

type CredentialsStore interface {
	SaveCredentials(credentials *repository.Credentials) error
	GetCredentials(ctfId int) (*repository.Credentials, error)
	DeleteCredentials(ctfId int) error
}

// EventInfo is the calendar side. client.CTFTimeClient implements it.
type EventInfo interface {
	FetchEvent(ctx context.Context, eventId int) (*client.CTFTimeEvent, error)
	FetchUpcoming(ctx context.Context, limit int, window time.Duration) ([]*client.CTFTimeEvent, error)
	FetchResults(ctx context.Context, eventId int64, year int, teamId int64) client.Result[client.TeamResult]
}

// PollClient is one session against a scoring platform. client.CTFdClient implements it.
type PollClient interface {
	ProbeIsHostedPlatform(ctx context.Context) bool
	Register(ctx context.Context, username string, email string, password string) bool
	Login(ctx context.Context, username string, password string) bool
	ResolveTeamId(ctx context.Context, teamName string) client.Result[int]
	FetchTeam(ctx context.Context, teamId int) client.Result[client.CTFdTeam]
	FetchSolves(ctx context.Context, teamId int) client.Result[[]client.CTFdSolve]
}

type PollClientFactory func(baseURL string) (PollClient, error)

func CTFdClientFactory(baseURL string) (PollClient, error) {
	c, err := client.NewCTFdClient(baseURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// RelayTarget describes what a solve relay polls and where its solves go.
type RelayTarget struct {
	ServerID  string
	CTFID     int
	CTFName   string
	ChannelID string
	RoleID    string
	TeamID    int
	Client    PollClient
}

// RelayRunner owns the background solve relays.
type RelayRunner interface {
	Start(target RelayTarget) error
	// Stop blocks until the relay for the ctf has exited and reports whether one was running.
	Stop(ctfId int) bool
}
