package controller

import (
	"context"
	"ctfbot/app_error"
	"ctfbot/client"
	"ctfbot/repository"
	"ctfbot/service"
	"sync"

	"github.com/bwmarrin/discordgo"
)

type recordingResponder struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	followups []*discordgo.WebhookParams
}

func (r *recordingResponder) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recordingResponder) FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followups = append(r.followups, data)
	return &discordgo.Message{ID: "followup"}, nil
}

func (r *recordingResponder) last() *discordgo.InteractionResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.responses) == 0 {
		return nil
	}
	return r.responses[len(r.responses)-1]
}

type fakeServers struct {
	server  *repository.Server
	initErr error
	inited  *repository.Server
}

func (f *fakeServers) Init(caller service.Caller, server *repository.Server) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.inited = server
	return nil
}

func (f *fakeServers) Teardown(caller service.Caller, serverId string) error {
	return nil
}

func (f *fakeServers) GetServer(serverId string) (*repository.Server, error) {
	if f.server == nil || f.server.ID != serverId {
		return nil, app_error.Validation("This server is not configured yet, run /init first. ❌")
	}
	return f.server, nil
}

type statusChange struct {
	name   string
	before discordgo.GuildScheduledEventStatus
	after  discordgo.GuildScheduledEventStatus
}

type reaction struct {
	messageId string
	userId    string
	added     bool
}

type fakeCTFs struct {
	mu        sync.Mutex
	ctfs      []*repository.CTF
	createErr error
	created   []service.CreateRequest
	removed   []int
	statuses  []statusChange
	reactions []reaction
}

func (f *fakeCTFs) Create(ctx context.Context, caller service.Caller, req service.CreateRequest) (*repository.CTF, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &repository.CTF{ID: 1, Name: "Foo CTF - 2025", TextChannelID: "ctf-channel"}, nil
}

func (f *fakeCTFs) Removable(caller service.Caller, guildId string) ([]*repository.CTF, error) {
	if len(f.ctfs) == 0 {
		return nil, app_error.NotFound("There are no CTFs to remove. ❌")
	}
	return f.ctfs, nil
}

func (f *fakeCTFs) Remove(ctx context.Context, caller service.Caller, guildId string, ctfIds []int) (*service.RemoveResult, error) {
	f.removed = append(f.removed, ctfIds...)
	result := &service.RemoveResult{}
	for _, id := range ctfIds {
		for _, ctf := range f.ctfs {
			if ctf.ID == id {
				result.Removed = append(result.Removed, ctf.Name)
			}
		}
	}
	return result, nil
}

func (f *fakeCTFs) CreateChallenge(ctx context.Context, caller service.Caller, guildId string, channelId string, name string, description string, category string) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "thread"}, nil
}

func (f *fakeCTFs) OnEventStatus(ctx context.Context, guildId string, eventName string, before discordgo.GuildScheduledEventStatus, after discordgo.GuildScheduledEventStatus) {
	f.statuses = append(f.statuses, statusChange{name: eventName, before: before, after: after})
}

func (f *fakeCTFs) OnReaction(ctx context.Context, guildId string, messageId string, userId string, added bool) {
	f.reactions = append(f.reactions, reaction{messageId: messageId, userId: userId, added: added})
}

func (f *fakeCTFs) ListCTFs(guildId string) ([]*repository.CTF, error) {
	return f.ctfs, nil
}

type fakeFlags struct {
	solves int
}

func (f *fakeFlags) RegisterFlag(ctx context.Context, caller service.Caller, guildId string, channelId string, flag string, challenge string) (*repository.Report, error) {
	f.solves++
	return &repository.Report{Solves: f.solves}, nil
}

func (f *fakeFlags) DeleteFlag(caller service.Caller, guildId string, channelId string) (*repository.Report, error) {
	return nil, app_error.PermissionDenied("You don't have the required role to run this command. ❌")
}

func (f *fakeFlags) Report(ctx context.Context, guildId string, channelId string) (*repository.CTF, *repository.Report, error) {
	return &repository.CTF{ID: 7, Name: "Foo CTF - 2025"}, &repository.Report{CTFID: 7, Place: 3, Score: 1234, Solves: 9}, nil
}

func (f *fakeFlags) ReportById(ctx context.Context, guildId string, ctfId int) (*repository.CTF, *repository.Report, error) {
	if ctfId != 7 {
		return nil, nil, app_error.NotFound("ctf not found")
	}
	return &repository.CTF{ID: 7, Name: "Foo CTF - 2025"}, repository.NewReport(7), nil
}

type fakeCredentials struct {
	ctf         *repository.CTF
	credentials *repository.Credentials
	saved       *repository.Credentials
}

func (f *fakeCredentials) CTFForChannel(guildId string, channelId string) (*repository.CTF, error) {
	if f.ctf == nil || f.ctf.TextChannelID != channelId {
		return nil, app_error.NotFound("This command must be used inside a CTF channel. ❌")
	}
	return f.ctf, nil
}

func (f *fakeCredentials) GetCredentials(ctfId int) (*repository.Credentials, error) {
	return f.credentials, nil
}

func (f *fakeCredentials) SaveCredentials(guildId string, credentials *repository.Credentials) error {
	f.saved = credentials
	return nil
}

func (f *fakeCredentials) DeleteCredentials(caller service.Caller, guildId string, channelId string) error {
	return nil
}

type fakeCalendar struct {
	events []*client.CTFTimeEvent
	calls  int
}

func (f *fakeCalendar) NextCTFs(ctx context.Context, limit int) ([]*client.CTFTimeEvent, error) {
	f.calls++
	if len(f.events) == 0 {
		return nil, app_error.NotFound("No upcoming CTFs in the next 30 days. ❌")
	}
	return f.events[:min(service.ClampLimit(limit), len(f.events))], nil
}

// reactionPlatform only implements AddReaction.
type reactionPlatform struct {
	service.Platform
	reactions []string
}

func (p *reactionPlatform) AddReaction(ctx context.Context, channelID string, messageID string, emoji string) error {
	p.reactions = append(p.reactions, messageID+":"+emoji)
	return nil
}
