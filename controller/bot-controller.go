package controller

import (
	"context"
	"ctfbot/app_error"
	"ctfbot/auth"
	"ctfbot/client"
	"ctfbot/repository"
	"ctfbot/service"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	CookieEmoji    = "🍪"
	commandTimeout = 2 * time.Minute
)

type ServerConfigurer interface {
	Init(caller service.Caller, server *repository.Server) error
	Teardown(caller service.Caller, serverId string) error
	GetServer(serverId string) (*repository.Server, error)
}

type CTFManager interface {
	Create(ctx context.Context, caller service.Caller, req service.CreateRequest) (*repository.CTF, error)
	Removable(caller service.Caller, guildId string) ([]*repository.CTF, error)
	Remove(ctx context.Context, caller service.Caller, guildId string, ctfIds []int) (*service.RemoveResult, error)
	CreateChallenge(ctx context.Context, caller service.Caller, guildId string, channelId string, name string, description string, category string) (*discordgo.Channel, error)
	OnEventStatus(ctx context.Context, guildId string, eventName string, before discordgo.GuildScheduledEventStatus, after discordgo.GuildScheduledEventStatus)
	OnReaction(ctx context.Context, guildId string, messageId string, userId string, added bool)
}

type FlagTracker interface {
	RegisterFlag(ctx context.Context, caller service.Caller, guildId string, channelId string, flag string, challenge string) (*repository.Report, error)
	DeleteFlag(caller service.Caller, guildId string, channelId string) (*repository.Report, error)
	Report(ctx context.Context, guildId string, channelId string) (*repository.CTF, *repository.Report, error)
	ReportById(ctx context.Context, guildId string, ctfId int) (*repository.CTF, *repository.Report, error)
}

type CredentialsKeeper interface {
	CTFForChannel(guildId string, channelId string) (*repository.CTF, error)
	GetCredentials(ctfId int) (*repository.Credentials, error)
	SaveCredentials(guildId string, credentials *repository.Credentials) error
	DeleteCredentials(caller service.Caller, guildId string, channelId string) error
}

type Calendar interface {
	NextCTFs(ctx context.Context, limit int) ([]*client.CTFTimeEvent, error)
}

// InteractionResponder is the part of the gateway session used to answer interactions.
type InteractionResponder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type BotController struct {
	servers     ServerConfigurer
	ctfs        CTFManager
	flags       FlagTracker
	credentials CredentialsKeeper
	calendar    Calendar
	platform    service.Platform
	responder   InteractionResponder
	version     string

	mu          sync.Mutex
	eventStatus map[string]discordgo.GuildScheduledEventStatus
	botUserId   string
}

func NewBotController(servers ServerConfigurer, ctfs CTFManager, flags FlagTracker, credentials CredentialsKeeper, calendar Calendar, platform service.Platform, responder InteractionResponder, version string) *BotController {
	return &BotController{
		servers:     servers,
		ctfs:        ctfs,
		flags:       flags,
		credentials: credentials,
		calendar:    calendar,
		platform:    platform,
		responder:   responder,
		version:     version,
		eventStatus: make(map[string]discordgo.GuildScheduledEventStatus),
	}
}

// Register adds every gateway handler to the session.
func (b *BotController) Register(session *discordgo.Session) {
	session.AddHandler(b.onReady)
	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.onInteractionCreate)
	session.AddHandler(b.onReactionAdd)
	session.AddHandler(b.onReactionRemove)
	session.AddHandler(b.onScheduledEventUpdate)
	session.AddHandler(b.onMessageCreate)
}

func (b *BotController) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.mu.Lock()
	b.botUserId = r.User.ID
	b.mu.Unlock()
	log.Printf("logged in as %s#%s on %d servers", r.User.Username, r.User.Discriminator, len(r.Guilds))
}

func (b *BotController) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	events, err := s.GuildScheduledEvents(g.ID, false)
	if err != nil {
		log.Printf("failed to load scheduled events of server %s: %v", g.ID, err)
		return
	}
	b.SeedScheduledEvents(events)
}

func (b *BotController) onInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	b.HandleInteraction(ctx, i.Interaction)
}

func (b *BotController) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	var user *discordgo.User
	if r.Member != nil {
		user = r.Member.User
	}
	b.HandleReaction(context.Background(), r.MessageReaction, user, true)
}

// onReactionRemove looks the user up since removals carry no member.
func (b *BotController) onReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	b.HandleReaction(context.Background(), r.MessageReaction, reactingUser(s, r.GuildID, r.UserID), false)
}

func reactingUser(s *discordgo.Session, guildId string, userId string) *discordgo.User {
	if s.State != nil {
		if member, err := s.State.Member(guildId, userId); err == nil && member.User != nil {
			return member.User
		}
	}
	user, err := s.User(userId)
	if err != nil {
		log.Printf("failed to look up user %s: %v", userId, err)
		return nil
	}
	return user
}

func (b *BotController) onScheduledEventUpdate(_ *discordgo.Session, e *discordgo.GuildScheduledEventUpdate) {
	b.HandleScheduledEventUpdate(context.Background(), e.GuildScheduledEvent)
}

func (b *BotController) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	b.HandleMessage(context.Background(), m.Message)
}

// HandleReaction toggles the ctf role for join reactions on announcements. user may be nil when unknown.
func (b *BotController) HandleReaction(ctx context.Context, r *discordgo.MessageReaction, user *discordgo.User, added bool) {
	if r.GuildID == "" || r.Emoji.Name != service.JoinEmoji {
		return
	}
	if user != nil && user.Bot {
		return
	}
	b.mu.Lock()
	self := b.botUserId
	b.mu.Unlock()
	if r.UserID == self {
		return
	}
	b.ctfs.OnReaction(ctx, r.GuildID, r.MessageID, r.UserID, added)
}

// SeedScheduledEvents records the current status of events that exist at connect time, so an
// update that keeps the status is not taken for a transition.
func (b *BotController) SeedScheduledEvents(events []*discordgo.GuildScheduledEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range events {
		if e.Status == discordgo.GuildScheduledEventStatusScheduled || e.Status == discordgo.GuildScheduledEventStatusActive {
			b.eventStatus[e.ID] = e.Status
		}
	}
}

// HandleScheduledEventUpdate remembers the last status per event, the gateway only sends the new one.
func (b *BotController) HandleScheduledEventUpdate(ctx context.Context, e *discordgo.GuildScheduledEvent) {
	b.mu.Lock()
	before := b.eventStatus[e.ID]
	if e.Status == discordgo.GuildScheduledEventStatusCompleted || e.Status == discordgo.GuildScheduledEventStatusCanceled {
		delete(b.eventStatus, e.ID)
	} else {
		b.eventStatus[e.ID] = e.Status
	}
	b.mu.Unlock()
	b.ctfs.OnEventStatus(ctx, e.GuildID, e.Name, before, e.Status)
}

func (b *BotController) HandleMessage(ctx context.Context, m *discordgo.Message) {
	if m.Type != discordgo.MessageTypeGuildMemberJoin {
		return
	}
	if err := b.platform.AddReaction(ctx, m.ChannelID, m.ID, CookieEmoji); err != nil {
		log.Printf("failed to greet new member in %s: %v", m.ChannelID, err)
	}
}

func callerOf(i *discordgo.Interaction) service.Caller {
	if i.Member == nil {
		caller := service.Caller{}
		if i.User != nil {
			caller.UserID = i.User.ID
		}
		return caller
	}
	caller := service.Caller{
		RoleIDs:       i.Member.Roles,
		Administrator: i.Member.Permissions&discordgo.PermissionAdministrator != 0,
	}
	if i.Member.User != nil {
		caller.UserID = i.Member.User.ID
	}
	return caller
}

func (b *BotController) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if data.CustomID == RemoveSelectID {
			b.handleRemoveSelect(ctx, i, data.Values)
		}
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		if strings.HasPrefix(data.CustomID, CredsModalPrefix) {
			b.handleCredsModal(i, data)
		}
	}
}

func (b *BotController) handleCommand(ctx context.Context, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	if i.GuildID == "" && data.Name != "next-ctfs" && data.Name != "version" {
		b.reply(i, "This command can only be used in a server. ❌", true)
		return
	}
	opts := optionMap(data.Options)
	log.Printf("command %s by %s on server %s", data.Name, callerOf(i).UserID, i.GuildID)
	switch data.Name {
	case "init":
		b.handleInit(i, opts)
	case "teardown":
		b.handleTeardown(i)
	case "create":
		b.handleCreate(ctx, i, opts)
	case "remove":
		b.handleRemove(i)
	case "flag":
		b.handleFlag(ctx, i, opts)
	case "delete-flag":
		b.handleDeleteFlag(i)
	case "report":
		b.handleReport(ctx, i)
	case "creds":
		b.handleCreds(i)
	case "delete-creds":
		b.handleDeleteCreds(i)
	case "next-ctfs":
		b.handleNextCTFs(ctx, i, opts)
	case "chall":
		b.handleChallenge(ctx, i, opts)
	case "token":
		b.handleToken(i)
	case "version":
		b.reply(i, "Version: "+b.version, true)
	default:
		b.reply(i, "Unknown command. ❌", true)
	}
}

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

// id returns the snowflake of a channel, role or user option.
func (o options) id(name string) string {
	opt, ok := o[name]
	if !ok {
		return ""
	}
	if s, ok := opt.Value.(string); ok {
		return s
	}
	return ""
}

func (o options) str(name string) string {
	opt, ok := o[name]
	if !ok || opt.Type != discordgo.ApplicationCommandOptionString {
		return ""
	}
	return strings.TrimSpace(opt.StringValue())
}

func (o options) integer(name string) int64 {
	opt, ok := o[name]
	if !ok || opt.Type != discordgo.ApplicationCommandOptionInteger {
		return 0
	}
	return opt.IntValue()
}

func (b *BotController) respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	if err := b.responder.InteractionRespond(i, resp); err != nil {
		log.Printf("failed to respond to interaction %s: %v", i.ID, err)
	}
}

func messageFlags(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (b *BotController) reply(i *discordgo.Interaction, content string, ephemeral bool) {
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: messageFlags(ephemeral)},
	})
}

func (b *BotController) replyEmbeds(i *discordgo.Interaction, embeds []*discordgo.MessageEmbed, ephemeral bool) {
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: embeds, Flags: messageFlags(ephemeral)},
	})
}

func (b *BotController) replyError(i *discordgo.Interaction, err error) {
	logCommandError(i, err)
	b.reply(i, app_error.UserMessage(err), true)
}

// deferReply acknowledges a slow command. Exactly one followup must come after it.
func (b *BotController) deferReply(i *discordgo.Interaction, ephemeral bool) {
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: messageFlags(ephemeral)},
	})
}

func (b *BotController) followup(i *discordgo.Interaction, params *discordgo.WebhookParams) {
	if _, err := b.responder.FollowupMessageCreate(i, true, params); err != nil {
		log.Printf("failed to send followup for interaction %s: %v", i.ID, err)
	}
}

func (b *BotController) followupError(i *discordgo.Interaction, err error) {
	logCommandError(i, err)
	b.followup(i, &discordgo.WebhookParams{Content: app_error.UserMessage(err), Flags: discordgo.MessageFlagsEphemeral})
}

func logCommandError(i *discordgo.Interaction, err error) {
	if app_error.KindOf(err) == app_error.KindExternalService || app_error.KindOf(err) == app_error.KindUnknown {
		log.Printf("error: interaction %s on server %s: %v", i.ID, i.GuildID, err)
		return
	}
	log.Printf("interaction %s on server %s rejected: %v", i.ID, i.GuildID, err)
}

func (b *BotController) handleInit(i *discordgo.Interaction, o options) {
	server := &repository.Server{
		ID:                i.GuildID,
		ActiveCategoryID:  o.id("active_category"),
		ArchiveCategoryID: o.id("archive_category"),
		RoleManagerID:     o.id("manager_role"),
		FeedChannelID:     o.id("feed_channel"),
		RoleTeamID:        o.id("team_role"),
		TeamID:            o.integer("ctftime_team_id"),
	}
	if err := b.servers.Init(callerOf(i), server); err != nil {
		b.replyError(i, err)
		return
	}
	b.reply(i, "Server configured. ✅", true)
}

func (b *BotController) handleTeardown(i *discordgo.Interaction) {
	if err := b.servers.Teardown(callerOf(i), i.GuildID); err != nil {
		b.replyError(i, err)
		return
	}
	b.reply(i, "Server configuration removed. ✅", true)
}

func (b *BotController) handleCreate(ctx context.Context, i *discordgo.Interaction, o options) {
	b.deferReply(i, true)
	ctf, err := b.ctfs.Create(ctx, callerOf(i), service.CreateRequest{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		EventRef:  o.str("ctftime"),
		TeamName:  o.str("team"),
	})
	if err != nil {
		b.followupError(i, err)
		return
	}
	b.followup(i, &discordgo.WebhookParams{
		Content: fmt.Sprintf("CTF **%s** created in <#%s>. ✅", ctf.Name, ctf.TextChannelID),
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func (b *BotController) handleRemove(i *discordgo.Interaction) {
	ctfs, err := b.ctfs.Removable(callerOf(i), i.GuildID)
	if err != nil {
		b.replyError(i, err)
		return
	}
	if len(ctfs) > maxSelectOptions {
		ctfs = ctfs[:maxSelectOptions]
	}
	selectOptions := make([]discordgo.SelectMenuOption, 0, len(ctfs))
	for _, ctf := range ctfs {
		selectOptions = append(selectOptions, discordgo.SelectMenuOption{
			Label: service.Truncate(ctf.Name, 100),
			Value: strconv.Itoa(ctf.ID),
		})
	}
	minValues := 1
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Select the CTFs to remove:",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						MenuType:    discordgo.StringSelectMenu,
						CustomID:    RemoveSelectID,
						Placeholder: "CTFs",
						MinValues:   &minValues,
						MaxValues:   len(selectOptions),
						Options:     selectOptions,
					},
				}},
			},
		},
	})
}

func (b *BotController) handleRemoveSelect(ctx context.Context, i *discordgo.Interaction, values []string) {
	b.deferReply(i, true)
	ids := make([]int, 0, len(values))
	for _, value := range values {
		id, err := strconv.Atoi(value)
		if err != nil {
			b.followupError(i, app_error.Validation("Invalid selection. ❌"))
			return
		}
		ids = append(ids, id)
	}
	result, err := b.ctfs.Remove(ctx, callerOf(i), i.GuildID, ids)
	if err != nil {
		if result != nil && len(result.Removed) > 0 {
			log.Printf("server %s: removed %s before failing", i.GuildID, strings.Join(result.Removed, ", "))
		}
		b.followupError(i, err)
		return
	}
	b.followup(i, &discordgo.WebhookParams{
		Content: "Removed: " + strings.Join(result.Removed, ", ") + " ✅",
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func (b *BotController) handleFlag(ctx context.Context, i *discordgo.Interaction, o options) {
	report, err := b.flags.RegisterFlag(ctx, callerOf(i), i.GuildID, i.ChannelID, o.str("flag"), o.str("challenge"))
	if err != nil {
		b.replyError(i, err)
		return
	}
	b.reply(i, fmt.Sprintf("Flag registered, %d solves so far. ✅", report.Solves), true)
}

func (b *BotController) handleDeleteFlag(i *discordgo.Interaction) {
	report, err := b.flags.DeleteFlag(callerOf(i), i.GuildID, i.ChannelID)
	if err != nil {
		b.replyError(i, err)
		return
	}
	b.reply(i, fmt.Sprintf("Flag removed, %d solves left. ✅", report.Solves), true)
}

func (b *BotController) handleReport(ctx context.Context, i *discordgo.Interaction) {
	b.deferReply(i, false)
	ctf, report, err := b.flags.Report(ctx, i.GuildID, i.ChannelID)
	if err != nil {
		b.followupError(i, err)
		return
	}
	b.followup(i, &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{service.ReportEmbed(ctf, report)}})
}

// handleCreds shows stored credentials to members of the ctf, otherwise asks for them.
func (b *BotController) handleCreds(i *discordgo.Interaction) {
	caller := callerOf(i)
	ctf, err := b.credentials.CTFForChannel(i.GuildID, i.ChannelID)
	if err != nil {
		b.replyError(i, err)
		return
	}
	credentials, err := b.credentials.GetCredentials(ctf.ID)
	if err != nil {
		b.replyError(i, err)
		return
	}
	if credentials != nil {
		if !caller.Administrator && !caller.HasRole(ctf.RoleID) {
			b.reply(i, "You don't have the required role to run this command. ❌", true)
			return
		}
		b.replyEmbeds(i, []*discordgo.MessageEmbed{credentialsEmbed(ctf, credentials)}, true)
		return
	}
	b.respond(i, credentialsModal(ctf))
}

func credentialsEmbed(ctf *repository.CTF, credentials *repository.Credentials) *discordgo.MessageEmbed {
	kind := "Shared"
	if credentials.Personal {
		kind = "Personal"
	}
	return &discordgo.MessageEmbed{
		Title: "Credentials for " + ctf.Name,
		Color: service.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Username", Value: "`" + credentials.Username + "`"},
			{Name: "Password", Value: "||" + credentials.Password + "||"},
			{Name: "Account", Value: kind},
		},
	}
}

func credentialsModal(ctf *repository.CTF) *discordgo.InteractionResponse {
	input := func(id string, label string, placeholder string, required bool) discordgo.MessageComponent {
		return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    id,
				Label:       label,
				Style:       discordgo.TextInputShort,
				Placeholder: placeholder,
				Required:    required,
				MaxLength:   200,
			},
		}}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: CredsModalPrefix + strconv.Itoa(ctf.ID),
			Title:    service.Truncate("Credentials for "+ctf.Name, 45),
			Components: []discordgo.MessageComponent{
				input(credsUsernameID, "Username", "", true),
				input(credsPasswordID, "Password", "", true),
				input(credsPersonalID, "Personal account? (yes/no)", "no", false),
			},
		},
	}
}

// modalValues flattens the text inputs of a submitted modal by custom id.
func modalValues(components []discordgo.MessageComponent) map[string]string {
	values := make(map[string]string)
	for _, component := range components {
		var row []discordgo.MessageComponent
		switch r := component.(type) {
		case *discordgo.ActionsRow:
			row = r.Components
		case discordgo.ActionsRow:
			row = r.Components
		}
		for _, inner := range row {
			switch input := inner.(type) {
			case *discordgo.TextInput:
				values[input.CustomID] = strings.TrimSpace(input.Value)
			case discordgo.TextInput:
				values[input.CustomID] = strings.TrimSpace(input.Value)
			}
		}
	}
	return values
}

func (b *BotController) handleCredsModal(i *discordgo.Interaction, data discordgo.ModalSubmitInteractionData) {
	ctfId, err := strconv.Atoi(strings.TrimPrefix(data.CustomID, CredsModalPrefix))
	if err != nil {
		b.replyError(i, app_error.Validation("Invalid form. ❌"))
		return
	}
	values := modalValues(data.Components)
	personal := strings.ToLower(values[credsPersonalID])
	credentials := &repository.Credentials{
		CTFID:    ctfId,
		Username: values[credsUsernameID],
		Password: values[credsPasswordID],
		Personal: personal == "yes" || personal == "y" || personal == "true",
	}
	if err := b.credentials.SaveCredentials(i.GuildID, credentials); err != nil {
		b.replyError(i, err)
		return
	}
	b.reply(i, "Credentials saved. ✅", true)
}

func (b *BotController) handleDeleteCreds(i *discordgo.Interaction) {
	if err := b.credentials.DeleteCredentials(callerOf(i), i.GuildID, i.ChannelID); err != nil {
		b.replyError(i, err)
		return
	}
	b.reply(i, "Credentials deleted. ✅", true)
}

func (b *BotController) handleNextCTFs(ctx context.Context, i *discordgo.Interaction, o options) {
	b.deferReply(i, false)
	events, err := b.calendar.NextCTFs(ctx, int(o.integer("limit")))
	if err != nil {
		b.followupError(i, err)
		return
	}
	embeds := make([]*discordgo.MessageEmbed, 0, len(events))
	for _, event := range events {
		embeds = append(embeds, upcomingEmbed(event))
	}
	b.followup(i, &discordgo.WebhookParams{Embeds: embeds})
}

func upcomingEmbed(event *client.CTFTimeEvent) *discordgo.MessageEmbed {
	when := func(raw string) string {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return raw
		}
		return fmt.Sprintf("<t:%d:f>", t.Unix())
	}
	return &discordgo.MessageEmbed{
		Title:       event.Title,
		URL:         event.CTFTimeURL,
		Description: service.Truncate(event.Description, 300),
		Color:       service.EmbedColor,
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: event.Logo},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Start", Value: when(event.Start), Inline: true},
			{Name: "Finish", Value: when(event.Finish), Inline: true},
			{Name: "Format", Value: event.Format, Inline: true},
			{Name: "Weight", Value: fmt.Sprintf("%.2f", event.Weight), Inline: true},
		},
	}
}

func (b *BotController) handleChallenge(ctx context.Context, i *discordgo.Interaction, o options) {
	thread, err := b.ctfs.CreateChallenge(ctx, callerOf(i), i.GuildID, i.ChannelID, o.str("name"), o.str("description"), o.str("category"))
	if err != nil {
		b.replyError(i, err)
		return
	}
	b.reply(i, fmt.Sprintf("Challenge thread <#%s> opened. ✅", thread.ID), true)
}

func (b *BotController) handleToken(i *discordgo.Interaction) {
	caller := callerOf(i)
	server, err := b.servers.GetServer(i.GuildID)
	if err != nil {
		b.replyError(i, err)
		return
	}
	if !caller.CanManage(server) {
		b.replyError(i, app_error.PermissionDenied("You don't have the required role to run this command. ❌"))
		return
	}
	token, err := auth.CreateToken(i.GuildID, caller.UserID)
	if err != nil {
		b.replyError(i, app_error.ExternalService("failed to sign token", err))
		return
	}
	b.reply(i, "Dashboard token, valid for 21 days:\n```"+token+"```", true)
}
