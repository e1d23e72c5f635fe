package service

import (
	"context"
	"ctfbot/app_error"
	"ctfbot/client"
	"ctfbot/metrics"
	"ctfbot/repository"
	"ctfbot/utils"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"
)

var errMissingRole = app_error.PermissionDenied("You don't have the required role to run this command. ❌")

// PlatformAccount is the shared account the bot registers on scoring platforms.
type PlatformAccount struct {
	Username string
	Email    string
	Password string
}

type CreateRequest struct {
	GuildID string
	// channel the command was invoked in
	ChannelID string
	EventRef  string
	TeamName  string
}

// LifecycleService drives a ctf from creation through archival to removal.
type LifecycleService struct {
	ctfRepository CTFStore
	cache         *ServerConfigCache
	provisioner   *ProvisionerService
	platform      Platform
	eventInfo     EventInfo
	pollClients   PollClientFactory
	relays        RelayRunner
	account       PlatformAccount
}

func NewLifecycleService(db *gorm.DB, cache *ServerConfigCache, platform Platform, eventInfo EventInfo, pollClients PollClientFactory, relays RelayRunner, account PlatformAccount) *LifecycleService {
	return &LifecycleService{
		ctfRepository: repository.NewCTFRepository(db),
		cache:         cache,
		provisioner:   NewProvisionerService(platform),
		platform:      platform,
		eventInfo:     eventInfo,
		pollClients:   pollClients,
		relays:        relays,
		account:       account,
	}
}

func (s *LifecycleService) managedServer(caller Caller, guildId string) (*repository.Server, error) {
	server, err := s.cache.Get(guildId)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(server) {
		return nil, errMissingRole
	}
	return server, nil
}

func (s *LifecycleService) lookupEvent(ctx context.Context, eventRef string) (*client.CTFTimeEvent, time.Time, time.Time, error) {
	eventId, err := client.ParseEventID(eventRef)
	if err != nil {
		return nil, time.Time{}, time.Time{}, app_error.Validation("Invalid CTFtime link, use https://ctftime.org/event/<id>. ❌")
	}
	event, err := s.eventInfo.FetchEvent(ctx, eventId)
	if err != nil {
		if errors.Is(err, client.ErrEventNotFound) {
			return nil, time.Time{}, time.Time{}, app_error.NotFound("The CTF was not found on CTFtime. ❌")
		}
		return nil, time.Time{}, time.Time{}, app_error.ExternalService("failed to reach ctftime", err)
	}
	start, err := event.StartTime()
	if err != nil {
		return nil, time.Time{}, time.Time{}, app_error.Validation("The CTF has an invalid start time on CTFtime. ❌")
	}
	end, err := event.FinishTime()
	if err != nil {
		return nil, time.Time{}, time.Time{}, app_error.Validation("The CTF has an invalid end time on CTFtime. ❌")
	}
	return event, start, end, nil
}

func duplicateError() error {
	return app_error.Validation("The CTF is already present in the discord server. ❌")
}

// leak records platform resources left behind by an aborted creation.
func leak(name string, resources map[string]string) {
	for resource, id := range resources {
		if id == "" {
			continue
		}
		log.Printf("error: ctf %s: leaked %s %s, remove it manually", name, resource, id)
		metrics.LeakedResourceCounter.WithLabelValues(resource).Inc()
	}
}

// Create validates everything it can before touching the platform and persists the ctf only once
// the role, channel, announcement and scheduled event all exist.
func (s *LifecycleService) Create(ctx context.Context, caller Caller, req CreateRequest) (*repository.CTF, error) {
	server, err := s.managedServer(caller, req.GuildID)
	if err != nil {
		return nil, err
	}
	event, start, end, err := s.lookupEvent(ctx, req.EventRef)
	if err != nil {
		return nil, err
	}
	name := DisplayName(event.Title, start)
	present, err := s.ctfRepository.IsCTFPresent(name, req.GuildID)
	if err != nil {
		return nil, app_error.ExternalService("failed to check for duplicates", err)
	}
	if present {
		return nil, duplicateError()
	}

	isCTFd := false
	if event.URL != "" {
		if pollClient, err := s.pollClients(event.URL); err != nil {
			log.Printf("ctf %s: no scoring platform client for %s: %v", name, event.URL, err)
		} else {
			isCTFd = pollClient.ProbeIsHostedPlatform(ctx)
		}
	}

	created := map[string]string{}
	role, err := s.provisioner.CreateRole(ctx, req.GuildID, name)
	if err != nil {
		return nil, app_error.ExternalService("failed to create role", err)
	}
	created["role"] = role.ID
	channel, err := s.provisioner.CreateChannel(ctx, req.GuildID, name, server.ActiveCategoryID, role.ID, server.RoleManagerID)
	if err != nil {
		leak(name, created)
		return nil, app_error.ExternalService("failed to create channel", err)
	}
	created["channel"] = channel.ID
	feedChannelId := server.FeedChannelID
	if feedChannelId == "" {
		feedChannelId = channel.ID
	}
	msg, err := s.provisioner.PostAnnouncement(ctx, feedChannelId, name, event, start, end)
	if err != nil {
		leak(name, created)
		return nil, app_error.ExternalService("failed to post announcement", err)
	}
	created["message"] = msg.ID
	scheduled, err := s.provisioner.CreateScheduledEvent(ctx, req.GuildID, name, event, event.Description, start, end)
	if err != nil {
		leak(name, created)
		return nil, app_error.ExternalService("failed to create scheduled event", err)
	}
	created["scheduled event"] = scheduled.ID

	ctf := &repository.CTF{
		ServerID:      req.GuildID,
		Name:          name,
		Description:   event.Description,
		TextChannelID: channel.ID,
		EventID:       scheduled.ID,
		RoleID:        role.ID,
		MessageID:     msg.ID,
		FeedChannelID: feedChannelId,
		CTFTimeID:     int64(event.Id),
		URL:           event.URL,
		IsCTFd:        isCTFd,
		TeamName:      req.TeamName,
	}
	if err := s.ctfRepository.AddCTF(ctf); err != nil {
		leak(name, created)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, duplicateError()
		}
		return nil, app_error.ExternalService("failed to store ctf", err)
	}
	metrics.CTFsCreatedCounter.Inc()
	log.Printf("ctf %s created on server %s (channel %s, role %s, ctfd %t)", name, req.GuildID, channel.ID, role.ID, isCTFd)

	s.welcome(ctx, server, ctf, req.ChannelID)
	return ctf, nil
}

func (s *LifecycleService) welcome(ctx context.Context, server *repository.Server, ctf *repository.CTF, invokedIn string) {
	if _, err := s.platform.SendMessage(ctx, ctf.TextChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@&%s> Welcome to the CTF **%s**! 🎉", ctf.RoleID, ctf.Name),
	}); err != nil {
		log.Printf("ctf %s: failed to send welcome message: %v", ctf.Name, err)
	}
	if ctf.URL != "" {
		link, err := s.platform.SendMessage(ctx, ctf.TextChannelID, &discordgo.MessageSend{Content: "Link to ctf: " + ctf.URL})
		if err != nil {
			log.Printf("ctf %s: failed to send link: %v", ctf.Name, err)
		} else if err := s.platform.PinMessage(ctx, ctf.TextChannelID, link.ID); err != nil {
			log.Printf("ctf %s: failed to pin link: %v", ctf.Name, err)
		}
	}
	if server.RoleTeamID != "" && invokedIn != "" {
		if _, err := s.platform.SendMessage(ctx, invokedIn, &discordgo.MessageSend{
			Content: fmt.Sprintf("<@&%s> New CTF published in <#%s> 🎉", server.RoleTeamID, ctf.FeedChannelID),
		}); err != nil {
			log.Printf("ctf %s: failed to ping team role: %v", ctf.Name, err)
		}
	}
}

// OnEventStatus handles a scheduled event update. Events that do not belong to a ctf are ignored.
func (s *LifecycleService) OnEventStatus(ctx context.Context, guildId string, eventName string, before discordgo.GuildScheduledEventStatus, after discordgo.GuildScheduledEventStatus) {
	if before == after {
		return
	}
	switch after {
	case discordgo.GuildScheduledEventStatusActive:
		s.OnActive(ctx, guildId, eventName)
	case discordgo.GuildScheduledEventStatusCompleted:
		s.OnCompleted(ctx, guildId, eventName)
	}
}

func (s *LifecycleService) findForNotification(guildId string, name string) *repository.CTF {
	ctf, err := s.ctfRepository.GetCTFByName(name, guildId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("ctf %s not found on server %s, ignoring event", name, guildId)
		} else {
			log.Printf("ctf %s on server %s: %v", name, guildId, err)
		}
		return nil
	}
	return ctf
}

func (s *LifecycleService) OnActive(ctx context.Context, guildId string, name string) {
	ctf := s.findForNotification(guildId, name)
	if ctf == nil {
		return
	}
	metrics.LifecycleTransitionCounter.WithLabelValues("active").Inc()
	if _, err := s.platform.SendMessage(ctx, ctf.TextChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@&%s> The CTF has started! Good luck to all participants! :tada:", ctf.RoleID),
	}); err != nil {
		log.Printf("ctf %s: failed to announce start: %v", ctf.Name, err)
	}
	if !ctf.IsCTFd {
		return
	}
	pollClient, teamId, ok := s.connect(ctx, ctf)
	if !ok {
		return
	}
	if err := s.relays.Start(RelayTarget{
		ServerID:  ctf.ServerID,
		CTFID:     ctf.ID,
		CTFName:   ctf.Name,
		ChannelID: ctf.TextChannelID,
		RoleID:    ctf.RoleID,
		TeamID:    teamId,
		Client:    pollClient,
	}); err != nil {
		log.Printf("ctf %s: failed to start solve relay: %v", ctf.Name, err)
	}
}

// connect logs the shared account into the ctf's scoring platform and resolves the team.
func (s *LifecycleService) connect(ctx context.Context, ctf *repository.CTF) (PollClient, int, bool) {
	pollClient, err := s.pollClients(ctf.URL)
	if err != nil {
		log.Printf("ctf %s: %v", ctf.Name, err)
		return nil, 0, false
	}
	if !pollClient.Register(ctx, s.account.Username, s.account.Email, s.account.Password) {
		log.Printf("ctf %s: registration skipped or failed, trying to log in", ctf.Name)
	}
	if !pollClient.Login(ctx, s.account.Username, s.account.Password) {
		log.Printf("ctf %s: failed to log in on %s", ctf.Name, ctf.URL)
		return nil, 0, false
	}
	teamName := ctf.TeamName
	if teamName == "" {
		teamName = s.account.Username
	}
	team := pollClient.ResolveTeamId(ctx, teamName)
	if !team.IsOk() {
		log.Printf("ctf %s: team %s not resolved on %s", ctf.Name, teamName, ctf.URL)
		return nil, 0, false
	}
	return pollClient, team.Value, true
}

// OnCompleted archives the ctf. Every step runs even when an earlier one failed.
func (s *LifecycleService) OnCompleted(ctx context.Context, guildId string, name string) {
	ctf := s.findForNotification(guildId, name)
	if ctf == nil {
		return
	}
	metrics.LifecycleTransitionCounter.WithLabelValues("completed").Inc()
	server, err := s.cache.Get(guildId)
	if err != nil {
		log.Printf("ctf %s: no server configuration, channel stays in place: %v", ctf.Name, err)
	} else if _, err := s.platform.MoveChannel(ctx, ctf.TextChannelID, server.ArchiveCategoryID, 0); err != nil {
		log.Printf("ctf %s: failed to archive channel %s: %v", ctf.Name, ctf.TextChannelID, err)
	}
	if err := s.provisioner.ArchiveRole(ctx, guildId, ctf.RoleID); err != nil {
		log.Printf("ctf %s: failed to archive role %s: %v", ctf.Name, ctf.RoleID, err)
	}
	if _, err := s.platform.SendMessage(ctx, ctf.TextChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@&%s> The CTF **%s** has ended! The channel has been moved to the archived category.", ctf.RoleID, ctf.Name),
	}); err != nil {
		log.Printf("ctf %s: failed to announce end: %v", ctf.Name, err)
	}
	if s.relays.Stop(ctf.ID) {
		log.Printf("ctf %s: solve relay stopped", ctf.Name)
	}
	if ctf.IsCTFd {
		s.postSummary(ctx, ctf)
	}
}

func (s *LifecycleService) postSummary(ctx context.Context, ctf *repository.CTF) {
	pollClient, teamId, ok := s.connect(ctx, ctf)
	if !ok {
		return
	}
	team := pollClient.FetchTeam(ctx, teamId)
	if !team.IsOk() {
		log.Printf("ctf %s: failed to fetch team %d: %v", ctf.Name, teamId, team.Err)
		return
	}
	solves := pollClient.FetchSolves(ctx, teamId)
	if !solves.IsOk() {
		log.Printf("ctf %s: failed to fetch solves of team %d: %v", ctf.Name, teamId, solves.Err)
		return
	}
	if _, err := s.platform.SendMessage(ctx, ctf.TextChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{SummaryEmbed(ctf.Name, team.Value, solves.Value)},
	}); err != nil {
		log.Printf("ctf %s: failed to post summary: %v", ctf.Name, err)
	}
}

func SummaryEmbed(name string, team client.CTFdTeam, solves []client.CTFdSolve) *discordgo.MessageEmbed {
	place := "N/A"
	if team.Place != nil && *team.Place != "" {
		place = *team.Place
	}
	categories := utils.SortedUniques(utils.Map(solves, func(solve client.CTFdSolve) string {
		return solve.Challenge.Category
	}))
	solvedCategories := "-"
	if len(categories) > 0 {
		solvedCategories = strings.Join(categories, ", ")
	}
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s results", name),
		Color: EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Team", Value: team.Name, Inline: true},
			{Name: "Place", Value: place, Inline: true},
			{Name: "Score", Value: fmt.Sprint(team.Score), Inline: true},
			{Name: "Solves", Value: fmt.Sprint(len(solves)), Inline: true},
			{Name: "Categories", Value: solvedCategories},
		},
	}
}

// RemoveResult lists the ctfs removed before processing stopped.
type RemoveResult struct {
	Removed []string
}

// Removable lists the ctfs a manager may pick for removal.
func (s *LifecycleService) Removable(caller Caller, guildId string) ([]*repository.CTF, error) {
	if _, err := s.managedServer(caller, guildId); err != nil {
		return nil, err
	}
	ctfs, err := s.ctfRepository.ListCTFs(guildId)
	if err != nil {
		return nil, app_error.ExternalService("failed to list ctfs", err)
	}
	if len(ctfs) == 0 {
		return nil, app_error.NotFound("There are no CTFs to remove. ❌")
	}
	return ctfs, nil
}

// Remove deletes the platform resources of every selected ctf best effort and the row last.
// A failure to delete a row stops the batch.
func (s *LifecycleService) Remove(ctx context.Context, caller Caller, guildId string, ctfIds []int) (*RemoveResult, error) {
	if _, err := s.managedServer(caller, guildId); err != nil {
		return nil, err
	}
	result := &RemoveResult{Removed: make([]string, 0, len(ctfIds))}
	for _, ctfId := range ctfIds {
		ctf, err := s.ctfRepository.GetCTFById(ctfId)
		if err != nil || ctf.ServerID != guildId {
			return result, app_error.NotFound("Failed to get the information of the CTF. ❌")
		}
		s.relays.Stop(ctf.ID)
		s.deleteResource(ctf, "role", ctf.RoleID, func() error {
			return s.platform.DeleteRole(ctx, guildId, ctf.RoleID)
		})
		s.deleteResource(ctf, "channel", ctf.TextChannelID, func() error {
			return s.platform.DeleteChannel(ctx, ctf.TextChannelID)
		})
		s.deleteResource(ctf, "scheduled event", ctf.EventID, func() error {
			return s.platform.DeleteScheduledEvent(ctx, guildId, ctf.EventID)
		})
		s.deleteResource(ctf, "message", ctf.MessageID, func() error {
			return s.platform.DeleteMessage(ctx, ctf.FeedChannelID, ctf.MessageID)
		})
		if err := s.ctfRepository.DeleteCTF(ctf.ID); err != nil {
			log.Printf("error: ctf %s: failed to delete row: %v", ctf.Name, err)
			return result, app_error.ExternalService("failed to delete ctf "+ctf.Name, err)
		}
		metrics.CTFsRemovedCounter.Inc()
		log.Printf("ctf %s removed from server %s", ctf.Name, guildId)
		result.Removed = append(result.Removed, ctf.Name)
	}
	return result, nil
}

func (s *LifecycleService) deleteResource(ctf *repository.CTF, resource string, id string, del func() error) {
	if id == "" {
		return
	}
	if err := del(); err != nil {
		log.Printf("ctf %s: failed to delete %s %s: %v", ctf.Name, resource, id, err)
		metrics.LeakedResourceCounter.WithLabelValues(resource).Inc()
	}
}

// OnReaction grants or revokes the ctf role of the announcement that was reacted to.
func (s *LifecycleService) OnReaction(ctx context.Context, guildId string, messageId string, userId string, added bool) {
	ctf, err := s.ctfRepository.GetCTFByMessageId(messageId, guildId)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("reaction on message %s: %v", messageId, err)
		}
		return
	}
	if added {
		err = s.platform.AddMemberRole(ctx, guildId, userId, ctf.RoleID)
	} else {
		err = s.platform.RemoveMemberRole(ctx, guildId, userId, ctf.RoleID)
	}
	if err != nil {
		log.Printf("ctf %s: failed to update role of user %s: %v", ctf.Name, userId, err)
	}
}

// CreateChallenge posts a challenge card in the ctf channel and opens a thread for it.
func (s *LifecycleService) CreateChallenge(ctx context.Context, caller Caller, guildId string, channelId string, name string, description string, category string) (*discordgo.Channel, error) {
	if _, err := s.managedServer(caller, guildId); err != nil {
		return nil, err
	}
	ctf, err := s.ctfRepository.GetCTFByChannelId(channelId, guildId)
	if err != nil {
		return nil, app_error.NotFound("This command must be used inside a CTF channel. ❌")
	}
	if category == "" {
		category = "-"
	}
	if description == "" {
		description = "-"
	}
	msg, err := s.platform.SendMessage(ctx, channelId, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title: "Challenge: " + name,
			Color: EmbedColor,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Category", Value: category},
				{Name: "Description", Value: Truncate(description, 1024)},
			},
		}},
	})
	if err != nil {
		return nil, app_error.ExternalService("failed to post challenge", err)
	}
	thread, err := s.platform.StartThread(ctx, channelId, msg.ID, Truncate(name, 100))
	if err != nil {
		return nil, app_error.ExternalService("failed to open challenge thread", err)
	}
	log.Printf("ctf %s: challenge %s opened in thread %s", ctf.Name, name, thread.ID)
	return thread, nil
}

func (s *LifecycleService) ListCTFs(guildId string) ([]*repository.CTF, error) {
	ctfs, err := s.ctfRepository.ListCTFs(guildId)
	if err != nil {
		return nil, app_error.ExternalService("failed to list ctfs", err)
	}
	return ctfs, nil
}
