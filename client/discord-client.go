package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var discordRequestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ctfbot_discord_request_total",
	Help: "Discord rest calls by operation and outcome",
}, []string{"operation", "outcome"})

func observe(operation string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	discordRequestCounter.WithLabelValues(operation, outcome).Inc()
	return err
}

func observed[T any](operation string) func(T, error) (T, error) {
	return func(value T, err error) (T, error) {
		return value, observe(operation, err)
	}
}

var ErrUnsupportedImage = errors.New("discord rejected the image")

// ScheduledEventCreate is the payload for an external scheduled event.
type ScheduledEventCreate struct {
	Name        string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	// PNG bytes, omitted when empty
	Image []byte
}

type scheduledEventPayload struct {
	Name               string                                      `json:"name"`
	Description        string                                      `json:"description,omitempty"`
	PrivacyLevel       discordgo.GuildScheduledEventPrivacyLevel   `json:"privacy_level"`
	EntityType         discordgo.GuildScheduledEventEntityType     `json:"entity_type"`
	EntityMetadata     discordgo.GuildScheduledEventEntityMetadata `json:"entity_metadata"`
	ScheduledStartTime time.Time                                   `json:"scheduled_start_time"`
	ScheduledEndTime   time.Time                                   `json:"scheduled_end_time"`
	Image              string                                      `json:"image,omitempty"`
}

// DiscordClient is the rest side of the bot session.
type DiscordClient struct {
	Session *discordgo.Session
}

func NewDiscordClient(session *discordgo.Session) *DiscordClient {
	return &DiscordClient{Session: session}
}

func (c *DiscordClient) CreateRole(ctx context.Context, guildID string, params *discordgo.RoleParams) (*discordgo.Role, error) {
	return observed[*discordgo.Role]("create_role")(c.Session.GuildRoleCreate(guildID, params, discordgo.WithContext(ctx)))
}

func (c *DiscordClient) EditRole(ctx context.Context, guildID string, roleID string, params *discordgo.RoleParams) (*discordgo.Role, error) {
	return observed[*discordgo.Role]("edit_role")(c.Session.GuildRoleEdit(guildID, roleID, params, discordgo.WithContext(ctx)))
}

func (c *DiscordClient) DeleteRole(ctx context.Context, guildID string, roleID string) error {
	return observe("delete_role", c.Session.GuildRoleDelete(guildID, roleID, discordgo.WithContext(ctx)))
}

func (c *DiscordClient) CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	return observed[*discordgo.Channel]("create_channel")(c.Session.GuildChannelCreateComplex(guildID, data, discordgo.WithContext(ctx)))
}

// MoveChannel sets parent and position in one call so the channel lands at the top of the new category.
func (c *DiscordClient) MoveChannel(ctx context.Context, channelID string, parentID string, position int) (*discordgo.Channel, error) {
	endpoint := discordgo.EndpointChannel(channelID)
	body, err := c.Session.RequestWithBucketID(http.MethodPatch, endpoint, map[string]any{
		"parent_id": parentID,
		"position":  position,
	}, endpoint, discordgo.WithContext(ctx))
	if observe("move_channel", err) != nil {
		return nil, err
	}
	channel := &discordgo.Channel{}
	if err := json.Unmarshal(body, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

func (c *DiscordClient) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := c.Session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return observe("delete_channel", err)
}

// CreateScheduledEvent wraps image rejections in ErrUnsupportedImage.
func (c *DiscordClient) CreateScheduledEvent(ctx context.Context, guildID string, event *ScheduledEventCreate) (*discordgo.GuildScheduledEvent, error) {
	payload := scheduledEventPayload{
		Name:               event.Name,
		Description:        event.Description,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
		EntityType:         discordgo.GuildScheduledEventEntityTypeExternal,
		EntityMetadata:     discordgo.GuildScheduledEventEntityMetadata{Location: event.Location},
		ScheduledStartTime: event.Start,
		ScheduledEndTime:   event.End,
	}
	if len(event.Image) > 0 {
		payload.Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString(event.Image)
	}
	endpoint := discordgo.EndpointGuildScheduledEvents(guildID)
	body, err := c.Session.RequestWithBucketID(http.MethodPost, endpoint, payload, endpoint, discordgo.WithContext(ctx))
	if observe("create_scheduled_event", err) != nil {
		if isImageRejection(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
		return nil, err
	}
	created := &discordgo.GuildScheduledEvent{}
	if err := json.Unmarshal(body, created); err != nil {
		return nil, err
	}
	return created, nil
}

func isImageRejection(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	body := strings.ToLower(string(restErr.ResponseBody))
	return strings.Contains(body, "unsupported image") || strings.Contains(body, "image_invalid")
}

func (c *DiscordClient) DeleteScheduledEvent(ctx context.Context, guildID string, eventID string) error {
	return observe("delete_scheduled_event", c.Session.GuildScheduledEventDelete(guildID, eventID, discordgo.WithContext(ctx)))
}

func (c *DiscordClient) SendMessage(ctx context.Context, channelID string, message *discordgo.MessageSend) (*discordgo.Message, error) {
	return observed[*discordgo.Message]("send_message")(c.Session.ChannelMessageSendComplex(channelID, message, discordgo.WithContext(ctx)))
}

func (c *DiscordClient) DeleteMessage(ctx context.Context, channelID string, messageID string) error {
	return observe("delete_message", c.Session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (c *DiscordClient) PinMessage(ctx context.Context, channelID string, messageID string) error {
	return observe("pin_message", c.Session.ChannelMessagePin(channelID, messageID, discordgo.WithContext(ctx)))
}

func (c *DiscordClient) AddReaction(ctx context.Context, channelID string, messageID string, emoji string) error {
	return observe("add_reaction", c.Session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)))
}

func (c *DiscordClient) AddMemberRole(ctx context.Context, guildID string, userID string, roleID string) error {
	return observe("add_member_role", c.Session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (c *DiscordClient) RemoveMemberRole(ctx context.Context, guildID string, userID string, roleID string) error {
	return observe("remove_member_role", c.Session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (c *DiscordClient) StartThread(ctx context.Context, channelID string, messageID string, name string) (*discordgo.Channel, error) {
	return observed[*discordgo.Channel]("start_thread")(c.Session.MessageThreadStartComplex(channelID, messageID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: 4320,
	}, discordgo.WithContext(ctx)))
}

func (c *DiscordClient) SetListeningStatus(status string) error {
	return observe("update_status", c.Session.UpdateListeningStatus(status))
}
