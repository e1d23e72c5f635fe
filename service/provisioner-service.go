package service

import (
	"context"
	"ctfbot/client"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	ArchivedColor = 0xD3D3D3
	EmbedColor    = 0xBEBEFE
	JoinEmoji     = "✅"
	FlagEmoji     = "🔥"
	// discord rejects longer scheduled event descriptions
	MaxEventDescription = 1000
	maxColor            = 0xFFFFFF
)

// ProvisionerService creates the per-ctf bundle of role, channel, announcement and scheduled event.
type ProvisionerService struct {
	platform    Platform
	randomColor func() int
	fetchImage  func(ctx context.Context, url string) ([]byte, error)
}

func NewProvisionerService(platform Platform) *ProvisionerService {
	return &ProvisionerService{
		platform:    platform,
		randomColor: func() int { return rand.Intn(maxColor + 1) },
		fetchImage:  client.FetchImage,
	}
}

// RoleColor never hands out the archived color.
func (p *ProvisionerService) RoleColor() int {
	for {
		color := p.randomColor()
		if color != ArchivedColor {
			return color
		}
	}
}

func (p *ProvisionerService) CreateRole(ctx context.Context, guildId string, name string) (*discordgo.Role, error) {
	color := p.RoleColor()
	hoist := true
	mentionable := true
	role, err := p.platform.CreateRole(ctx, guildId, &discordgo.RoleParams{
		Name:        name,
		Color:       &color,
		Hoist:       &hoist,
		Mentionable: &mentionable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create role %s: %w", name, err)
	}
	return role, nil
}

// ChannelOverwrites hides the channel from everyone and from managers and opens it to the ctf role.
// The everyone role shares its id with the guild.
func ChannelOverwrites(guildId string, roleId string, managerRoleId string) []*discordgo.PermissionOverwrite {
	return []*discordgo.PermissionOverwrite{
		{
			ID:   guildId,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:   managerRoleId,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    roleId,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		},
	}
}

func (p *ProvisionerService) CreateChannel(ctx context.Context, guildId string, name string, categoryId string, roleId string, managerRoleId string) (*discordgo.Channel, error) {
	channel, err := p.platform.CreateChannel(ctx, guildId, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             categoryId,
		PermissionOverwrites: ChannelOverwrites(guildId, roleId, managerRoleId),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create channel %s: %w", name, err)
	}
	return channel, nil
}

// FetchLogo returns the logo as PNG, or the default logo when it cannot be fetched or decoded.
func (p *ProvisionerService) FetchLogo(ctx context.Context, url string) []byte {
	if url == "" {
		return client.DefaultLogo()
	}
	data, err := p.fetchImage(ctx, url)
	if err != nil {
		log.Printf("failed to fetch logo %s: %v", url, err)
		return client.DefaultLogo()
	}
	converted, err := client.ToPNG(data)
	if err != nil {
		log.Printf("failed to convert logo %s: %v", url, err)
		return client.DefaultLogo()
	}
	return converted
}

// CreateScheduledEvent retries once without the image when discord rejects it.
func (p *ProvisionerService) CreateScheduledEvent(ctx context.Context, guildId string, name string, event *client.CTFTimeEvent, description string, start time.Time, end time.Time) (*discordgo.GuildScheduledEvent, error) {
	params := &client.ScheduledEventCreate{
		Name:        name,
		Description: Truncate(description, MaxEventDescription),
		Location:    event.URL,
		Start:       start,
		End:         end,
		Image:       p.FetchLogo(ctx, event.Logo),
	}
	scheduled, err := p.platform.CreateScheduledEvent(ctx, guildId, params)
	if errors.Is(err, client.ErrUnsupportedImage) {
		log.Printf("scheduled event %s: image rejected, retrying without it", name)
		params.Image = nil
		scheduled, err = p.platform.CreateScheduledEvent(ctx, guildId, params)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduled event %s: %w", name, err)
	}
	return scheduled, nil
}

func announcementEmbed(name string, event *client.CTFTimeEvent, start time.Time, end time.Time) *discordgo.MessageEmbed {
	description := fmt.Sprintf("**Description:**\n\n%s\n\n"+
		"- **Start Time:** <t:%d:f>\n"+
		"- **End Time:** <t:%d:f>\n"+
		"- **URL:** %s\n"+
		"- **Format:** %s\n"+
		"- **Location:** %s\n"+
		"- **Weight:** %.2f\n"+
		"- **Prizes:**\n%s\n",
		event.Description, start.Unix(), end.Unix(), event.URL, event.Format, event.Location, event.Weight, event.Prizes)
	embed := &discordgo.MessageEmbed{
		Title:       name,
		URL:         event.URL,
		Description: Truncate(description, 4096),
		Color:       EmbedColor,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Add a reaction to get the ctf role (only if you want to participate). 🙃",
		},
	}
	if event.Logo != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: event.Logo}
	}
	return embed
}

// PostAnnouncement sends the ctf embed and adds the join reaction that members click to get the role.
func (p *ProvisionerService) PostAnnouncement(ctx context.Context, channelId string, name string, event *client.CTFTimeEvent, start time.Time, end time.Time) (*discordgo.Message, error) {
	msg, err := p.platform.SendMessage(ctx, channelId, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{announcementEmbed(name, event, start, end)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to post announcement for %s: %w", name, err)
	}
	if err := p.platform.AddReaction(ctx, channelId, msg.ID, JoinEmoji); err != nil {
		return nil, fmt.Errorf("failed to react to announcement for %s: %w", name, err)
	}
	return msg, nil
}

// ArchiveRole turns a ctf role gray and stops it from being hoisted or mentioned.
func (p *ProvisionerService) ArchiveRole(ctx context.Context, guildId string, roleId string) error {
	color := ArchivedColor
	hoist := false
	mentionable := false
	_, err := p.platform.EditRole(ctx, guildId, roleId, &discordgo.RoleParams{
		Color:       &color,
		Hoist:       &hoist,
		Mentionable: &mentionable,
	})
	return err
}
