package service

import (
	"bytes"
	"context"
	"ctfbot/client"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleColorRerollsArchivedColor(t *testing.T) {
	colors := []int{ArchivedColor, ArchivedColor, 0x123456}
	p := NewProvisionerService(newFakePlatform())
	p.randomColor = func() int {
		next := colors[0]
		colors = colors[1:]
		return next
	}
	assert.Equal(t, 0x123456, p.RoleColor())

	p = NewProvisionerService(newFakePlatform())
	for i := 0; i < 10000; i++ {
		c := p.RoleColor()
		assert.NotEqual(t, ArchivedColor, c)
		assert.LessOrEqual(t, c, 0xFFFFFF)
	}
}

func TestCreateRoleIsHoistedAndMentionable(t *testing.T) {
	platform := newFakePlatform()
	role, err := NewProvisionerService(platform).CreateRole(context.Background(), guildId, "Foo CTF - 2025")
	require.NoError(t, err)
	assert.True(t, role.Hoist)
	assert.True(t, role.Mentionable)
	assert.NotEqual(t, ArchivedColor, role.Color)
}

func TestChannelOverwrites(t *testing.T) {
	overwrites := ChannelOverwrites(guildId, "ctf-role", "manager-role")
	bySubject := make(map[string]*discordgo.PermissionOverwrite)
	for _, overwrite := range overwrites {
		assert.Equal(t, discordgo.PermissionOverwriteTypeRole, overwrite.Type)
		bySubject[overwrite.ID] = overwrite
	}
	require.Len(t, bySubject, 3)

	canView := func(id string) bool {
		return bySubject[id].Allow&discordgo.PermissionViewChannel != 0 && bySubject[id].Deny&discordgo.PermissionViewChannel == 0
	}
	assert.False(t, canView(guildId))
	assert.False(t, canView("manager-role"))
	assert.True(t, canView("ctf-role"))
	assert.NotZero(t, bySubject["ctf-role"].Allow&discordgo.PermissionSendMessages)
	assert.Equal(t, guildId, overwrites[0].ID)
}

func TestScheduledEventRetriesOnceWithoutImage(t *testing.T) {
	event := fooEvent()
	start, end := time.Now(), time.Now().Add(time.Hour)

	platform := newFakePlatform()
	platform.imageRejections = 1
	p := NewProvisionerService(platform)
	p.fetchImage = func(ctx context.Context, url string) ([]byte, error) { return nil, errors.New("offline") }
	_, err := p.CreateScheduledEvent(context.Background(), guildId, "Foo CTF - 2025", event, event.Description, start, end)
	require.NoError(t, err)
	require.Len(t, platform.events, 2)
	assert.NotEmpty(t, platform.events[0].Image)
	assert.Empty(t, platform.events[1].Image)

	platform = newFakePlatform()
	platform.failures["CreateScheduledEvent"] = errPlatform
	p = NewProvisionerService(platform)
	p.fetchImage = func(ctx context.Context, url string) ([]byte, error) { return nil, errors.New("offline") }
	_, err = p.CreateScheduledEvent(context.Background(), guildId, "Foo CTF - 2025", event, event.Description, start, end)
	assert.ErrorIs(t, err, errPlatform)
}

type rejectingPlatform struct {
	*fakePlatform
	calls int
}

func (p *rejectingPlatform) CreateScheduledEvent(ctx context.Context, guildID string, event *client.ScheduledEventCreate) (*discordgo.GuildScheduledEvent, error) {
	p.calls++
	return nil, client.ErrUnsupportedImage
}

func TestScheduledEventRetryIsBounded(t *testing.T) {
	platform := &rejectingPlatform{fakePlatform: newFakePlatform()}
	p := NewProvisionerService(platform)
	p.fetchImage = func(ctx context.Context, url string) ([]byte, error) { return nil, errors.New("offline") }
	event := fooEvent()
	_, err := p.CreateScheduledEvent(context.Background(), guildId, "Foo CTF - 2025", event, "", time.Now(), time.Now())
	assert.ErrorIs(t, err, client.ErrUnsupportedImage)
	assert.Equal(t, 2, platform.calls)
}

func TestScheduledEventDescriptionIsCapped(t *testing.T) {
	platform := newFakePlatform()
	p := NewProvisionerService(platform)
	event := fooEvent()
	event.Logo = ""
	_, err := p.CreateScheduledEvent(context.Background(), guildId, "x", event, string(bytes.Repeat([]byte("a"), 3000)), time.Now(), time.Now())
	require.NoError(t, err)
	assert.Len(t, platform.events[0].Description, MaxEventDescription)
}

func TestFetchLogoNormalizesToPNG(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	buf := new(bytes.Buffer)
	require.NoError(t, gif.Encode(buf, img, nil))

	p := NewProvisionerService(newFakePlatform())
	p.fetchImage = func(ctx context.Context, url string) ([]byte, error) { return buf.Bytes(), nil }
	logo := p.FetchLogo(context.Background(), "https://ctftime.org/logo.gif")
	_, format, err := image.Decode(bytes.NewReader(logo))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	p.fetchImage = func(ctx context.Context, url string) ([]byte, error) { return []byte("<html>"), nil }
	assert.Equal(t, client.DefaultLogo(), p.FetchLogo(context.Background(), "https://ctftime.org/logo.gif"))
	assert.Equal(t, client.DefaultLogo(), p.FetchLogo(context.Background(), ""))
}

func TestPostAnnouncementReactsWithJoinEmoji(t *testing.T) {
	platform := newFakePlatform()
	event := fooEvent()
	msg, err := NewProvisionerService(platform).PostAnnouncement(context.Background(), "feed", "Foo CTF - 2025", event, time.Unix(1735689600, 0), time.Unix(1735776000, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{msg.ID + ":" + JoinEmoji}, platform.reactions)
	embed := platform.messages[0].Message.Embeds[0]
	assert.Equal(t, "Foo CTF - 2025", embed.Title)
	assert.Equal(t, EmbedColor, embed.Color)
	assert.Contains(t, embed.Description, "<t:1735689600:f>")
}
