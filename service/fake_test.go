package service

import (
	"context"
	"ctfbot/client"
	"ctfbot/repository"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"
)

var errPlatform = errors.New("platform unavailable")

type sentMessage struct {
	ChannelID string
	Message   *discordgo.MessageSend
}

type fakePlatform struct {
	mu        sync.Mutex
	nextId    atomic.Int64
	roles     map[string]*discordgo.Role
	channels  map[string]*discordgo.Channel
	events    []*client.ScheduledEventCreate
	messages  []sentMessage
	reactions []string
	pinned    []string
	members   map[string][]string
	deleted   []string
	// operation name -> error returned by that operation
	failures map[string]error
	// number of scheduled event calls that reject their image
	imageRejections int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		roles:    make(map[string]*discordgo.Role),
		channels: make(map[string]*discordgo.Channel),
		members:  make(map[string][]string),
		failures: make(map[string]error),
	}
}

func (p *fakePlatform) id() string {
	return strconv.FormatInt(p.nextId.Add(1), 10)
}

func (p *fakePlatform) fail(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures[op]
}

func (p *fakePlatform) CreateRole(ctx context.Context, guildID string, params *discordgo.RoleParams) (*discordgo.Role, error) {
	if err := p.fail("CreateRole"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	role := &discordgo.Role{ID: p.id(), Name: params.Name, Color: *params.Color, Hoist: *params.Hoist, Mentionable: *params.Mentionable}
	p.roles[role.ID] = role
	return role, nil
}

func (p *fakePlatform) EditRole(ctx context.Context, guildID string, roleID string, params *discordgo.RoleParams) (*discordgo.Role, error) {
	if err := p.fail("EditRole"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	role, ok := p.roles[roleID]
	if !ok {
		return nil, errPlatform
	}
	if params.Color != nil {
		role.Color = *params.Color
	}
	if params.Hoist != nil {
		role.Hoist = *params.Hoist
	}
	if params.Mentionable != nil {
		role.Mentionable = *params.Mentionable
	}
	return role, nil
}

func (p *fakePlatform) DeleteRole(ctx context.Context, guildID string, roleID string) error {
	if err := p.fail("DeleteRole"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.roles, roleID)
	p.deleted = append(p.deleted, "role:"+roleID)
	return nil
}

func (p *fakePlatform) CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	if err := p.fail("CreateChannel"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	channel := &discordgo.Channel{ID: p.id(), GuildID: guildID, Name: data.Name, ParentID: data.ParentID, PermissionOverwrites: data.PermissionOverwrites}
	p.channels[channel.ID] = channel
	return channel, nil
}

func (p *fakePlatform) MoveChannel(ctx context.Context, channelID string, parentID string, position int) (*discordgo.Channel, error) {
	if err := p.fail("MoveChannel"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	channel, ok := p.channels[channelID]
	if !ok {
		return nil, errPlatform
	}
	channel.ParentID = parentID
	channel.Position = position
	return channel, nil
}

func (p *fakePlatform) DeleteChannel(ctx context.Context, channelID string) error {
	if err := p.fail("DeleteChannel"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.channels, channelID)
	p.deleted = append(p.deleted, "channel:"+channelID)
	return nil
}

func (p *fakePlatform) CreateScheduledEvent(ctx context.Context, guildID string, event *client.ScheduledEventCreate) (*discordgo.GuildScheduledEvent, error) {
	if err := p.fail("CreateScheduledEvent"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *event
	p.events = append(p.events, &copied)
	if len(event.Image) > 0 && p.imageRejections > 0 {
		p.imageRejections--
		return nil, fmt.Errorf("%w: 50035 invalid form body", client.ErrUnsupportedImage)
	}
	return &discordgo.GuildScheduledEvent{ID: p.id(), GuildID: guildID, Name: event.Name}, nil
}

func (p *fakePlatform) DeleteScheduledEvent(ctx context.Context, guildID string, eventID string) error {
	if err := p.fail("DeleteScheduledEvent"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, "event:"+eventID)
	return nil
}

func (p *fakePlatform) SendMessage(ctx context.Context, channelID string, message *discordgo.MessageSend) (*discordgo.Message, error) {
	if err := p.fail("SendMessage"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, sentMessage{ChannelID: channelID, Message: message})
	return &discordgo.Message{ID: p.id(), ChannelID: channelID, Content: message.Content}, nil
}

func (p *fakePlatform) DeleteMessage(ctx context.Context, channelID string, messageID string) error {
	if err := p.fail("DeleteMessage"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, "message:"+messageID)
	return nil
}

func (p *fakePlatform) PinMessage(ctx context.Context, channelID string, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pinned = append(p.pinned, messageID)
	return nil
}

func (p *fakePlatform) AddReaction(ctx context.Context, channelID string, messageID string, emoji string) error {
	if err := p.fail("AddReaction"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reactions = append(p.reactions, messageID+":"+emoji)
	return nil
}

func (p *fakePlatform) AddMemberRole(ctx context.Context, guildID string, userID string, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[userID] = append(p.members[userID], roleID)
	return nil
}

func (p *fakePlatform) RemoveMemberRole(ctx context.Context, guildID string, userID string, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := make([]string, 0)
	for _, id := range p.members[userID] {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	p.members[userID] = kept
	return nil
}

func (p *fakePlatform) StartThread(ctx context.Context, channelID string, messageID string, name string) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: p.id(), Name: name, ParentID: channelID}, nil
}

func (p *fakePlatform) messagesIn(channelID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	contents := make([]string, 0)
	for _, msg := range p.messages {
		if msg.ChannelID == channelID {
			contents = append(contents, msg.Message.Content)
		}
	}
	return contents
}

func notFound(what string) error {
	return fmt.Errorf("failed to find %s: %w", what, gorm.ErrRecordNotFound)
}

type fakeServerStore struct {
	mu      sync.Mutex
	servers map[string]repository.Server
	loads   int
}

func newFakeServerStore() *fakeServerStore {
	return &fakeServerStore{servers: make(map[string]repository.Server)}
}

func (s *fakeServerStore) GetServerById(serverId string) (*repository.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	server, ok := s.servers[serverId]
	if !ok {
		return nil, notFound("server")
	}
	return &server, nil
}

func (s *fakeServerStore) ReplaceServer(server *repository.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[server.ID] = *server
	return nil
}

func (s *fakeServerStore) DeleteServer(serverId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.servers[serverId]; !ok {
		return notFound("server")
	}
	delete(s.servers, serverId)
	return nil
}

type fakeCTFStore struct {
	mu     sync.Mutex
	nextId int
	ctfs   map[int]repository.CTF
	// ctf ids whose deletion fails
	failDelete map[int]bool
	// delay between the existence check and its answer, widens the create race
	checkDelay time.Duration
}

func newFakeCTFStore() *fakeCTFStore {
	return &fakeCTFStore{ctfs: make(map[int]repository.CTF), failDelete: make(map[int]bool)}
}

func (s *fakeCTFStore) AddCTF(ctf *repository.CTF) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.ctfs {
		if existing.Name == ctf.Name && existing.ServerID == ctf.ServerID {
			return fmt.Errorf("failed to create ctf %s: %w", ctf.Name, gorm.ErrDuplicatedKey)
		}
	}
	s.nextId++
	ctf.ID = s.nextId
	s.ctfs[ctf.ID] = *ctf
	return nil
}

func (s *fakeCTFStore) IsCTFPresent(name string, serverId string) (bool, error) {
	s.mu.Lock()
	present := false
	for _, ctf := range s.ctfs {
		if ctf.Name == name && ctf.ServerID == serverId {
			present = true
		}
	}
	s.mu.Unlock()
	time.Sleep(s.checkDelay)
	return present, nil
}

func (s *fakeCTFStore) find(match func(repository.CTF) bool) (*repository.CTF, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ctf := range s.ctfs {
		if match(ctf) {
			return &ctf, nil
		}
	}
	return nil, notFound("ctf")
}

func (s *fakeCTFStore) GetCTFById(ctfId int) (*repository.CTF, error) {
	return s.find(func(ctf repository.CTF) bool { return ctf.ID == ctfId })
}

func (s *fakeCTFStore) GetCTFByName(name string, serverId string) (*repository.CTF, error) {
	return s.find(func(ctf repository.CTF) bool { return ctf.Name == name && ctf.ServerID == serverId })
}

func (s *fakeCTFStore) GetCTFByMessageId(messageId string, serverId string) (*repository.CTF, error) {
	return s.find(func(ctf repository.CTF) bool { return ctf.MessageID == messageId && ctf.ServerID == serverId })
}

func (s *fakeCTFStore) GetCTFByChannelId(channelId string, serverId string) (*repository.CTF, error) {
	return s.find(func(ctf repository.CTF) bool { return ctf.TextChannelID == channelId && ctf.ServerID == serverId })
}

func (s *fakeCTFStore) ListCTFs(serverId string) ([]*repository.CTF, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctfs := make([]*repository.CTF, 0)
	for id := 1; id <= s.nextId; id++ {
		if ctf, ok := s.ctfs[id]; ok && ctf.ServerID == serverId {
			ctfs = append(ctfs, &ctf)
		}
	}
	return ctfs, nil
}

func (s *fakeCTFStore) DeleteCTF(ctfId int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete[ctfId] {
		return errors.New("connection reset")
	}
	if _, ok := s.ctfs[ctfId]; !ok {
		return notFound("ctf")
	}
	delete(s.ctfs, ctfId)
	return nil
}

func (s *fakeCTFStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ctfs)
}

type fakeReportStore struct {
	mu      sync.Mutex
	reports map[int]repository.Report
	updates int
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: make(map[int]repository.Report)}
}

func (s *fakeReportStore) GetReport(ctfId int) (*repository.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[ctfId]
	if !ok {
		return nil, notFound("report")
	}
	return &report, nil
}

func (s *fakeReportStore) UpdateReport(report *repository.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	s.reports[report.CTFID] = *report
	return nil
}

func (s *fakeReportStore) AddSolve(ctfId int, challenge string) (*repository.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[ctfId]
	if !ok {
		report = *repository.NewReport(ctfId)
	}
	report.Solves++
	if challenge != "" {
		report.Challenges = append(report.Challenges, challenge)
	}
	s.reports[ctfId] = report
	return &report, nil
}

func (s *fakeReportStore) RemoveSolve(ctfId int) (*repository.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[ctfId]
	if !ok {
		return nil, notFound("report")
	}
	report.Solves = max(report.Solves-1, 0)
	s.reports[ctfId] = report
	return &report, nil
}

type fakeCredentialsStore struct {
	mu          sync.Mutex
	credentials map[int]repository.Credentials
}

func newFakeCredentialsStore() *fakeCredentialsStore {
	return &fakeCredentialsStore{credentials: make(map[int]repository.Credentials)}
}

func (s *fakeCredentialsStore) SaveCredentials(credentials *repository.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[credentials.CTFID] = *credentials
	return nil
}

func (s *fakeCredentialsStore) GetCredentials(ctfId int) (*repository.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credentials, ok := s.credentials[ctfId]
	if !ok {
		return nil, notFound("credentials")
	}
	return &credentials, nil
}

func (s *fakeCredentialsStore) DeleteCredentials(ctfId int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[ctfId]; !ok {
		return notFound("credentials")
	}
	delete(s.credentials, ctfId)
	return nil
}

type fakeEventInfo struct {
	mu           sync.Mutex
	events       map[int]*client.CTFTimeEvent
	upcoming     []*client.CTFTimeEvent
	lastLimit    int
	results      client.Result[client.TeamResult]
	resultsCalls int
}

func newFakeEventInfo() *fakeEventInfo {
	return &fakeEventInfo{events: make(map[int]*client.CTFTimeEvent), results: client.Absent[client.TeamResult]()}
}

func (f *fakeEventInfo) FetchEvent(ctx context.Context, eventId int) (*client.CTFTimeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[eventId]
	if !ok {
		return nil, client.ErrEventNotFound
	}
	return event, nil
}

func (f *fakeEventInfo) FetchUpcoming(ctx context.Context, limit int, window time.Duration) ([]*client.CTFTimeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if limit < len(f.upcoming) {
		return f.upcoming[:limit], nil
	}
	return f.upcoming, nil
}

func (f *fakeEventInfo) FetchResults(ctx context.Context, eventId int64, year int, teamId int64) client.Result[client.TeamResult] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultsCalls++
	return f.results
}

type fakePollClient struct {
	isCTFd  bool
	loginOk bool
	teamId  int
	team    client.CTFdTeam
	solves  []client.CTFdSolve
	logins  atomic.Int32
}

func (c *fakePollClient) ProbeIsHostedPlatform(ctx context.Context) bool {
	return c.isCTFd
}

func (c *fakePollClient) Register(ctx context.Context, username string, email string, password string) bool {
	return false
}

func (c *fakePollClient) Login(ctx context.Context, username string, password string) bool {
	c.logins.Add(1)
	return c.loginOk
}

func (c *fakePollClient) ResolveTeamId(ctx context.Context, teamName string) client.Result[int] {
	if c.teamId == 0 {
		return client.Absent[int]()
	}
	return client.Ok(c.teamId)
}

func (c *fakePollClient) FetchTeam(ctx context.Context, teamId int) client.Result[client.CTFdTeam] {
	return client.Ok(c.team)
}

func (c *fakePollClient) FetchSolves(ctx context.Context, teamId int) client.Result[[]client.CTFdSolve] {
	return client.Ok(c.solves)
}

type fakeRelays struct {
	mu      sync.Mutex
	running map[int]RelayTarget
	stopped []int
}

func newFakeRelays() *fakeRelays {
	return &fakeRelays{running: make(map[int]RelayTarget)}
}

func (r *fakeRelays) Start(target RelayTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[target.CTFID] = target
	return nil
}

func (r *fakeRelays) Stop(ctfId int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[ctfId]
	delete(r.running, ctfId)
	if ok {
		r.stopped = append(r.stopped, ctfId)
	}
	return ok
}

// fixture wires every service against fakes.
type fixture struct {
	platform    *fakePlatform
	servers     *fakeServerStore
	ctfs        *fakeCTFStore
	reports     *fakeReportStore
	credentials *fakeCredentialsStore
	eventInfo   *fakeEventInfo
	pollClient  *fakePollClient
	relays      *fakeRelays
	cache       *ServerConfigCache
	server      *ServerService
	lifecycle   *LifecycleService
	report      *ReportService
	creds       *CredentialsService
}

func newFixture() *fixture {
	f := &fixture{
		platform:    newFakePlatform(),
		servers:     newFakeServerStore(),
		ctfs:        newFakeCTFStore(),
		reports:     newFakeReportStore(),
		credentials: newFakeCredentialsStore(),
		eventInfo:   newFakeEventInfo(),
		pollClient:  &fakePollClient{},
		relays:      newFakeRelays(),
	}
	f.cache = NewServerConfigCache(f.servers)
	f.server = &ServerService{serverRepository: f.servers, cache: f.cache}
	provisioner := NewProvisionerService(f.platform)
	provisioner.fetchImage = func(ctx context.Context, url string) ([]byte, error) {
		return nil, errors.New("offline")
	}
	f.lifecycle = &LifecycleService{
		ctfRepository: f.ctfs,
		cache:         f.cache,
		provisioner:   provisioner,
		platform:      f.platform,
		eventInfo:     f.eventInfo,
		pollClients: func(baseURL string) (PollClient, error) {
			return f.pollClient, nil
		},
		relays:  f.relays,
		account: PlatformAccount{Username: "bot", Email: "bot@example.com", Password: "pw"},
	}
	f.report = &ReportService{
		ctfRepository:    f.ctfs,
		reportRepository: f.reports,
		cache:            f.cache,
		platform:         f.platform,
		eventInfo:        f.eventInfo,
	}
	f.creds = &CredentialsService{
		ctfRepository:         f.ctfs,
		credentialsRepository: f.credentials,
		cache:                 f.cache,
	}
	return f
}
