package controller

import (
	"context"
	"ctfbot/auth"
	"ctfbot/client"
	"ctfbot/cron"
	"ctfbot/repository"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/cache/persistence"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	router   *gin.Engine
	ctfs     *fakeCTFs
	calendar *fakeCalendar
	hub      *SolveHub
}

func newApiFixture() *apiFixture {
	gin.SetMode(gin.TestMode)
	f := &apiFixture{
		ctfs:     &fakeCTFs{ctfs: []*repository.CTF{{ID: 7, Name: "Foo CTF - 2025", TextChannelID: "ctf-channel"}}},
		calendar: &fakeCalendar{events: []*client.CTFTimeEvent{{Id: 1, Title: "One"}}},
		hub:      NewSolveHub(),
	}
	f.router = gin.New()
	SetRoutes(f.router, ApiDependencies{
		CacheStore: persistence.NewInMemoryStore(time.Minute),
		CTFs:       f.ctfs,
		Reports:    &fakeFlags{},
		Calendar:   f.calendar,
		Solves:     f.hub,
		Version:    "1.2.3",
	})
	return f
}

func (f *apiFixture) get(t *testing.T, path string, token string) *httptest.ResponseRecorder {
	req, err := http.NewRequest("GET", path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, serverId string) string {
	token, err := auth.CreateToken(serverId, "user")
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	f := newApiFixture()
	w := f.get(t, "/api/health", "")
	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3"}`, w.Body.String())
}

func TestUpcomingIsCached(t *testing.T) {
	f := newApiFixture()
	for i := 0; i < 3; i++ {
		w := f.get(t, "/api/ctfs/upcoming?limit=3", "")
		assert.Equal(t, 200, w.Code)
		var events []UpcomingResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
		require.Len(t, events, 1)
		assert.Equal(t, "One", events[0].Title)
	}
	assert.Equal(t, 1, f.calendar.calls)

	assert.Equal(t, 400, f.get(t, "/api/ctfs/upcoming?limit=abc", "").Code)
}

func TestServerRoutesRequireMatchingToken(t *testing.T) {
	f := newApiFixture()
	assert.Equal(t, 401, f.get(t, "/api/servers/guild/ctfs", "").Code)
	assert.Equal(t, 401, f.get(t, "/api/servers/guild/ctfs", "garbage").Code)
	assert.Equal(t, 403, f.get(t, "/api/servers/guild/ctfs", tokenFor(t, "other")).Code)

	w := f.get(t, "/api/servers/guild/ctfs", tokenFor(t, "guild"))
	assert.Equal(t, 200, w.Code)
	var ctfs []CTFResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ctfs))
	require.Len(t, ctfs, 1)
	assert.Equal(t, "ctf-channel", ctfs[0].ChannelId)
}

func TestReportEndpoint(t *testing.T) {
	f := newApiFixture()
	token := tokenFor(t, "guild")

	w := f.get(t, "/api/servers/guild/ctfs/7/report", token)
	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"ctf_id":7,"name":"Foo CTF - 2025","solves":0,"challenges":[]}`, w.Body.String())

	assert.Equal(t, 404, f.get(t, "/api/servers/guild/ctfs/8/report", token).Code)
	assert.Equal(t, 400, f.get(t, "/api/servers/guild/ctfs/x/report", token).Code)
}

func TestSolveFeedStreamsServerSolves(t *testing.T) {
	f := newApiFixture()
	server := httptest.NewServer(f.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/servers/guild/solves/ws?token=" + tokenFor(t, "guild")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return f.hub.Subscribers("guild") == 1 }, time.Second, time.Millisecond)

	require.NoError(t, f.hub.Deliver(context.Background(), cron.SolveEvent{ServerID: "other", Challenge: "hidden"}))
	require.NoError(t, f.hub.Deliver(context.Background(), cron.SolveEvent{ServerID: "guild", Challenge: "chal", User: "alice"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var event cron.SolveEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "chal", event.Challenge)
	assert.Equal(t, "alice", event.User)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/servers/guild/solves/ws?token="+tokenFor(t, "other"), nil)
	assert.Error(t, err)
}
