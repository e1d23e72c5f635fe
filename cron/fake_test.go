package cron

import (
	"context"
	"ctfbot/client"
	"errors"
	"fmt"
	"sync"
)

// scriptedPollClient answers FetchSolves from a script, repeating the last entry once exhausted.
type scriptedPollClient struct {
	mu     sync.Mutex
	script []client.Result[[]client.CTFdSolve]
	calls  int
}

func (c *scriptedPollClient) ProbeIsHostedPlatform(ctx context.Context) bool {
	return true
}

func (c *scriptedPollClient) Register(ctx context.Context, username string, email string, password string) bool {
	return true
}

func (c *scriptedPollClient) Login(ctx context.Context, username string, password string) bool {
	return true
}

func (c *scriptedPollClient) ResolveTeamId(ctx context.Context, teamName string) client.Result[int] {
	return client.Ok(1)
}

func (c *scriptedPollClient) FetchTeam(ctx context.Context, teamId int) client.Result[client.CTFdTeam] {
	return client.Ok(client.CTFdTeam{Id: teamId})
}

func (c *scriptedPollClient) FetchSolves(ctx context.Context, teamId int) client.Result[[]client.CTFdSolve] {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	c.calls++
	return c.script[i]
}

func (c *scriptedPollClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func solves(n int) []client.CTFdSolve {
	out := make([]client.CTFdSolve, n)
	for i := range out {
		out[i] = client.CTFdSolve{
			Id:        i + 1,
			Challenge: client.CTFdChallenge{Name: fmt.Sprintf("chal-%d", i+1), Category: "pwn"},
			User:      client.CTFdUser{Name: "alice"},
			Date:      "2025-03-01T12:34:56Z",
		}
	}
	return out
}

func okSolves(n int) client.Result[[]client.CTFdSolve] {
	return client.Ok(solves(n))
}

func failedSolves() client.Result[[]client.CTFdSolve] {
	return client.Failed[[]client.CTFdSolve](errors.New("boom"))
}

type recordingSink struct {
	mu     sync.Mutex
	name   string
	err    error
	events []SolveEvent
}

func (s *recordingSink) Name() string {
	return s.name
}

func (s *recordingSink) Deliver(ctx context.Context, event SolveEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
