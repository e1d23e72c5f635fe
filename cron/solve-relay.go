package cron

import (
	"context"
	"ctfbot/metrics"
	"ctfbot/service"
	"fmt"
	"log"
	"time"
)

// SolveEvent is one solve of the team, as relayed to every sink.
type SolveEvent struct {
	ServerID  string    `json:"server_id"`
	CTFID     int       `json:"ctf_id"`
	CTFName   string    `json:"ctf_name"`
	ChannelID string    `json:"channel_id"`
	RoleID    string    `json:"-"`
	Challenge string    `json:"challenge"`
	Category  string    `json:"category"`
	User      string    `json:"user"`
	Date      time.Time `json:"date"`
}

func (e SolveEvent) Message() string {
	return fmt.Sprintf("🏴 Flagged `%s` (%s) by **@%s** | 🕒 %s | <@&%s>", e.Challenge, e.Category, e.User, e.Date.Format("15:04"), e.RoleID)
}

// SolveRelay announces the solves a team makes on a scoring platform. The platform lists solves
// append only, so everything past the last seen count is new.
type SolveRelay struct {
	target   service.RelayTarget
	interval time.Duration
	lastSeen int
	events   chan<- SolveEvent
}

// NewSolveRelay starts counting at lastSeen, the number of solves already announced for the ctf.
func NewSolveRelay(target service.RelayTarget, interval time.Duration, lastSeen int, events chan<- SolveEvent) *SolveRelay {
	return &SolveRelay{target: target, interval: interval, lastSeen: lastSeen, events: events}
}

func (r *SolveRelay) LastSeen() int {
	return r.lastSeen
}

// Poll runs one cycle. A failed or shorter answer announces nothing and keeps the counter.
func (r *SolveRelay) Poll(ctx context.Context) {
	result := r.target.Client.FetchSolves(ctx, r.target.TeamID)
	if !result.IsOk() {
		metrics.RelayPollCounter.WithLabelValues("failed").Inc()
		log.Printf("relay %s: poll failed: %v", r.target.CTFName, result.Err)
		return
	}
	solves := result.Value
	if len(solves) < r.lastSeen {
		metrics.RelayPollCounter.WithLabelValues("shrunk").Inc()
		log.Printf("relay %s: platform reports %d solves, %d already seen", r.target.CTFName, len(solves), r.lastSeen)
		return
	}
	metrics.RelayPollCounter.WithLabelValues("ok").Inc()
	for _, solve := range solves[r.lastSeen:] {
		event := SolveEvent{
			ServerID:  r.target.ServerID,
			CTFID:     r.target.CTFID,
			CTFName:   r.target.CTFName,
			ChannelID: r.target.ChannelID,
			RoleID:    r.target.RoleID,
			Challenge: solve.Challenge.Name,
			Category:  solve.Challenge.Category,
			User:      solve.User.Name,
			Date:      solve.SolvedAt(),
		}
		select {
		case r.events <- event:
			r.lastSeen++
			metrics.SolvesRelayedCounter.Inc()
		case <-ctx.Done():
			return
		}
	}
}

// Run polls until ctx is cancelled.
func (r *SolveRelay) Run(ctx context.Context) {
	log.Printf("relay %s: started for team %d", r.target.CTFName, r.target.TeamID)
	for {
		if ctx.Err() != nil {
			break
		}
		r.Poll(ctx)
		select {
		case <-ctx.Done():
		case <-time.After(r.interval):
			continue
		}
		break
	}
	log.Printf("relay %s: stopped after %d solves", r.target.CTFName, r.lastSeen)
}
