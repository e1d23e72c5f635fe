package cron

import (
	"context"
	"ctfbot/metrics"
	"ctfbot/service"
	"log"
	"sort"
	"sync"
	"time"
)

type RelayJob struct {
	Target service.RelayTarget
	Cancel context.CancelFunc
	relay  *SolveRelay
	done   chan struct{}
}

// RelaySupervisor runs at most one solve relay per ctf. The number of solves announced for a ctf
// survives its relay, so a restarted relay picks up where the previous one stopped.
type RelaySupervisor struct {
	mu       sync.Mutex
	jobs     map[int]*RelayJob
	seen     map[int]int
	interval time.Duration
	events   chan<- SolveEvent
}

func NewRelaySupervisor(interval time.Duration, events chan<- SolveEvent) *RelaySupervisor {
	return &RelaySupervisor{
		jobs:     make(map[int]*RelayJob),
		seen:     make(map[int]int),
		interval: interval,
		events:   events,
	}
}

// Start replaces any relay already running for the same ctf.
func (s *RelaySupervisor) Start(target service.RelayTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopLocked(target.CTFID) {
		log.Printf("relay %s: restarting at %d solves", target.CTFName, s.seen[target.CTFID])
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &RelayJob{
		Target: target,
		Cancel: cancel,
		relay:  NewSolveRelay(target, s.interval, s.seen[target.CTFID], s.events),
		done:   make(chan struct{}),
	}
	s.jobs[target.CTFID] = job
	metrics.ActiveRelaysGauge.Inc()
	go func() {
		defer close(job.done)
		defer metrics.ActiveRelaysGauge.Dec()
		job.relay.Run(ctx)
	}()
	return nil
}

// Stop cancels the relay of the ctf and waits for it to exit.
func (s *RelaySupervisor) Stop(ctfId int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctfId)
}

// stopLocked requires s.mu. The relay never takes s.mu, so joining it here cannot deadlock.
func (s *RelaySupervisor) stopLocked(ctfId int) bool {
	job, ok := s.jobs[ctfId]
	if !ok {
		return false
	}
	delete(s.jobs, ctfId)
	job.Cancel()
	<-job.done
	s.seen[ctfId] = job.relay.LastSeen()
	return true
}

func (s *RelaySupervisor) StopAll() {
	for _, ctfId := range s.Running() {
		s.Stop(ctfId)
	}
	log.Print("all solve relays stopped")
}

func (s *RelaySupervisor) Running() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Announced is the number of solves relayed for the ctf by relays that have since stopped.
func (s *RelaySupervisor) Announced(ctfId int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[ctfId]
}
