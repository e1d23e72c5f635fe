package cron

import (
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

var PresenceStatuses = []string{
	"Setting up your CTF events...",
	"Syncing with CTFTime's latest info...",
	"Retrieving event details from CTFTime...",
	"Preparing for your next CTF event...",
}

type StatusSetter interface {
	SetListeningStatus(status string) error
}

// PresenceRotator cycles the bot activity through PresenceStatuses on a cron schedule.
type PresenceRotator struct {
	mu       sync.Mutex
	setter   StatusSetter
	statuses []string
	next     int
	c        *cron.Cron
}

func NewPresenceRotator(setter StatusSetter, spec string) (*PresenceRotator, error) {
	p := &PresenceRotator{
		setter:   setter,
		statuses: PresenceStatuses,
		c:        cron.New(),
	}
	if _, err := p.c.AddFunc(spec, p.Rotate); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PresenceRotator) Rotate() {
	p.mu.Lock()
	status := p.statuses[p.next]
	p.next = (p.next + 1) % len(p.statuses)
	p.mu.Unlock()
	if err := p.setter.SetListeningStatus(status); err != nil {
		log.Printf("failed to update presence: %v", err)
	}
}

// Start sets the first status right away.
func (p *PresenceRotator) Start() {
	p.Rotate()
	p.c.Start()
}

func (p *PresenceRotator) Stop() {
	<-p.c.Stop().Done()
}
