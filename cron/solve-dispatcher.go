package cron

import (
	"context"
	"ctfbot/metrics"
	"ctfbot/service"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/segmentio/kafka-go"
)

type SolveSink interface {
	Name() string
	Deliver(ctx context.Context, event SolveEvent) error
}

// SolveDispatcher hands every relayed solve to all sinks. A failing sink does not affect the others.
type SolveDispatcher struct {
	mu     sync.RWMutex
	events chan SolveEvent
	sinks  []SolveSink
}

func NewSolveDispatcher(buffer int, sinks ...SolveSink) *SolveDispatcher {
	return &SolveDispatcher{
		events: make(chan SolveEvent, buffer),
		sinks:  sinks,
	}
}

func (d *SolveDispatcher) Events() chan<- SolveEvent {
	return d.events
}

func (d *SolveDispatcher) AddSink(sink SolveSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

func (d *SolveDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.dispatch(ctx, event)
		}
	}
}

func (d *SolveDispatcher) dispatch(ctx context.Context, event SolveEvent) {
	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := sink.Deliver(sinkCtx, event); err != nil {
			metrics.SinkErrorCounter.WithLabelValues(sink.Name()).Inc()
			log.Printf("relay %s: %s sink failed for %s: %v", event.CTFName, sink.Name(), event.Challenge, err)
		}
		cancel()
	}
}

// DiscordSolveSink posts the solve into the ctf channel.
type DiscordSolveSink struct {
	platform service.Platform
}

func NewDiscordSolveSink(platform service.Platform) *DiscordSolveSink {
	return &DiscordSolveSink{platform: platform}
}

func (s *DiscordSolveSink) Name() string {
	return "discord"
}

func (s *DiscordSolveSink) Deliver(ctx context.Context, event SolveEvent) error {
	_, err := s.platform.SendMessage(ctx, event.ChannelID, &discordgo.MessageSend{Content: event.Message()})
	return err
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSolveSink streams solves keyed by server so one server's solves stay ordered.
type KafkaSolveSink struct {
	writer MessageWriter
}

func NewKafkaSolveSink(writer MessageWriter) *KafkaSolveSink {
	return &KafkaSolveSink{writer: writer}
}

func (s *KafkaSolveSink) Name() string {
	return "kafka"
}

func (s *KafkaSolveSink) Deliver(ctx context.Context, event SolveEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ServerID),
		Value: data,
	})
}
