package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const CTFTimeBaseURL = "https://ctftime.org/api/v1"

var (
	ErrEventNotFound = errors.New("event not found on ctftime")
	ErrNetwork       = errors.New("ctftime is unreachable")
)

var eventURLRe = regexp.MustCompile(`^(?:https?://)?(?:www\.)?ctftime\.org/event/(\d+)/?$`)

// ParseEventID accepts an event url such as https://ctftime.org/event/1234 or a bare numeric id.
func ParseEventID(input string) (int, error) {
	input = strings.TrimSpace(input)
	if match := eventURLRe.FindStringSubmatch(input); match != nil {
		input = match[1]
	}
	id, err := strconv.Atoi(input)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ctftime event %q", input)
	}
	return id, nil
}

type CTFTimeClient struct {
	Client         *AsyncHttpClient
	TimeOutSeconds int
}

func NewCTFTimeClient(baseURL string) (*CTFTimeClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &CTFTimeClient{
		Client:         NewAsyncHttpClient(parsed, "ctftime", WithPolicy(Policy{MaxHits: 2, Period: time.Second})),
		TimeOutSeconds: 20,
	}, nil
}

func (c *CTFTimeClient) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(c.TimeOutSeconds)*time.Second)
}

// FetchEvent returns ErrEventNotFound for non-2xx or malformed answers and ErrNetwork when ctftime cannot be reached.
func (c *CTFTimeClient) FetchEvent(ctx context.Context, eventId int) (*CTFTimeEvent, error) {
	ctx, cancel := c.timeout(ctx)
	defer cancel()
	log.Printf("ctftime: fetching event %d", eventId)
	event, clientErr := sendRequest[CTFTimeEvent](ctx, c.Client, RequestArgs{
		Endpoint:   "events/%s/",
		PathParams: []string{strconv.Itoa(eventId)},
	})
	if clientErr != nil {
		log.Printf("ctftime: event %d: %v", eventId, clientErr)
		if clientErr.IsNetwork() {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, clientErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrEventNotFound, clientErr)
	}
	if event.Start == "" || event.Finish == "" {
		return nil, fmt.Errorf("%w: event %d has no schedule", ErrEventNotFound, eventId)
	}
	return event, nil
}

// FetchUpcoming lists events starting between now and now+window.
func (c *CTFTimeClient) FetchUpcoming(ctx context.Context, limit int, window time.Duration) ([]*CTFTimeEvent, error) {
	ctx, cancel := c.timeout(ctx)
	defer cancel()
	now := time.Now()
	events, clientErr := sendRequest[[]*CTFTimeEvent](ctx, c.Client, RequestArgs{
		Endpoint: "events/",
		QueryParams: map[string]string{
			"limit":  strconv.Itoa(limit),
			"start":  strconv.FormatInt(now.Unix(), 10),
			"finish": strconv.FormatInt(now.Add(window).Unix(), 10),
		},
	})
	if clientErr != nil {
		log.Printf("ctftime: upcoming events: %v", clientErr)
		if clientErr.IsNetwork() {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, clientErr)
		}
		return nil, fmt.Errorf("failed to list upcoming events: %w", clientErr)
	}
	return *events, nil
}

// FetchResults looks the team up in the yearly results bundle. Absent means the bundle has no entry for the team.
func (c *CTFTimeClient) FetchResults(ctx context.Context, eventId int64, year int, teamId int64) Result[TeamResult] {
	ctx, cancel := c.timeout(ctx)
	defer cancel()
	results, clientErr := sendRequest[map[string]EventResults](ctx, c.Client, RequestArgs{
		Endpoint:   "results/%s/",
		PathParams: []string{strconv.Itoa(year)},
	})
	if clientErr != nil {
		log.Printf("ctftime: results %d: %v", year, clientErr)
		return Failed[TeamResult](clientErr)
	}
	eventResults, ok := (*results)[strconv.FormatInt(eventId, 10)]
	if !ok {
		return Absent[TeamResult]()
	}
	for _, score := range eventResults.Scores {
		if score.TeamID != teamId {
			continue
		}
		points, err := strconv.ParseFloat(score.Points, 64)
		if err != nil {
			return Failed[TeamResult](fmt.Errorf("invalid points %q: %w", score.Points, err))
		}
		return Ok(TeamResult{Place: score.Place, Score: int(points), Solves: score.Solves})
	}
	return Absent[TeamResult]()
}
