package client

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// CTFdClient talks to one CTFd instance. Session cookies live as long as the client.
type CTFdClient struct {
	Client         *AsyncHttpClient
	TimeOutSeconds int
}

// NormalizeBaseURL keeps only scheme and host of a competition url.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

func NewCTFdClient(baseURL string) (*CTFdClient, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return nil, err
	}
	return &CTFdClient{
		Client:         NewAsyncHttpClient(parsed, "ctfd", WithCookieJar(), WithoutRedirects()),
		TimeOutSeconds: 20,
	}, nil
}

func (c *CTFdClient) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(c.TimeOutSeconds)*time.Second)
}

// ProbeIsHostedPlatform fails open: only a 404 on the api means the site is not a CTFd instance.
func (c *CTFdClient) ProbeIsHostedPlatform(ctx context.Context) bool {
	ctx, cancel := c.timeout(ctx)
	defer cancel()
	resp, err := c.Client.SendRequest(ctx, RequestArgs{Endpoint: "api/v1/users"})
	if err != nil {
		log.Printf("ctfd: probe %s: %v", c.Client.BaseURL(), err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode != http.StatusNotFound
}

func (c *CTFdClient) fetchNonce(ctx context.Context) (string, error) {
	body, _, clientErr := sendRawRequest(ctx, c.Client, RequestArgs{Endpoint: "register"})
	if clientErr != nil {
		return "", clientErr
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	nonce, ok := doc.Find("input#nonce").Attr("value")
	if !ok || nonce == "" {
		return "", fmt.Errorf("no nonce on register page")
	}
	return nonce, nil
}

func (c *CTFdClient) postForm(ctx context.Context, endpoint string, form url.Values) bool {
	nonce, err := c.fetchNonce(ctx)
	if err != nil {
		log.Printf("ctfd: failed to retrieve nonce from %s: %v", c.Client.BaseURL(), err)
		return false
	}
	form.Set("nonce", nonce)
	resp, err := c.Client.SendRequest(ctx, RequestArgs{
		Endpoint: endpoint,
		Method:   http.MethodPost,
		Form:     form,
	})
	if err != nil {
		log.Printf("ctfd: %s on %s failed: %v", endpoint, c.Client.BaseURL(), err)
		return false
	}
	defer resp.Body.Close()
	// CTFd redirects on success and re-renders the form with errors otherwise
	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		log.Printf("ctfd: %s on %s rejected with status %d", endpoint, c.Client.BaseURL(), resp.StatusCode)
		return false
	}
	return true
}

func (c *CTFdClient) Register(ctx context.Context, username string, email string, password string) bool {
	ctx, cancel := c.timeout(ctx)
	defer cancel()
	return c.postForm(ctx, "register", url.Values{
		"name":     {username},
		"email":    {email},
		"password": {password},
	})
}

func (c *CTFdClient) Login(ctx context.Context, username string, password string) bool {
	ctx, cancel := c.timeout(ctx)
	defer cancel()
	return c.postForm(ctx, "login", url.Values{
		"name":     {username},
		"password": {password},
	})
}

func fetchData[T any](ctx context.Context, c *CTFdClient, args RequestArgs) Result[CTFdEnvelope[T]] {
	ctx, cancel := c.timeout(ctx)
	defer cancel()
	envelope, clientErr := sendRequest[CTFdEnvelope[T]](ctx, c.Client, args)
	if clientErr != nil {
		log.Printf("ctfd: GET %s failed: %v", args.Endpoint, clientErr)
		return Failed[CTFdEnvelope[T]](clientErr)
	}
	if !envelope.Success {
		return Failed[CTFdEnvelope[T]](fmt.Errorf("ctfd: GET %s answered without success", args.Endpoint))
	}
	return Ok(*envelope)
}

// ResolveTeamId walks every page of the team listing until a team with the exact name shows up.
func (c *CTFdClient) ResolveTeamId(ctx context.Context, teamName string) Result[int] {
	first := fetchData[[]CTFdTeam](ctx, c, RequestArgs{Endpoint: "api/v1/teams"})
	if !first.IsOk() {
		return Failed[int](first.Err)
	}
	pages := 1
	if first.Value.Meta != nil && first.Value.Meta.Pagination.Pages > 0 {
		pages = first.Value.Meta.Pagination.Pages
	}
	for page := 1; page <= pages; page++ {
		teams := first
		if page > 1 {
			teams = fetchData[[]CTFdTeam](ctx, c, RequestArgs{
				Endpoint:    "api/v1/teams",
				QueryParams: map[string]string{"page": strconv.Itoa(page)},
			})
			if !teams.IsOk() {
				return Failed[int](teams.Err)
			}
		}
		for _, team := range teams.Value.Data {
			if team.Name == teamName {
				return Ok(team.Id)
			}
		}
	}
	log.Printf("ctfd: team %s not found on %s", teamName, c.Client.BaseURL())
	return Absent[int]()
}

func (c *CTFdClient) FetchTeam(ctx context.Context, teamId int) Result[CTFdTeam] {
	result := fetchData[CTFdTeam](ctx, c, RequestArgs{Endpoint: "api/v1/teams/%s", PathParams: []string{strconv.Itoa(teamId)}})
	if !result.IsOk() {
		return Failed[CTFdTeam](result.Err)
	}
	return Ok(result.Value.Data)
}

func (c *CTFdClient) FetchSolves(ctx context.Context, teamId int) Result[[]CTFdSolve] {
	result := fetchData[[]CTFdSolve](ctx, c, RequestArgs{Endpoint: "api/v1/teams/%s/solves", PathParams: []string{strconv.Itoa(teamId)}})
	if !result.IsOk() {
		return Failed[[]CTFdSolve](result.Err)
	}
	return Ok(result.Value.Data)
}

func (c *CTFdClient) FetchScoreboard(ctx context.Context) Result[[]ScoreboardEntry] {
	result := fetchData[[]ScoreboardEntry](ctx, c, RequestArgs{Endpoint: "api/v1/scoreboard"})
	if !result.IsOk() {
		return Failed[[]ScoreboardEntry](result.Err)
	}
	return Ok(result.Value.Data)
}
