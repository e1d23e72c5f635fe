package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var UserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.0.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/103.0.5060.53 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Windows; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/103.0.5060.114 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_10_5) AppleWebKit/603.3.8 (KHTML, like Gecko) Version/10.1.2 Safari/603.3.8",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Safari/605.1.15",
}

func RandomUserAgent() string {
	return UserAgents[rand.Intn(len(UserAgents))]
}

var requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ctfbot_client_request_total",
	Help: "The total number of requests by api and endpoint",
}, []string{"api", "endpoint"})

var responseCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ctfbot_client_response_total",
	Help: "The total number of responses by api and status code",
}, []string{"api", "status_code"})

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "ctfbot_client_request_duration_seconds",
	Help: "Duration of requests by api and endpoint",
}, []string{"api", "endpoint"})

type ClientError struct {
	StatusCode      int
	Code            string
	Description     string
	ResponseHeaders http.Header
}

func (e *ClientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Code, e.StatusCode, e.Description)
}

// IsNetwork reports whether the request never produced an http response.
func (e *ClientError) IsNetwork() bool {
	return e.StatusCode == 0 && e.Code == "ctfbot_client_request_error"
}

// Policy limits how many requests may be sent within a period.
type Policy struct {
	MaxHits int
	Period  time.Duration
}

func (p *Policy) CurrentHits(requestTimes []time.Time) int {
	periodStart := time.Now().Add(-p.Period)
	count := 0
	for _, t := range requestTimes {
		if t.After(periodStart) {
			count++
		}
	}
	return count
}

func (p *Policy) IsViolated(requestTimes []time.Time) bool {
	return p.CurrentHits(requestTimes) >= p.MaxHits
}

type AsyncHttpClient struct {
	mu                sync.Mutex
	requestTimestamps []time.Time
	policy            Policy
	baseURL           *url.URL
	api               string
	userAgent         func() string
	client            *http.Client
}

type ClientOption func(*AsyncHttpClient)

// WithCookieJar keeps session cookies between requests of the same client.
func WithCookieJar() ClientOption {
	return func(c *AsyncHttpClient) {
		jar, err := cookiejar.New(nil)
		if err != nil {
			log.Printf("failed to create cookie jar: %v", err)
			return
		}
		c.client.Jar = jar
	}
}

// WithoutRedirects returns 3xx responses to the caller instead of following them.
func WithoutRedirects() ClientOption {
	return func(c *AsyncHttpClient) {
		c.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
}

func WithPolicy(policy Policy) ClientOption {
	return func(c *AsyncHttpClient) {
		c.policy = policy
	}
}

func NewAsyncHttpClient(baseURL *url.URL, api string, options ...ClientOption) *AsyncHttpClient {
	c := &AsyncHttpClient{
		requestTimestamps: make([]time.Time, 0),
		policy:            Policy{MaxHits: 5, Period: time.Second},
		baseURL:           baseURL,
		api:               api,
		userAgent:         RandomUserAgent,
		client:            &http.Client{Timeout: 30 * time.Second},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type RequestArgs struct {
	Endpoint    string
	Method      string
	PathParams  []string
	QueryParams map[string]string
	Form        url.Values
	Headers     map[string]string
	// MetricLabel replaces Endpoint in request metrics when set
	MetricLabel string
}

func (c *AsyncHttpClient) BaseURL() *url.URL {
	return c.baseURL
}

func (c *AsyncHttpClient) SendRequest(ctx context.Context, requestArgs RequestArgs) (*http.Response, error) {
	method := requestArgs.Method
	if method == "" {
		method = http.MethodGet
	}
	if err := c.waitUntilRequestAllowed(ctx); err != nil {
		return nil, err
	}

	pathParams := make([]any, len(requestArgs.PathParams))
	for i, v := range requestArgs.PathParams {
		pathParams[i] = url.PathEscape(v)
	}
	requestUrl := c.baseURL.ResolveReference(&url.URL{Path: strings.TrimSuffix(c.baseURL.Path, "/") + "/" + fmt.Sprintf(requestArgs.Endpoint, pathParams...)})
	if requestArgs.QueryParams != nil {
		query := requestUrl.Query()
		for k, v := range requestArgs.QueryParams {
			query.Add(k, v)
		}
		requestUrl.RawQuery = query.Encode()
	}

	var body io.Reader
	if requestArgs.Form != nil {
		body = strings.NewReader(requestArgs.Form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, requestUrl.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	if requestArgs.Form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range requestArgs.Headers {
		req.Header.Set(k, v)
	}

	label := requestArgs.Endpoint
	if requestArgs.MetricLabel != "" {
		label = requestArgs.MetricLabel
	}
	requestCounter.WithLabelValues(c.api, label).Inc()
	timer := prometheus.NewTimer(requestDuration.WithLabelValues(c.api, label))
	defer timer.ObserveDuration()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	responseCounter.WithLabelValues(c.api, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	return resp, nil
}

func (c *AsyncHttpClient) waitUntilRequestAllowed(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.policy.IsViolated(c.requestTimestamps) {
			now := time.Now()
			c.requestTimestamps = append(c.requestTimestamps, now)
			// only the current period is needed to evaluate the policy
			kept := c.requestTimestamps[:0]
			for _, t := range c.requestTimestamps {
				if t.After(now.Add(-c.policy.Period)) {
					kept = append(kept, t)
				}
			}
			c.requestTimestamps = kept
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// sendRequest decodes a json response body into T. Every status >= 400 is returned as a ClientError.
func sendRequest[T any](ctx context.Context, client *AsyncHttpClient, args RequestArgs) (*T, *ClientError) {
	respBody, header, clientErr := sendRawRequest(ctx, client, args)
	if clientErr != nil {
		return nil, clientErr
	}
	result := new(T)
	err := json.Unmarshal(respBody, result)
	if err != nil {
		return nil, &ClientError{
			StatusCode:      http.StatusOK,
			Code:            "ctfbot_client_response_body_parse_error",
			Description:     err.Error(),
			ResponseHeaders: header,
		}
	}
	return result, nil
}

func sendRawRequest(ctx context.Context, client *AsyncHttpClient, args RequestArgs) ([]byte, http.Header, *ClientError) {
	response, err := client.SendRequest(ctx, args)
	if err != nil {
		return nil, nil, &ClientError{
			StatusCode:  0,
			Code:        "ctfbot_client_request_error",
			Description: err.Error(),
		}
	}
	defer response.Body.Close()
	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, nil, &ClientError{
			StatusCode:      0,
			Code:            "ctfbot_client_response_body_read_error",
			Description:     err.Error(),
			ResponseHeaders: response.Header,
		}
	}
	if response.StatusCode >= 400 {
		return nil, nil, &ClientError{
			StatusCode:      response.StatusCode,
			Code:            "ctfbot_client_response_status_error",
			Description:     http.StatusText(response.StatusCode),
			ResponseHeaders: response.Header,
		}
	}
	return respBody, response.Header, nil
}
