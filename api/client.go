// Package api is the single outbound client for the SwingSense backend. Every
// call passes through AttachCredential immediately before it is dispatched.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/swingsense/internal/errors"
	"github.com/jrsteele09/swingsense/internal/metrics"
	"github.com/jrsteele09/swingsense/session"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	tracerName = "github.com/jrsteele09/swingsense/api"
)

// SessionGetter is the part of a session.Source the client needs.
type SessionGetter interface {
	GetSession(ctx context.Context) (*session.Session, error)
}

type Config struct {
	BaseURL        string
	DefaultHeaders map[string]string
	Timeout        time.Duration
}

// BeforeDispatch runs on every outgoing request after the credential has been
// attached. Returning an error aborts the call.
type BeforeDispatch func(ctx context.Context, req *http.Request) error

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithBeforeDispatch(hook BeforeDispatch) Option {
	return func(c *Client) {
		c.hooks = append(c.hooks, hook)
	}
}

func WithMetrics(recorder metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = recorder
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client is the API Gateway. One instance is shared by the whole process.
type Client struct {
	baseURL    *url.URL
	headers    http.Header
	httpClient *http.Client
	sessions   SessionGetter
	hooks      []BeforeDispatch
	metrics    metrics.Recorder
	now        func() time.Time
	tracer     trace.Tracer

	Questions *QuestionsService
	Feedback  *FeedbackService
	Plans     *PlansService
	Resources *ResourcesService
	Progress  *ProgressService
	Profile   *ProfileService
}

func New(cfg Config, sessions SessionGetter, opts ...Option) (*Client, error) {
	if sessions == nil {
		return nil, fmt.Errorf("api client needs a session getter: %w", apperrors.ErrInvalidRequest)
	}

	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%q: %w", raw, apperrors.ErrInvalidBaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	for k, v := range cfg.DefaultHeaders {
		headers.Set(k, v)
	}

	c := &Client{
		baseURL:    base,
		headers:    headers,
		httpClient: &http.Client{Timeout: timeout},
		sessions:   sessions,
		metrics:    metrics.Nop{},
		now:        time.Now,
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Questions = &QuestionsService{client: c}
	c.Feedback = &FeedbackService{client: c}
	c.Plans = &PlansService{client: c}
	c.Resources = &ResourcesService{client: c}
	c.Progress = &ProgressService{client: c}
	c.Profile = &ProfileService{client: c}
	return c, nil
}

// BaseURL returns the backend root every path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// AttachCredential sets "Authorization: Bearer <token>" from the current
// session, or removes the header when there is no valid session. It asks the
// session source every time; the credential is never cached.
func (c *Client) AttachCredential(ctx context.Context, req *http.Request) {
	s, err := c.sessions.GetSession(ctx)
	if err != nil {
		log.Warn().Err(err).Str("path", req.URL.Path).Msg("session lookup failed, sending request without credential")
		req.Header.Del("Authorization")
		return
	}
	if !s.Valid(c.now()) {
		req.Header.Del("Authorization")
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)
}

// call describes one round trip to the backend.
type call struct {
	group  string
	op     string
	method string
	path   string
	query  url.Values
	body   any
}

func (c call) name() string {
	return c.group + "." + c.op
}

// do performs exactly one request and decodes a successful body into out.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	ctx, span := c.tracer.Start(ctx, "api."+cl.name(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", cl.method),
			attribute.String("url.path", cl.path),
		),
	)
	defer span.End()

	started := time.Now()
	status, err := c.roundTrip(ctx, cl, out)
	c.metrics.RecordRequest(cl.group, cl.op, status, time.Since(started))

	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug().Err(err).Str("op", cl.name()).Int("status", status).Msg("api call failed")
		return err
	}
	log.Debug().Str("op", cl.name()).Int("status", status).Dur("took", time.Since(started)).Msg("api call")
	return nil
}

func (c *Client) roundTrip(ctx context.Context, cl call, out any) (int, error) {
	req, err := c.newRequest(ctx, cl)
	if err != nil {
		return 0, err
	}

	c.AttachCredential(ctx, req)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	for _, hook := range c.hooks {
		if err := hook(ctx, req); err != nil {
			return 0, apperrors.Wrapf(err, "%s: before dispatch", cl.name())
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &TransportError{Op: cl.name(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &TransportError{Op: cl.name(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, newHTTPError(cl.name(), resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%s: %w: %v", cl.name(), apperrors.ErrDecode, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", cl.name(), err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", cl.name(), err)
	}
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	return req, nil
}
