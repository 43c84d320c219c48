package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"pressbot/pkg/logger"
)

const (
	defaultRPS      = 25
	defaultBurst    = 50
	requestTimeout  = 15 * time.Second
	msgCacheEntries = 512
	// msgCacheTTL bounds how stale a cached message may be. It must stay
	// well under the reconcile sweep interval so out-of-band deletions are
	// seen as 404s, not served from cache.
	msgCacheTTL = 30 * time.Second
)

// REST is the production Client talking to the platform HTTP API. All
// outbound calls share one rate limiter so the process stays inside the
// platform's request budget. Fetched messages are cached briefly so the
// startup reconciler does not refetch the same control twice.
type REST struct {
	base  string
	token string
	hc    *fasthttp.Client
	lim   *rate.Limiter
	cache *expirable.LRU[string, Message]
}

// NewREST returns a REST client for the given API base URL and bot token.
func NewREST(base, token string, rps float64, burst int) *REST {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &REST{
		base:  base,
		token: token,
		hc: &fasthttp.Client{
			ReadTimeout:  requestTimeout,
			WriteTimeout: requestTimeout,
		},
		lim:   rate.NewLimiter(rate.Limit(rps), burst),
		cache: expirable.NewLRU[string, Message](msgCacheEntries, nil, msgCacheTTL),
	}
}

func cacheKey(channelID, messageID string) string {
	return channelID + "/" + messageID
}

// do runs one rate-limited request and returns status plus body.
func (r *REST) do(ctx context.Context, method, url, contentType string, body []byte) (int, []byte, error) {
	if err := r.lim.Wait(ctx); err != nil {
		return 0, nil, err
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.Set("Authorization", "Bot "+r.token)
	if contentType != "" {
		req.Header.SetContentType(contentType)
	}
	if body != nil {
		req.SetBody(body)
	}
	deadline := time.Now().Add(requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := r.hc.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}

func (r *REST) url(parts ...string) string {
	out := r.base
	for _, p := range parts {
		out += "/" + p
	}
	return out
}

// FetchMessage returns the message or ErrNotFound.
func (r *REST) FetchMessage(ctx context.Context, channelID, messageID string) (Message, error) {
	if m, ok := r.cache.Get(cacheKey(channelID, messageID)); ok {
		return m, nil
	}
	status, body, err := r.do(ctx, fasthttp.MethodGet, r.url("channels", channelID, "messages", messageID), "", nil)
	if err != nil {
		return Message{}, err
	}
	if status == fasthttp.StatusNotFound {
		return Message{}, ErrNotFound
	}
	if status >= 300 {
		return Message{}, fmt.Errorf("fetch message: unexpected status %d", status)
	}
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("fetch message: invalid response: %w", err)
	}
	m.ChannelID = channelID
	r.cache.Add(cacheKey(channelID, messageID), m)
	return m, nil
}

// SendMessage posts a control message to the channel.
func (r *REST) SendMessage(ctx context.Context, channelID string, payload ControlPayload) (Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	status, body, err := r.do(ctx, fasthttp.MethodPost, r.url("channels", channelID, "messages"), "application/json", b)
	if err != nil {
		return Message{}, err
	}
	if status >= 300 {
		return Message{}, fmt.Errorf("send message: unexpected status %d", status)
	}
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("send message: invalid response: %w", err)
	}
	// deliberately not cached: a sent control may be deleted out-of-band at
	// any moment, and the reconciler must observe that as a 404
	m.ChannelID = channelID
	return m, nil
}

// DeleteMessage removes the message; ErrNotFound when already gone.
func (r *REST) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	r.cache.Remove(cacheKey(channelID, messageID))
	status, _, err := r.do(ctx, fasthttp.MethodDelete, r.url("channels", channelID, "messages", messageID), "", nil)
	if err != nil {
		return err
	}
	if status == fasthttp.StatusNotFound {
		return ErrNotFound
	}
	if status >= 300 {
		return fmt.Errorf("delete message: unexpected status %d", status)
	}
	return nil
}

// CreateEndpoint provisions a delivery endpoint on the channel.
func (r *REST) CreateEndpoint(ctx context.Context, channelID, name string) (Endpoint, error) {
	b, _ := json.Marshal(map[string]string{"name": name})
	status, body, err := r.do(ctx, fasthttp.MethodPost, r.url("channels", channelID, "endpoints"), "application/json", b)
	if err != nil {
		return Endpoint{}, err
	}
	if status >= 300 {
		return Endpoint{}, fmt.Errorf("create endpoint: unexpected status %d", status)
	}
	var e Endpoint
	if err := json.Unmarshal(body, &e); err != nil {
		return Endpoint{}, fmt.Errorf("create endpoint: invalid response: %w", err)
	}
	return e, nil
}

// DeleteEndpoint tears the endpoint down; absent endpoints are ErrNotFound.
func (r *REST) DeleteEndpoint(ctx context.Context, endpointID string) error {
	status, _, err := r.do(ctx, fasthttp.MethodDelete, r.url("endpoints", endpointID), "", nil)
	if err != nil {
		return err
	}
	if status == fasthttp.StatusNotFound {
		return ErrNotFound
	}
	if status >= 300 {
		return fmt.Errorf("delete endpoint: unexpected status %d", status)
	}
	return nil
}

// ExecuteEndpoint posts the delivery attachment through the endpoint as a
// multipart form attributed to the pressing actor's display identity.
func (r *REST) ExecuteEndpoint(ctx context.Context, endpointID, token string, d Delivery) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	f, err := os.Open(d.FilePath)
	if err != nil {
		return fmt.Errorf("%w: open attachment: %v", ErrDeliveryFailed, err)
	}
	defer f.Close()
	part, err := w.CreateFormFile("file", filepath.Base(d.FilePath))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("%w: read attachment: %v", ErrDeliveryFailed, err)
	}
	_ = w.WriteField("display_name", d.DisplayName)
	if d.AvatarURL != "" {
		_ = w.WriteField("avatar_url", d.AvatarURL)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	status, _, err := r.do(ctx, fasthttp.MethodPost, r.url("endpoints", endpointID, token), w.FormDataContentType(), buf.Bytes())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if status >= 300 {
		logger.Error("endpoint_execute_failed", "endpoint", endpointID, "status", status)
		return fmt.Errorf("%w: unexpected status %d", ErrDeliveryFailed, status)
	}
	return nil
}
