package upstream

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

// Upstream application codes.
const (
	codeOK             = 0
	codeSessionInvalid = -4
)

// ErrRetriesExhausted is returned when the attempt budget runs out.
var ErrRetriesExhausted = errors.New("upstream: retries exhausted")

// ClientRejectedError is a non-429 4xx response. Never retried.
type ClientRejectedError struct {
	StatusCode int
}

func (e *ClientRejectedError) Error() string {
	return fmt.Sprintf("upstream: rejected with HTTP %d", e.StatusCode)
}

// ClientConfig holds upstream endpoint and retry settings.
type ClientConfig struct {
	LoginURL   string
	RedeemURL  string
	EncryptKey string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Client signs, rate-limits and retries calls against the two upstream
// endpoints. One instance is shared by every task in the process; the
// injected RateLimiter is what serializes their request timing.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *RateLimiter
	clock   Clock
}

// NewClient creates an upstream client. limiter must not be nil.
func NewClient(cfg ClientConfig, limiter *RateLimiter, clock Clock) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if clock == nil {
		clock = NewClock()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		clock:   clock,
	}
}

// Profile carries the account fields a login or redeem response may
// refresh.
type Profile struct {
	Nickname  string
	Kingdom   string
	AvatarURL string
}

// LoginResult is the outcome of a Login call.
type LoginResult struct {
	OK      bool
	Profile Profile
	Message string
}

// RedeemResult is the outcome of a Redeem call.
type RedeemResult struct {
	Status  Status
	Message string
	Profile Profile
}

type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Nickname    string      `json:"nickname"`
		Kid         json.Number `json:"kid"`
		AvatarImage string      `json:"avatar_image"`
	} `json:"data"`
}

func (r *apiResponse) profile() Profile {
	return Profile{
		Nickname:  r.Data.Nickname,
		Kingdom:   r.Data.Kid.String(),
		AvatarURL: r.Data.AvatarImage,
	}
}

// sign computes the request signature: parameters sorted by key,
// concatenated as key=value joined by &, secret appended, MD5 hex of
// the whole string sent as an extra "sign" field.
func (c *Client) sign(params map[string]string) url.Values {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(c.cfg.EncryptKey)

	sum := md5.Sum([]byte(b.String()))

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("sign", hex.EncodeToString(sum[:]))
	return form
}

// post performs one signed form POST, subject to the shared rate
// limiter and the per-call retry budget. Retries are an explicit loop:
// compute delay, interruptible sleep, try again.
func (c *Client) post(ctx context.Context, endpoint string, params map[string]string) (*apiResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.doOnce(ctx, endpoint, params)
		if err == nil {
			// Upstream-level "please retry" message.
			if Normalize(resp.Msg) == StatusTimeoutRetry {
				lastErr = fmt.Errorf("upstream requested retry: %s", resp.Msg)
				if attempt < c.cfg.MaxRetries {
					log.Printf("[UpstreamClient] Attempt %d: server requested retry", attempt)
					if err := c.clock.Sleep(ctx, c.transientBackoff(attempt)); err != nil {
						return nil, err
					}
					continue
				}
				// Budget spent: hand the response back and let the
				// caller classify TIMEOUT_RETRY.
				return resp, nil
			}
			return resp, nil
		}

		var rejected *ClientRejectedError
		if errors.As(err, &rejected) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if attempt < c.cfg.MaxRetries {
			delay := c.retryDelay(err, attempt)
			log.Printf("[UpstreamClient] Attempt %d failed: %v (retrying in %v)", attempt, err, delay)
			if err := c.clock.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, c.cfg.MaxRetries, lastErr)
}

// rateLimitedError is an HTTP 429, optionally carrying a server-provided
// Retry-After delay.
type rateLimitedError struct {
	retryAfter time.Duration
	hasHeader  bool
}

func (e *rateLimitedError) Error() string { return "upstream: rate limited (HTTP 429)" }

// retryDelay picks the backoff for a failed attempt. 429 honors the
// Retry-After header verbatim when present, else doubles per attempt.
// Everything else transient grows by 1.5x per attempt.
func (c *Client) retryDelay(err error, attempt int) time.Duration {
	var limited *rateLimitedError
	if errors.As(err, &limited) {
		if limited.hasHeader {
			return limited.retryAfter
		}
		return c.cfg.RetryDelay * (1 << (attempt - 1))
	}
	return c.transientBackoff(attempt)
}

func (c *Client) transientBackoff(attempt int) time.Duration {
	d := float64(c.cfg.RetryDelay)
	for i := 1; i < attempt; i++ {
		d *= 1.5
	}
	return time.Duration(d)
}

func (c *Client) doOnce(ctx context.Context, endpoint string, params map[string]string) (*apiResponse, error) {
	body := c.sign(params).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After"))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &ClientRejectedError{StatusCode: resp.StatusCode}
	default:
		return nil, fmt.Errorf("upstream returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &parsed, nil
}

func parseRetryAfter(header string) *rateLimitedError {
	if header == "" {
		return &rateLimitedError{}
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return &rateLimitedError{retryAfter: time.Duration(secs) * time.Second, hasHeader: true}
	}
	if at, err := http.ParseTime(header); err == nil {
		return &rateLimitedError{retryAfter: time.Until(at), hasHeader: true}
	}
	return &rateLimitedError{}
}

// Login authenticates a player and returns their current profile. Also
// refreshes upstream session state for a following redeem.
func (c *Client) Login(ctx context.Context, fid string) (*LoginResult, error) {
	resp, err := c.post(ctx, c.cfg.LoginURL, map[string]string{
		"fid":  fid,
		"time": timestamp(c.clock),
	})
	if err != nil {
		return nil, err
	}

	if resp.Code == codeOK && resp.Msg == "success" {
		return &LoginResult{OK: true, Profile: resp.profile(), Message: resp.Msg}, nil
	}
	return &LoginResult{OK: false, Message: resp.Msg}, nil
}

// Redeem claims a gift code for a player. A fresh login always runs
// first to refresh the session and capture current profile fields. If
// the redeem response reports an invalid session, exactly one
// re-login-and-retry happens before giving up.
func (c *Client) Redeem(ctx context.Context, fid, code string) (*RedeemResult, error) {
	login, err := c.Login(ctx, fid)
	if err != nil {
		return nil, fmt.Errorf("login for %s failed: %w", fid, err)
	}
	if !login.OK {
		return &RedeemResult{Status: StatusNotLogin, Message: login.Message}, nil
	}

	params := map[string]string{
		"fid":  fid,
		"cdk":  code,
		"time": timestamp(c.clock),
	}

	resp, err := c.post(ctx, c.cfg.RedeemURL, params)
	if err != nil {
		return nil, err
	}

	if resp.Code == codeSessionInvalid || Normalize(resp.Msg) == StatusNotLogin {
		log.Printf("[UpstreamClient] Session invalid for %s, re-logging in once", fid)
		relogin, err := c.Login(ctx, fid)
		if err != nil {
			return nil, fmt.Errorf("re-login for %s failed: %w", fid, err)
		}
		if relogin.OK {
			login = relogin
			params["time"] = timestamp(c.clock)
			resp, err = c.post(ctx, c.cfg.RedeemURL, params)
			if err != nil {
				return nil, err
			}
		}
	}

	status := Normalize(resp.Msg)
	if resp.Code == codeSessionInvalid {
		status = StatusNotLogin
	}

	return &RedeemResult{
		Status:  status,
		Message: resp.Msg,
		Profile: login.Profile,
	}, nil
}

func timestamp(clock Clock) string {
	return strconv.FormatInt(clock.Now().UnixMilli(), 10)
}
