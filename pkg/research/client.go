package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	errs "tiktokgraph/pkg/errors"
	"tiktokgraph/pkg/graph"
	"tiktokgraph/pkg/logger"
	"tiktokgraph/pkg/retry"
)

// ClientConfig holds what a Client needs to reach the Research API
type ClientConfig struct {
	BaseURL      string
	ClientKey    string
	ClientSecret string
	Timeout      time.Duration
	// RequestsPerMinute paces outgoing requests; 0 disables pacing
	RequestsPerMinute int
	BurstSize         int
	// Retry is the policy for transient failures; nil uses retry.DefaultConfig
	Retry *retry.Config
	// HTTPClient is the transport used for token and API requests
	HTTPClient *http.Client
}

// Client talks to the TikTok Research API. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a Research API client. The access token is fetched on
// first use and refreshed by the token source when it expires.
func NewClient(cfg ClientConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	credentials := clientcredentials.Config{
		ClientID:     cfg.ClientKey,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     TokenURL(cfg.BaseURL),
		// TikTok calls the client id client_key
		EndpointParams: url.Values{"client_key": {cfg.ClientKey}},
		AuthStyle:      oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := credentials.Client(tokenCtx)
	httpClient.Timeout = cfg.Timeout

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}

	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
		retryCfg.Logger = log
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		limiter:    rate.NewLimiter(limit, burst),
		retry:      retryCfg,
		logger:     log,
	}
}

// UserInfo fetches the public profile of handle
func (c *Client) UserInfo(ctx context.Context, handle string) (*UserInfo, error) {
	c.logger.DebugWithFields("fetching user info", map[string]interface{}{
		"handle": handle,
	})

	var info UserInfo
	if err := c.postJSON(ctx, UserInfoURL(c.baseURL), userInfoRequest{Username: handle}, &info); err != nil {
		c.logger.ErrorWithFields("failed to fetch user info", map[string]interface{}{
			"handle": handle,
			"error":  err.Error(),
		})
		return nil, err
	}
	info.Username = handle

	return &info, nil
}

// Followers fetches one page of the accounts following handle
func (c *Client) Followers(ctx context.Context, handle string, cursor int64, maxCount int) (*RelationPage, error) {
	var data followersData
	req := relationRequest{Username: handle, MaxCount: clampPageSize(maxCount), Cursor: cursor}
	if err := c.postJSON(ctx, FollowersURL(c.baseURL), req, &data); err != nil {
		return nil, err
	}
	return &RelationPage{Users: data.UserFollowers, Cursor: data.Cursor, HasMore: data.HasMore}, nil
}

// Following fetches one page of the accounts handle follows
func (c *Client) Following(ctx context.Context, handle string, cursor int64, maxCount int) (*RelationPage, error) {
	var data followingData
	req := relationRequest{Username: handle, MaxCount: clampPageSize(maxCount), Cursor: cursor}
	if err := c.postJSON(ctx, FollowingURL(c.baseURL), req, &data); err != nil {
		return nil, err
	}
	return &RelationPage{Users: data.UserFollowing, Cursor: data.Cursor, HasMore: data.HasMore}, nil
}

// AllFollowers collects up to totalCount followers of every handle, as
// follower -> handle edges. totalCount <= 0 means no limit.
func (c *Client) AllFollowers(ctx context.Context, handles []string, maxCount, totalCount int) ([]graph.Edge, error) {
	return c.collect(ctx, "followers", handles, maxCount, totalCount, c.Followers, func(handle, other string) graph.Edge {
		return graph.Edge{Source: other, Target: handle}
	})
}

// AllFollowing collects up to totalCount followed accounts of every handle,
// as handle -> followed edges. totalCount <= 0 means no limit.
func (c *Client) AllFollowing(ctx context.Context, handles []string, maxCount, totalCount int) ([]graph.Edge, error) {
	return c.collect(ctx, "following", handles, maxCount, totalCount, c.Following, func(handle, other string) graph.Edge {
		return graph.Edge{Source: handle, Target: other}
	})
}

type pageFunc func(ctx context.Context, handle string, cursor int64, maxCount int) (*RelationPage, error)

func (c *Client) collect(ctx context.Context, kind string, handles []string, maxCount, totalCount int, page pageFunc, edge func(handle, other string) graph.Edge) ([]graph.Edge, error) {
	var edges []graph.Edge

	for _, handle := range handles {
		var cursor int64
		collected := 0

		for {
			p, err := page(ctx, handle, cursor, maxCount)
			if err != nil {
				return edges, fmt.Errorf("fetching %s of %s: %w", kind, handle, err)
			}

			for _, u := range p.Users {
				if totalCount > 0 && collected >= totalCount {
					break
				}
				edges = append(edges, edge(handle, u.Username))
				collected++
			}

			if !p.HasMore || len(p.Users) == 0 || (totalCount > 0 && collected >= totalCount) {
				break
			}
			cursor = p.Cursor
		}

		c.logger.DebugWithFields("collected relations", map[string]interface{}{
			"kind":   kind,
			"handle": handle,
			"count":  collected,
		})
	}

	return edges, nil
}

// postJSON sends payload to endpoint and decodes the data object into target,
// retrying transient failures
func (c *Client) postJSON(ctx context.Context, endpoint string, payload, target interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to encode request: %v", err),
			Err:     err,
		}
	}

	return retry.Do(ctx, func() error {
		return c.doPost(ctx, endpoint, body, target)
	}, c.retry)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body []byte, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("request pacing: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Err:     err,
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error apiError        `json:"error"`
	}
	decodeErr := json.Unmarshal(data, &envelope)

	if err := c.checkResponseStatus(resp, envelope.Error); err != nil {
		return err
	}

	if decodeErr != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          endpoint,
			"status":       resp.StatusCode,
			"error":        decodeErr.Error(),
			"body_preview": preview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", decodeErr),
			Code:    resp.StatusCode,
			Err:     decodeErr,
		}
	}

	if envelope.Error.Code != "" && envelope.Error.Code != "ok" {
		return apiErrorToError(envelope.Error, resp.StatusCode)
	}

	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse data: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	return nil
}

// doRequest sends req and maps transport and token failures to typed errors
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var tokenErr *oauth2.RetrieveError
		if errors.As(err, &tokenErr) {
			code := 0
			if tokenErr.Response != nil {
				code = tokenErr.Response.StatusCode
			}
			c.logger.WarnWithFields("access token request failed", map[string]interface{}{
				"status": code,
				"error":  tokenErr.Error(),
			})
			e := &errs.Error{
				Type:    errs.ErrorTypeAuth,
				Message: "failed to obtain access token",
				Code:    code,
				Err:     err,
			}
			if code >= 500 {
				e.Type = errs.ErrorTypeServerError
			}
			return nil, e
		}

		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Err:     err,
		}
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)

	return resp, nil
}

// checkResponseStatus maps the HTTP status to a typed error, using the API's
// error message when the body carried one
func (c *Client) checkResponseStatus(resp *http.Response, apiErr apiError) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	message := func(fallback string) string {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
		"code":   apiErr.Code,
		"log_id": apiErr.LogID,
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", fields)
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: message("authentication required"), Code: resp.StatusCode}
	case http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", fields)
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: message("resource not found"), Code: resp.StatusCode}
	case http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", fields)
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: message("rate limit exceeded"), Code: resp.StatusCode}
	default:
		if resp.StatusCode >= 500 {
			c.logger.ErrorWithFields("server error", fields)
			return &errs.Error{Type: errs.ErrorTypeServerError, Message: message("server error"), Code: resp.StatusCode}
		}
		if resp.StatusCode >= 400 {
			c.logger.ErrorWithFields("unexpected API error", fields)
			if apiErr.Code != "" {
				return apiErrorToError(apiErr, resp.StatusCode)
			}
			return &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
				Code:    resp.StatusCode,
			}
		}
		return nil
	}
}

// apiErrorToError maps an error object of the API to a typed error
func apiErrorToError(apiErr apiError, status int) *errs.Error {
	t := errs.ErrorTypeUnknown
	switch apiErr.Code {
	case "rate_limit_exceeded":
		t = errs.ErrorTypeRateLimit
	case "access_token_invalid", "scope_not_authorized", "scope_permission_missed":
		t = errs.ErrorTypeAuth
	case "internal_error":
		t = errs.ErrorTypeServerError
	}

	msg := apiErr.Message
	if msg == "" {
		msg = apiErr.Code
	}
	if apiErr.LogID != "" {
		msg = fmt.Sprintf("%s (log_id %s)", msg, apiErr.LogID)
	}

	return &errs.Error{Type: t, Message: msg, Code: status}
}
