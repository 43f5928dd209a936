package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	consentdomain "github.com/smallbiznis/meridian/internal/consent/domain"
	"github.com/smallbiznis/meridian/pkg/telemetry/correlation"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// ErrRemoteAbsent is the peer's definitive answer that no record exists.
// It is distinct from exhausting retries against an unreachable peer.
var ErrRemoteAbsent = errors.New("authorization_absent")

// ClientConfig bounds the remote call. The whole lookup, retries included,
// runs under Deadline; each attempt gets its own AttemptTimeout so one
// hanging peer connection cannot swallow the entire retry budget.
type ClientConfig struct {
	Deadline        time.Duration
	AttemptTimeout  time.Duration
	InitialInterval time.Duration
	Multiplier      float64
	MaxAttempts     uint
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Deadline:        2 * time.Second,
		AttemptTimeout:  500 * time.Millisecond,
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      1.6,
		MaxAttempts:     5,
	}
}

// Client calls a peer region's gateway endpoints.
type Client interface {
	RetrieveAuthorization(ctx context.Context, endpoint, token string) (*authzdomain.Authorization, error)
	ListConsents(ctx context.Context, endpoint, principalName string, limit int, modifiedAfter time.Time) (*consentdomain.Page, error)
}

type httpClient struct {
	cfg  ClientConfig
	http *http.Client
	log  *zap.Logger
}

func NewClient(cfg ClientConfig, log *zap.Logger) Client {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = cfg.Deadline
	}
	return &httpClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Deadline},
		log:  log.Named("gateway.client"),
	}
}

// attemptCtx bounds a single try without releasing the overall deadline.
func (c *httpClient) attemptCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.AttemptTimeout)
}

type retrieveRequest struct {
	Token string `json:"token"`
}

type retrieveResponse struct {
	Authorization *authzdomain.Authorization `json:"authorization"`
}

func (c *httpClient) RetrieveAuthorization(ctx context.Context, endpoint, token string) (*authzdomain.Authorization, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Deadline)
	defer cancel()
	ctx, cid := correlation.EnsureCorrelationID(ctx)

	body, err := json.Marshal(retrieveRequest{Token: token})
	if err != nil {
		return nil, err
	}

	operation := func() (*authzdomain.Authorization, error) {
		tryCtx, cancel := c.attemptCtx(ctx)
		defer cancel()

		req, err := http.NewRequestWithContext(tryCtx, http.MethodPost,
			endpoint+"/internal/gateway/authorizations:retrieve", bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(correlation.Header, cid)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			var out retrieveResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return nil, err
			}
			if out.Authorization == nil {
				return nil, backoff.Permanent(ErrRemoteAbsent)
			}
			return out.Authorization, nil
		case http.StatusNotFound:
			io.Copy(io.Discard, resp.Body)
			return nil, backoff.Permanent(ErrRemoteAbsent)
		default:
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("peer returned status %d", resp.StatusCode)
		}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.InitialInterval
	exp.Multiplier = c.cfg.Multiplier
	exp.Reset()

	return backoff.Retry(ctx, operation, backoff.WithBackOff(exp), backoff.WithMaxTries(c.cfg.MaxAttempts))
}

func (c *httpClient) ListConsents(ctx context.Context, endpoint, principalName string, limit int, modifiedAfter time.Time) (*consentdomain.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Deadline)
	defer cancel()
	ctx, cid := correlation.EnsureCorrelationID(ctx)

	operation := func() (*consentdomain.Page, error) {
		tryCtx, cancel := c.attemptCtx(ctx)
		defer cancel()

		query := url.Values{}
		query.Set("principal", principalName)
		query.Set("limit", strconv.Itoa(limit))
		if !modifiedAfter.IsZero() {
			query.Set("modified_after", modifiedAfter.UTC().Format(time.RFC3339Nano))
		}

		req, err := http.NewRequestWithContext(tryCtx, http.MethodGet,
			endpoint+"/internal/gateway/consents?"+query.Encode(), nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set(correlation.Header, cid)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("peer returned status %d", resp.StatusCode)
		}

		var page consentdomain.Page
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return nil, err
		}
		return &page, nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.InitialInterval
	exp.Multiplier = c.cfg.Multiplier
	exp.Reset()

	return backoff.Retry(ctx, operation, backoff.WithBackOff(exp), backoff.WithMaxTries(c.cfg.MaxAttempts))
}
