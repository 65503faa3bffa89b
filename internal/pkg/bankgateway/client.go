package bankgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/cache"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	transferBatchPath = "/v1/transfer-batches"
	tokenSafetyMargin = 30 * time.Second
	defaultTokenTTL   = 5 * time.Minute
	defaultTimeout    = 30 * time.Second
)

type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// Client talks to the bank's instant-payment batch API.
type Client struct {
	logger      *slog.Logger
	baseURL     string
	timeout     time.Duration
	httpClient  *http.Client
	credentials *clientcredentials.Config
	cache       cache.Cache
	tokenKey    string
	group       singleflight.Group
}

// APIError represents a non-success answer from the bank gateway
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bank gateway error [%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

func NewClient(logger *slog.Logger, cfg Config, c cache.Cache) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		logger:     logger,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		credentials: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		},
		cache:    c,
		tokenKey: "bankgateway:token:" + cfg.ClientID,
	}
}

type transferPayload struct {
	ExternalReference string `json:"external_reference"`
	Amount            string `json:"amount"`
	Description       string `json:"description"`
	KeyType           string `json:"key_type"`
	Key               string `json:"key"`
}

type batchRequest struct {
	OriginAccountID string            `json:"origin_account_id"`
	Transfers       []transferPayload `json:"transfers"`
}

type batchResponse struct {
	BatchID string `json:"batch_id"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubmitTransferBatch posts transfers in the given order and returns the bank's batch id.
// An expired token is renewed once; any other failure is returned as is.
func (c *Client) SubmitTransferBatch(ctx context.Context, originAccountID string, transfers []payment.Transfer) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := batchRequest{
		OriginAccountID: originAccountID,
		Transfers:       make([]transferPayload, 0, len(transfers)),
	}
	for _, t := range transfers {
		req.Transfers = append(req.Transfers, transferPayload{
			ExternalReference: t.LineID,
			Amount:            t.Amount.StringFixed(2),
			Description:       t.Reference,
			KeyType:           string(t.Key.Type),
			Key:               t.Key.Value,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode transfer batch: %w", err)
	}
	idempotencyKey := batchIdempotencyKey(originAccountID, transfers)

	batchID, err := c.postBatch(ctx, body, idempotencyKey)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.logger.WarnContext(ctx, "bank gateway rejected token, renewing", "client_id", c.credentials.ClientID)
		if delErr := c.cache.Delete(ctx, c.tokenKey); delErr != nil {
			c.logger.WarnContext(ctx, "failed to drop cached gateway token", "error", delErr)
		}
		batchID, err = c.postBatch(ctx, body, idempotencyKey)
	}
	if err != nil {
		return "", err
	}

	return batchID, nil
}

func (c *Client) postBatch(ctx context.Context, body []byte, idempotencyKey string) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transferBatchPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build transfer batch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send transfer batch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read transfer batch response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var e errorResponse
		if json.Unmarshal(respBody, &e) == nil {
			if e.Code != "" {
				apiErr.Code = e.Code
			}
			apiErr.Message = e.Message
		}
		return "", apiErr
	}

	var out batchResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode transfer batch response: %w", err)
	}
	if out.BatchID == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Code: "missing_batch_id", Message: "response carried no batch id"}
	}

	return out.BatchID, nil
}

// token returns a cached access token or fetches a new one. Concurrent
// callers share a single fetch.
func (c *Client) token(ctx context.Context) (string, error) {
	if v, err := c.cache.Get(ctx, c.tokenKey); err == nil {
		return v, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		c.logger.WarnContext(ctx, "gateway token cache read failed", "error", err)
	}

	v, err, _ := c.group.Do(c.tokenKey, func() (interface{}, error) {
		tok, err := c.credentials.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
		if err != nil {
			return "", fmt.Errorf("fetch gateway token: %w", err)
		}

		ttl := defaultTokenTTL
		if !tok.Expiry.IsZero() {
			ttl = time.Until(tok.Expiry) - tokenSafetyMargin
		}
		if ttl > 0 {
			if err := c.cache.Set(ctx, c.tokenKey, tok.AccessToken, ttl); err != nil {
				c.logger.WarnContext(ctx, "failed to cache gateway token", "error", err)
			}
		}
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// batchIdempotencyKey is stable for the same origin and line set, so a
// resubmission of an identical chunk is recognised by the bank.
func batchIdempotencyKey(originAccountID string, transfers []payment.Transfer) string {
	ids := make([]string, 0, len(transfers)+1)
	ids = append(ids, originAccountID)
	for _, t := range transfers {
		ids = append(ids, t.LineID)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(ids, "|"))).String()
}

var _ payment.Gateway = (*Client)(nil)
