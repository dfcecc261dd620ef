package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/model"
	"KuroAccounts/pkg/httpclient"

	"github.com/go-kratos/kratos/v2/log"
)

// CorrelationIDHeader carries the caller's correlation id across services.
const CorrelationIDHeader = "correlation-id"

// Downstream dependency names.
const (
	DependencyCards = "cards"
	DependencyLoans = "loans"
)

const maxErrorBody = 512

// StatusError is returned when a dependency answers with a non-2xx status.
type StatusError struct {
	Dependency string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with status %d: %s", e.Dependency, e.StatusCode, e.Body)
}

// downstreamClient issues GET {base}/api/fetch?mobileNumber= requests.
type downstreamClient struct {
	name    string
	baseURL string
	client  *http.Client
	logger  *log.Helper
}

func newDownstreamClient(name string, dep *conf.Dependency, logger log.Logger) (*downstreamClient, error) {
	if dep == nil || dep.BaseURL == "" {
		return nil, fmt.Errorf("downstream %s: base url is required", name)
	}

	// Attempts are bounded by their context; the client timeout is a backstop.
	client, err := httpclient.New(dep.ProxyURL, 2*dep.AttemptTimeout)
	if err != nil {
		return nil, fmt.Errorf("downstream %s: %w", name, err)
	}

	return &downstreamClient{
		name:    name,
		baseURL: strings.TrimRight(dep.BaseURL, "/"),
		client:  client,
		logger:  log.NewHelper(log.With(logger, "dependency", name)),
	}, nil
}

func (c *downstreamClient) fetch(ctx context.Context, correlationID, mobileNumber string, out interface{}) error {
	endpoint := c.baseURL + "/api/fetch?" + url.Values{"mobileNumber": {mobileNumber}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", c.name, err)
	}
	req.Header.Set(CorrelationIDHeader, correlationID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Dependency: c.name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", c.name, err)
	}

	c.logger.Debugw("msg", "downstream fetch succeeded", "correlation_id", correlationID, "status", resp.StatusCode)
	return nil
}

// CardsClient fetches card details from the cards service.
type CardsClient struct {
	c *downstreamClient
}

// NewCardsClient creates the cards service client.
func NewCardsClient(c *conf.Downstream, logger log.Logger) (*CardsClient, error) {
	if c == nil {
		return nil, fmt.Errorf("downstream configuration is required")
	}
	dc, err := newDownstreamClient(DependencyCards, c.Cards, logger)
	if err != nil {
		return nil, err
	}
	return &CardsClient{c: dc}, nil
}

// FetchCards returns the cards registered with mobileNumber.
func (c *CardsClient) FetchCards(ctx context.Context, correlationID, mobileNumber string) (*model.CardsDetails, error) {
	var cards model.CardsDetails
	if err := c.c.fetch(ctx, correlationID, mobileNumber, &cards); err != nil {
		return nil, err
	}
	return &cards, nil
}

// LoansClient fetches loan details from the loans service.
type LoansClient struct {
	c *downstreamClient
}

// NewLoansClient creates the loans service client.
func NewLoansClient(c *conf.Downstream, logger log.Logger) (*LoansClient, error) {
	if c == nil {
		return nil, fmt.Errorf("downstream configuration is required")
	}
	dc, err := newDownstreamClient(DependencyLoans, c.Loans, logger)
	if err != nil {
		return nil, err
	}
	return &LoansClient{c: dc}, nil
}

// FetchLoans returns the loans registered with mobileNumber.
func (c *LoansClient) FetchLoans(ctx context.Context, correlationID, mobileNumber string) (*model.LoansDetails, error) {
	var loans model.LoansDetails
	if err := c.c.fetch(ctx, correlationID, mobileNumber, &loans); err != nil {
		return nil, err
	}
	return &loans, nil
}
