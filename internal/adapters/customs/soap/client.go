package soap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/resilience"
)

// internalPort is stripped from configured endpoints; the service publishes
// it in some documents but does not listen on it externally.
const internalPort = ":8086"

// Client talks to the QueryBangKeDanhSachContainer SOAP 1.1 endpoint. It owns
// one keep-alive HTTP session with a bounded connection pool.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        *slog.Logger
}

// Options configure the SOAP client.
type Options struct {
	Endpoint     string
	Timeout      time.Duration
	SessionReuse bool
}

// NewClient builds a client for the configured endpoint.
func NewClient(opts Options, log *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		MaxConnsPerHost:       5,
		IdleConnTimeout:       90 * time.Second,
		DisableKeepAlives:     !opts.SessionReuse,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		endpoint: strings.Replace(strings.TrimSpace(opts.Endpoint), internalPort, "", 1),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		log: log,
	}
}

// Endpoint returns the effective service URL after port stripping.
func (c *Client) Endpoint() string { return c.endpoint }

// Query fetches the declaration record for the given identifiers.
// Transport failures and non-200 statuses are network errors; an unknown
// declaration is ErrNotFound; a result with ThongBaoLoi set is returned
// as-is for the caller to inspect.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*declaration.Record, error) {
	envelope := BuildEnvelope(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(envelope))
	if err != nil {
		return nil, resilience.NewError(resilience.KindConfiguration, fmt.Errorf("build soap request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", `"`+Action+`"`)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, resilience.NewError(resilience.KindNetwork, fmt.Errorf("soap request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resilience.NewError(resilience.KindNetwork, fmt.Errorf("soap request: http %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewError(resilience.KindNetwork, fmt.Errorf("read soap response: %w", err))
	}

	record, err := ParseResponse(body)
	if err != nil {
		return nil, err
	}

	c.log.Debug("soap query completed",
		"declaration", req.DeclarationNumber,
		"tax_code", req.TaxCode,
		"elapsed", time.Since(start),
		"containers", len(record.Containers),
		"has_error", record.HasError())
	return record, nil
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
