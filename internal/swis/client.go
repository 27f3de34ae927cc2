package swis

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solarium/internal/domain"
)

// DefaultPort is the SWIS REST endpoint port.
const DefaultPort = 17778

// DefaultTimeout bounds a single SWIS request.
const DefaultTimeout = 60 * time.Second

// connectProbe is the query used to verify connectivity and credentials.
const connectProbe = "SELECT Uri FROM Orion.Environment WITH ROWS 1 TO 1"

// Connection holds the parameters needed to reach a SWIS endpoint.
type Connection struct {
	Hostname string `json:"hostname" yaml:"hostname"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	// IgnoreTLS skips certificate verification. Orion installations
	// commonly run with self-signed certificates.
	IgnoreTLS bool `json:"ignore_tls,omitempty" yaml:"ignore_tls,omitempty"`

	// Endpoint overrides the derived base URL. Used for nonstandard
	// deployments and tests.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Timeout bounds each request; DefaultTimeout when zero.
	Timeout time.Duration `json:"-" yaml:"-"`
}

// BaseURL returns the SWIS JSON endpoint for the connection.
func (c Connection) BaseURL() string {
	if c.Endpoint != "" {
		return strings.TrimSuffix(c.Endpoint, "/")
	}
	host := c.Hostname
	if !strings.Contains(host, ":") {
		host = fmt.Sprintf("%s:%d", host, DefaultPort)
	}
	return fmt.Sprintf("https://%s/SolarWinds/InformationService/v3/Json", host)
}

// Validate checks that the connection parameters are complete.
func (c Connection) Validate() error {
	for field, value := range map[string]string{
		"solarwinds_connection.hostname": c.Hostname,
		"solarwinds_connection.username": c.Username,
		"solarwinds_connection.password": c.Password,
	} {
		if value == "" {
			return &domain.ValidationError{Field: field, Reason: "required"}
		}
	}
	return nil
}

// Row is a single result row from a SWQL query.
type Row map[string]any

// String returns the named column as a string, or "" when absent.
func (r Row) String(column string) string {
	if v, ok := r[column].(string); ok {
		return v
	}
	return ""
}

// Int returns the named column as an int, tolerating the float64 values
// produced by JSON decoding.
func (r Row) Int(column string) int {
	switch v := r[column].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// Bool returns the named column as a bool.
func (r Row) Bool(column string) bool {
	if v, ok := r[column].(bool); ok {
		return v
	}
	return false
}

// Time parses the named column as a SWIS timestamp.
func (r Row) Time(column string) time.Time {
	s := r.String(column)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Service is the capability set the reconciler and query builder depend on.
type Service interface {
	Query(ctx context.Context, swql string, params map[string]any) ([]Row, error)
	Invoke(ctx context.Context, entity, verb string, args ...any) (json.RawMessage, error)
	Create(ctx context.Context, entity string, props map[string]any) (string, error)
	Read(ctx context.Context, uri string) (Row, error)
	Update(ctx context.Context, uri string, props map[string]any) error
	Delete(ctx context.Context, uri string) error
}

// Client is the HTTP implementation of Service.
type Client struct {
	conn    Connection
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

var _ Service = (*Client)(nil)

// NewClient builds a client for the given connection. The client performs no
// network traffic until the first call; use Connect to verify credentials.
func NewClient(conn Connection, log zerolog.Logger) *Client {
	timeout := conn.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport
	if conn.IgnoreTLS {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}
	return &Client{
		conn:    conn,
		baseURL: conn.BaseURL(),
		http:    &http.Client{Timeout: timeout, Transport: transport},
		log:     log.With().Str("component", "swis").Logger(),
	}
}

// Connect verifies the endpoint is reachable and the credentials are valid.
// A failure surfaces immediately as a ConnectionError; the caller owns any
// retry policy.
func (c *Client) Connect(ctx context.Context) error {
	if _, err := c.Query(ctx, connectProbe, nil); err != nil {
		return &domain.ConnectionError{Host: c.conn.Hostname, Err: err}
	}
	return nil
}

type queryRequest struct {
	Query      string         `json:"query"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type queryResponse struct {
	Results []Row `json:"results"`
}

// Query runs a SWQL query with named parameters and returns the result rows.
func (c *Client) Query(ctx context.Context, swql string, params map[string]any) ([]Row, error) {
	c.log.Debug().Str("swql", swql).Msg("query")

	body, err := c.do(ctx, http.MethodPost, "/Query", queryRequest{Query: swql, Parameters: params})
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return resp.Results, nil
}

// Invoke calls a verb on a SWIS entity with positional arguments.
func (c *Client) Invoke(ctx context.Context, entity, verb string, args ...any) (json.RawMessage, error) {
	c.log.Debug().Str("entity", entity).Str("verb", verb).Msg("invoke")

	if args == nil {
		args = []any{}
	}
	body, err := c.do(ctx, http.MethodPost, "/Invoke/"+entity+"/"+verb, args)
	if err != nil {
		var rerr *domain.RemoteOperationError
		if errors.As(err, &rerr) {
			rerr.Entity = entity
			rerr.Verb = verb
		}
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Create creates a new entity and returns its SWIS URI.
func (c *Client) Create(ctx context.Context, entity string, props map[string]any) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/Create/"+entity, props)
	if err != nil {
		var rerr *domain.RemoteOperationError
		if errors.As(err, &rerr) {
			rerr.Entity = entity
			rerr.Verb = "Create"
		}
		return "", err
	}
	var uri string
	if err := json.Unmarshal(body, &uri); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	return uri, nil
}

// Read fetches the properties of the entity behind a SWIS URI.
func (c *Client) Read(ctx context.Context, uri string) (Row, error) {
	body, err := c.do(ctx, http.MethodGet, "/"+uri, nil)
	if err != nil {
		return nil, err
	}
	var row Row
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, fmt.Errorf("decode read response: %w", err)
	}
	return row, nil
}

// Update sets properties on the entity behind a SWIS URI. A set-to-value
// operation, safe to repeat.
func (c *Client) Update(ctx context.Context, uri string, props map[string]any) error {
	_, err := c.do(ctx, http.MethodPost, "/"+uri, props)
	return err
}

// Delete removes the entity behind a SWIS URI.
func (c *Client) Delete(ctx context.Context, uri string) error {
	_, err := c.do(ctx, http.MethodDelete, "/"+uri, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.conn.Username, c.conn.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.RemoteOperationError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RemoteOperationError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &domain.RemoteOperationError{
			Status: resp.StatusCode,
			Fault:  strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
