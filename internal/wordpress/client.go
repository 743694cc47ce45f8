package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Sentinel errors for remote site failures
var (
	ErrTimeout            = errors.New("connection timeout")
	ErrUnreachable        = errors.New("could not connect to site")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPluginInactive     = errors.New("fluent forms plugin not active")
	ErrInvalidResponse    = errors.New("invalid JSON response from WordPress")
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
)

// Client talks to a WordPress site's REST API using an application
// password. Transient failures (timeouts, connection errors, 5xx) are
// retried with exponential backoff; auth and plugin errors are not.
type Client struct {
	baseURL     string
	username    string
	appPassword string
	httpClient  *http.Client
}

// NewClient creates a client for the given site. baseURL is the site root,
// with or without a trailing slash.
func NewClient(baseURL, username, appPassword string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		username:    username,
		appPassword: appPassword,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
}

// Form is one Fluent Forms form as listed by the plugin REST API
type Form struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Entry is one form submission entry. Response carries the raw payload,
// whose shape varies between plugin versions.
type Entry struct {
	ID        int64           `json:"-"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
	Response  json.RawMessage `json:"response"`
}

// entries arrive with id as either a number or a quoted string
func (e *Entry) UnmarshalJSON(data []byte) error {
	type alias Entry
	aux := struct {
		ID json.RawMessage `json:"id"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	id, err := parseFlexInt(aux.ID)
	if err != nil {
		return fmt.Errorf("entry id: %w", err)
	}
	e.ID = id
	return nil
}

func parseFlexInt(raw json.RawMessage) (int64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// Fields parses the entry payload into a flat map. The payload is either
// a JSON object or a JSON string containing an encoded object; anything
// else yields an empty map rather than an error, so one malformed entry
// never aborts a sync.
func (e *Entry) Fields() map[string]any {
	raw := e.Response
	if len(raw) == 0 {
		return map[string]any{}
	}

	// Double-encoded variant: a JSON string holding the object
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return map[string]any{}
	}
	return fields
}

// ValidateCredentials checks the application password against the core
// users endpoint
func (c *Client) ValidateCredentials(ctx context.Context) error {
	_, err := c.getJSON(ctx, "/wp-json/wp/v2/users/me", nil)
	return err
}

// ListForms returns all forms exposed by the Fluent Forms REST API
func (c *Client) ListForms(ctx context.Context) ([]Form, error) {
	body, err := c.getJSON(ctx, "/wp-json/fluentform/v1/forms", nil)
	if err != nil {
		return nil, err
	}

	// The endpoint returns either a bare array or {"data": [...]}
	var forms []Form
	if err := json.Unmarshal(body, &forms); err == nil {
		return forms, nil
	}
	var wrapped struct {
		Data []Form `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, ErrInvalidResponse
	}
	return wrapped.Data, nil
}

// ListEntries returns one page of submission entries for a form, plus the
// remote total when the endpoint reports one (0 otherwise).
func (c *Client) ListEntries(ctx context.Context, formID int64, page, perPage int) ([]Entry, int64, error) {
	q := url.Values{}
	q.Set("form_id", strconv.FormatInt(formID, 10))
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	body, err := c.getJSON(ctx, "/wp-json/fluentform/v1/submissions", q)
	if err != nil {
		return nil, 0, err
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err == nil {
		return entries, 0, nil
	}
	var wrapped struct {
		Data  []Entry `json:"data"`
		Total int64   `json:"total"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, 0, ErrInvalidResponse
	}
	return wrapped.Data, wrapped.Total, nil
}

// Diagnostics reports the health of each integration layer of a site
type Diagnostics struct {
	SiteReachable    bool `json:"site_reachable"`
	RESTAPIAvailable bool `json:"rest_api_available"`
	CredentialsValid bool `json:"credentials_valid"`
	PluginActive     bool `json:"plugin_active"`
	PluginInstalled  bool `json:"plugin_installed"`
}

// Diagnose probes the site layer by layer. It never returns a transport
// error; unreachable layers simply report false.
func (c *Client) Diagnose(ctx context.Context) *Diagnostics {
	d := &Diagnostics{}

	if _, err := c.getJSON(ctx, "/wp-json/", nil); err == nil {
		d.SiteReachable = true
		d.RESTAPIAvailable = true
	}

	switch err := c.ValidateCredentials(ctx); {
	case err == nil:
		d.CredentialsValid = true
		d.SiteReachable = true
	case errors.Is(err, ErrInvalidCredentials):
		d.SiteReachable = true
	}

	if _, err := c.getJSON(ctx, "/wp-json/fluentform/v1", nil); err == nil {
		d.PluginActive = true
		d.PluginInstalled = true
		return d
	}

	// Plugin REST not answering: check whether it is at least installed
	q := url.Values{}
	q.Set("search", "fluentforms")
	if body, err := c.getJSON(ctx, "/wp-json/wp/v2/plugins", q); err == nil {
		var plugins []map[string]any
		if json.Unmarshal(body, &plugins) == nil && len(plugins) > 0 {
			d.PluginInstalled = true
		}
	}

	return d
}

// getJSON performs a GET with Basic auth and retries transient failures
func (c *Client) getJSON(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.SetBasicAuth(c.username, c.appPassword)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, classifyTransportError(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, backoff.Permanent(ErrInvalidCredentials)
		case resp.StatusCode == http.StatusNotFound:
			return nil, backoff.Permanent(ErrPluginInactive)
		case resp.StatusCode >= 500:
			// Transient by assumption, worth retrying
			return nil, fmt.Errorf("server error: %s", resp.Status)
		case resp.StatusCode != http.StatusOK:
			return nil, backoff.Permanent(fmt.Errorf("unexpected status: %s", resp.Status))
		}

		if !json.Valid(body) {
			return nil, backoff.Permanent(ErrInvalidResponse)
		}
		return body, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 10 * time.Second

	return backoff.RetryWithData(operation, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return ErrTimeout
		}
		return ErrUnreachable
	}
	return ErrUnreachable
}
