package hue

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

	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

const (
	resourceClass   = "lights"
	maxResponseSize = 1 << 20
)

// Doer sends HTTP requests. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// LightState is a bridge state body. Nil fields are omitted on PUT and
// were absent on GET.
type LightState struct {
	On  *bool `json:"on,omitempty"`
	Hue *int  `json:"hue,omitempty"`
	Sat *int  `json:"sat,omitempty"`
	Bri *int  `json:"bri,omitempty"`
}

// Empty reports whether no field is set.
func (s LightState) Empty() bool {
	return s.On == nil && s.Hue == nil && s.Sat == nil && s.Bri == nil
}

type bridgeError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

// Client talks to one bridge as one user. Every call is a suspension point
// on the calling task.
type Client struct {
	base string
	http Doer
}

// NewClient validates bridgeURL and builds a client for
// <bridgeURL>/api/<username>.
func NewClient(bridgeURL, username string, doer Doer) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(bridgeURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: bridge_url %q must be an absolute http(s) URL", fault.ErrConfiguration, bridgeURL)
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		base: u.String() + "/api/" + url.PathEscape(username),
		http: doer,
	}, nil
}

// LayoutURL is the URL of the full light layout.
func (c *Client) LayoutURL() string {
	return c.base + "/" + resourceClass
}

// StateURL is the state URL of light id.
func (c *Client) StateURL(id string) string {
	return c.base + "/" + resourceClass + "/" + url.PathEscape(id) + "/state"
}

// FetchLayout GETs the light layout.
func (c *Client) FetchLayout(t *suspend.Task, timeout time.Duration) (Layout, error) {
	body, err := suspend.Await(t, timeout, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodGet, c.LayoutURL(), nil)
	})
	if err != nil {
		return nil, err
	}

	var layout Layout
	if err := json.Unmarshal(body, &layout); err != nil {
		return nil, fmt.Errorf("%w: parsing layout: %w", fault.ErrDeviceUnavailable, err)
	}
	return layout, nil
}

// GetState reads the state of light id. Both the bare state object and a
// {"state": {...}} envelope are accepted.
func (c *Client) GetState(t *suspend.Task, timeout time.Duration, id string) (LightState, error) {
	body, err := suspend.Await(t, timeout, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodGet, c.StateURL(id), nil)
	})
	if err != nil {
		return LightState{}, err
	}

	var envelope struct {
		State *LightState `json:"state"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.State != nil {
		return *envelope.State, nil
	}

	var st LightState
	if err := json.Unmarshal(body, &st); err != nil {
		return LightState{}, fmt.Errorf("%w: parsing state of light %s: %w", fault.ErrTransportFailure, id, err)
	}
	return st, nil
}

// PutState writes st to light id in one request.
func (c *Client) PutState(t *suspend.Task, timeout time.Duration, id string, st LightState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	_, err = suspend.Await(t, timeout, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodPut, c.StateURL(id), payload)
	})
	return err
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s returned %s", fault.ErrTransportFailure, method, resourceClass, resp.Status)
	}
	if err := checkBridgeErrors(data); err != nil {
		return nil, err
	}
	return data, nil
}

// checkBridgeErrors turns a [{"error": {...}}] reply into ErrCommandRejected.
func checkBridgeErrors(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}

	var results []struct {
		Error *bridgeError `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &results); err != nil {
		return nil
	}
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("%w: %s (type %d, %s)", ErrCommandRejected, r.Error.Description, r.Error.Type, r.Error.Address)
		}
	}
	return nil
}
