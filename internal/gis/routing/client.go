package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"campus-wayfinding/internal/navigation"
)

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

type ClientOptions struct {
	Timeout time.Duration
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout: 7 * time.Second,
	}
}

func NewClient(baseURL, accessToken string, options ...ClientOptions) *Client {
	opts := DefaultClientOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}
}

// Route asks the provider for a route and returns its top-ranked candidate.
func (c *Client) Route(ctx context.Context, req navigation.RouteRequest) (*navigation.Route, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	reqURL, err := c.routeURL(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to execute request: %w", navigation.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, providerError(resp)
	}

	var directions DirectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&directions); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", navigation.ErrNetwork, err)
	}

	if len(directions.Routes) == 0 {
		return nil, fmt.Errorf("%w: provider code %q: %s", navigation.ErrRouteUnavailable, directions.Code, directions.Message)
	}

	return directions.Routes[0].toRoute()
}

func (c *Client) routeURL(req navigation.RouteRequest) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	coords := formatPoint(req.Origin) + ";" + formatPoint(req.Destination)
	u := base.JoinPath("directions", "v5", "mapbox", req.Profile, coords)

	q := u.Query()
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	q.Set("access_token", c.accessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatPoint(p orb.Point) string {
	return strconv.FormatFloat(p.Lon(), 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat(), 'f', -1, 64)
}

func providerError(resp *http.Response) error {
	pe := &navigation.ProviderError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			pe.Message = eb.Message
		}
	}
	return pe
}
