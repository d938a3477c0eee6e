package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rshade/fetchcache/internal/keys"
)

// Defaults for HTTP fetchers.
const (
	DefaultHTTPTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 10 << 20
)

// ErrMissingURL is returned when params carry no "url" string.
var ErrMissingURL = errors.New(`fetch params must include a "url" string`)

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return "unexpected HTTP status " + e.Status
}

// URLFromParams returns params["url"]; it is the default URL builder.
func URLFromParams(params keys.Params) (string, error) {
	u, ok := params["url"].(string)
	if !ok || u == "" {
		return "", ErrMissingURL
	}
	return u, nil
}

// HTTPClient returns an http.Client with DefaultHTTPTimeout.
func HTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultHTTPTimeout}
}

// Body fetches the raw response body of a GET to params["url"]. Transport
// failures and non-2xx statuses come back as *Error.
func Body(ctx context.Context, client *http.Client, params keys.Params) ([]byte, error) {
	return getBody(ctx, client, URLFromParams, nil, params)
}

// HTTPJSON fetches a URL and decodes the JSON response into V.
type HTTPJSON[V any] struct {
	// Client defaults to HTTPClient().
	Client *http.Client

	// URL builds the request URL from params. Defaults to URLFromParams.
	URL func(keys.Params) (string, error)

	// Header is added to every request.
	Header http.Header
}

// Fetch implements Fetcher.
func (h *HTTPJSON[V]) Fetch(ctx context.Context, params keys.Params) (V, error) {
	var zero V

	urlFn := h.URL
	if urlFn == nil {
		urlFn = URLFromParams
	}

	body, err := getBody(ctx, h.Client, urlFn, h.Header, params)
	if err != nil {
		return zero, err
	}

	var v V
	if err := json.Unmarshal(body, &v); err != nil {
		return zero, NewError(params, fmt.Errorf("decoding response: %w", err))
	}
	return v, nil
}

func getBody(
	ctx context.Context,
	client *http.Client,
	urlFn func(keys.Params) (string, error),
	header http.Header,
	params keys.Params,
) ([]byte, error) {
	if client == nil {
		client = HTTPClient()
	}

	u, err := urlFn(params)
	if err != nil {
		return nil, NewError(params, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, NewError(params, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, NewError(params, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, NewError(params, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, NewError(params, fmt.Errorf("reading response: %w", err))
	}
	return body, nil
}
