package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const versionPath = "/json/version"

// NewDiscoveryClient returns the HTTP client used to query debugger endpoints.
func NewDiscoveryClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// ResolveURL returns ws:// and wss:// URLs unchanged. For an http(s) endpoint
// such as http://127.0.0.1:9222 it asks /json/version for the browser
// websocket URL.
func ResolveURL(ctx context.Context, client *http.Client, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return url, nil
	}
	endpoint := strings.TrimSuffix(url, "/")
	if !strings.HasSuffix(endpoint, versionPath) {
		endpoint += versionPath
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &Error{Op: "discover", URL: url, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &Error{Op: "discover", URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &Error{Op: "discover", URL: url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Op: "discover", URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	ws := gjson.GetBytes(body, "webSocketDebuggerUrl").Str
	if ws == "" {
		return "", &Error{Op: "discover", URL: url, Err: fmt.Errorf("no webSocketDebuggerUrl in %s", versionPath)}
	}
	return ws, nil
}
