package adapter

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/statejobs/internal/model"
)

const userAgent = "statejobs/1.0 (+https://github.com/amishk599/statejobs)"

// get issues a single GET and returns the response when the status is 2xx
// and the content type has one of the allowed prefixes. The caller closes
// the body. Non-2xx responses come back as *model.HTTPError.
func get(ctx context.Context, client *http.Client, url, what string, allowed ...string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", what, url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", what, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("%s %s: unexpected status %d", what, url, resp.StatusCode),
		}
	}

	if !contentTypeAllowed(resp.Header.Get("Content-Type"), allowed) {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: unexpected content type %q", what, url, resp.Header.Get("Content-Type"))
	}
	return resp, nil
}

// contentTypeAllowed accepts a missing header; servers that omit it are
// judged by whether the body parses.
func contentTypeAllowed(header string, allowed []string) bool {
	if header == "" || len(allowed) == 0 {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	for _, prefix := range allowed {
		if strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
