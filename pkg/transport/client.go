package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client sends one message through the external messaging provider.
type Client interface {
	SendText(ctx context.Context, number, text string) error
	SendMedia(ctx context.Context, number, mediaURL, caption string) error
}

// Send-endpoint suffixes in probe order. A base URL already ending in one of
// these is used verbatim.
var (
	textSendSuffixes  = []string{"/message/send-text", "/send-message", "/api/send"}
	mediaSendSuffixes = []string{"/message/send-media", "/send-media", "/api/send-media"}
)

// FallbackHeader carries the provider's relocation hint on a 404 response.
const FallbackHeader = "X-Fallback-Url"

type HTTPClient struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

type Option func(*HTTPClient)

func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = client
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		c.client.Timeout = timeout
	}
}

func NewClient(baseURL, apiToken string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type textPayload struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type mediaPayload struct {
	Number   string `json:"number"`
	MediaURL string `json:"mediaUrl"`
	Caption  string `json:"caption,omitempty"`
}

func (c *HTTPClient) SendText(ctx context.Context, number, text string) error {
	return c.send(ctx, textPayload{Number: number, Text: text}, textSendSuffixes)
}

func (c *HTTPClient) SendMedia(ctx context.Context, number, mediaURL, caption string) error {
	return c.send(ctx, mediaPayload{Number: number, MediaURL: mediaURL, Caption: caption}, mediaSendSuffixes)
}

// Attempt records one probed endpoint for diagnostics.
type Attempt struct {
	Status int
	URL    string
	Body   string
}

// SendError enumerates every endpoint attempted before giving up.
type SendError struct {
	Attempts []Attempt
}

func (e *SendError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("{status=%d url=%s body=%s}", a.Status, a.URL, a.Body))
	}
	return fmt.Sprintf("transport send failed after %d attempts: %s", len(e.Attempts), strings.Join(parts, "; "))
}

func (c *HTTPClient) send(ctx context.Context, payload any, suffixes []string) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	sendErr := &SendError{}

	followedFallback := false
	candidates := endpointCandidates(c.baseURL, suffixes)
	for i := 0; i < len(candidates); i++ {
		url := candidates[i]

		status, body, header, err := c.post(ctx, url, jsonData)
		if err != nil {
			return fmt.Errorf("failed to send request to %s: %w", url, err)
		}

		if status >= 200 && status < 300 {
			return nil
		}

		sendErr.Attempts = append(sendErr.Attempts, Attempt{Status: status, URL: url, Body: body})

		// A 404 may carry a relocation hint pointing at the provider's
		// actual base. Follow it once, switching the remaining probes to
		// candidates derived from the hinted base.
		if status == http.StatusNotFound && !followedFallback {
			if hint := fallbackHint(header, body); hint != "" {
				followedFallback = true
				candidates = append(candidates[:i+1], endpointCandidates(strings.TrimRight(hint, "/"), suffixes)...)
			}
		}
	}

	return sendErr
}

func (c *HTTPClient) post(ctx context.Context, url string, body []byte) (int, string, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("apikey", c.apiToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return resp.StatusCode, "", resp.Header, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, strings.TrimSpace(string(respBody)), resp.Header, nil
}

// endpointCandidates resolves the URLs to probe for a base: the base itself
// when it already names a send endpoint, otherwise one candidate per suffix.
func endpointCandidates(base string, suffixes []string) []string {
	for _, suffix := range suffixes {
		if strings.HasSuffix(base, suffix) {
			return []string{base}
		}
	}

	urls := make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		urls = append(urls, base+suffix)
	}
	return urls
}

// fallbackHint extracts the relocation hint from a 404 response: either the
// fallback header or a JSON body of the form {"step":"fallback","url":...}.
func fallbackHint(header http.Header, body string) string {
	if header != nil {
		if url := header.Get(FallbackHeader); url != "" {
			return url
		}
	}

	var hint struct {
		Step string `json:"step"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal([]byte(body), &hint); err != nil {
		return ""
	}
	if hint.Step != "fallback" || hint.URL == "" {
		return ""
	}
	return hint.URL
}
