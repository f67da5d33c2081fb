package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "calgrid/internal/log"
)

const defaultTimeout = 15 * time.Second

// maxBodyBytes bounds a single feed download.
const maxBodyBytes = 32 << 20

// ErrFeedTooLarge is returned when a feed exceeds the download limit.
var ErrFeedTooLarge = errors.New("feed too large")

// Fetcher performs the HTTP side of feed retrieval.
type Fetcher struct {
	client  *http.Client
	maxBody int64
}

// NewFetcher creates a Fetcher. A nil client gets a default one with a
// 15 second timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Fetcher{client: client, maxBody: maxBodyBytes}
}

// Get downloads rawURL. bearer, if set, is sent as an Authorization header.
func (f *Fetcher) Get(ctx context.Context, rawURL, bearer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	appLog.Debug("ics fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: %s", redactURL(rawURL), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", redactURL(rawURL), ErrFeedTooLarge, f.maxBody)
	}
	appLog.Debug("ics fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// tokenResponse is the OAuth-style token endpoint reply.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Token posts body (already form encoded) to tokenURL and returns the access
// token from the JSON reply.
func (f *Fetcher) Token(ctx context.Context, tokenURL, body string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("token request to %s: %s", redactURL(tokenURL), resp.Status)
	}

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("token response has no access_token")
	}
	return tr.AccessToken, nil
}

// redactURL keeps only scheme and host so that private feed paths and
// tokens never reach the logs.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
