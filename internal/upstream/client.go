// Package upstream drives one complete turn against the Gemini cloud-code
// API: credential acquisition, the outbound HTTP call, ingestion of the
// streaming or buffered response through the adapter core, and finalization
// of the turn summary.
package upstream

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openbridge-ai/geminibridge/internal/adapter"
)

const (
	defaultBaseURL   = "https://cloudcode-pa.googleapis.com"
	defaultUserAgent = "GeminiCLI/0.8.3 (linux; x64)"

	generateEndpoint = "/v1internal:generateContent"
	streamEndpoint   = "/v1internal:streamGenerateContent?alt=sse"
	modelsEndpoint   = "/v1internal:fetchAvailableModels"
)

// CredentialSource supplies access tokens for upstream calls and accepts the
// disable side effect. Implementations must serialize internally; the client
// treats them as thread-safe collaborators.
type CredentialSource interface {
	// Token returns a usable access token. It may block while the source
	// refreshes or rotates credentials.
	Token(ctx context.Context) (string, error)
	// Disable marks the credential behind the given token unusable for
	// subsequent requests.
	Disable(token string)
}

// Options configures a Client. Zero values fall back to the cloud-code
// defaults.
type Options struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// Client is a stateless turn orchestrator. Concurrent turns are independent;
// the only shared collaborator is the credential source.
type Client struct {
	creds      CredentialSource
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// New creates an upstream client backed by the given credential source.
func New(creds CredentialSource, opts Options) *Client {
	c := &Client{
		creds:      creds,
		httpClient: opts.HTTPClient,
		baseURL:    opts.BaseURL,
		userAgent:  opts.UserAgent,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	return c
}

// Generate executes one turn. The request body is forwarded unmodified;
// streaming selects SSE ingestion, otherwise the whole payload is buffered.
// Events reach emit synchronously and in order. On success the returned
// summary carries the finalized finish reason and usage; on failure no
// summary is produced and no events follow the fault.
func (c *Client) Generate(ctx context.Context, body []byte, stream bool, emit adapter.EmitFunc) (adapter.Summary, error) {
	token, err := c.creds.Token(ctx)
	if err != nil || token == "" {
		log.Debugf("generate: credential acquisition failed: %v", err)
		return adapter.Summary{}, ErrAuthUnavailable
	}

	state := adapter.NewTurnState()
	state.RecordPromptTokens(estimatePromptTokens(body))

	endpoint := generateEndpoint
	if stream {
		endpoint = streamEndpoint
	}
	httpResp, err := c.post(ctx, token, endpoint, body)
	if err != nil {
		return adapter.Summary{}, err
	}
	defer func() {
		if errClose := httpResp.Body.Close(); errClose != nil {
			log.Errorf("generate: close response body error: %v", errClose)
		}
	}()

	if err = c.checkStatus(httpResp, token); err != nil {
		return adapter.Summary{}, err
	}

	reader, err := decodeBody(httpResp)
	if err != nil {
		return adapter.Summary{}, err
	}

	if stream {
		err = adapter.IngestStream(reader, state, emit)
	} else {
		var data []byte
		if data, err = io.ReadAll(reader); err == nil {
			err = adapter.IngestBuffered(data, state, emit)
		}
	}
	if err != nil {
		return adapter.Summary{}, err
	}
	return state.Finalize(), nil
}

// ListModels fetches the raw upstream model listing document.
func (c *Client) ListModels(ctx context.Context) ([]byte, error) {
	token, err := c.creds.Token(ctx)
	if err != nil || token == "" {
		return nil, ErrAuthUnavailable
	}
	httpResp, err := c.post(ctx, token, modelsEndpoint, []byte(`{}`))
	if err != nil {
		return nil, err
	}
	defer func() {
		if errClose := httpResp.Body.Close(); errClose != nil {
			log.Errorf("list models: close response body error: %v", errClose)
		}
	}()
	if err = c.checkStatus(httpResp, token); err != nil {
		return nil, err
	}
	reader, err := decodeBody(httpResp)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}

func (c *Client) post(ctx context.Context, token, endpoint string, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept-Encoding", "gzip")

	started := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debugf("upstream request failed after %s: %v", time.Since(started).Round(time.Millisecond), err)
		return nil, err
	}
	return httpResp, nil
}

// checkStatus maps non-2xx responses to the error taxonomy. A 403 disables
// the credential used for this call before surfacing the upstream body.
func (c *Client) checkStatus(httpResp *http.Response, token string) error {
	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return nil
	}
	var msg []byte
	if reader, err := decodeBody(httpResp); err == nil {
		msg, _ = io.ReadAll(reader)
	}
	log.Debugf("request error, error status: %d, error message: %s", httpResp.StatusCode, string(msg))
	if httpResp.StatusCode == http.StatusForbidden {
		c.creds.Disable(token)
		return &PermissionError{Body: string(msg)}
	}
	return &StatusError{Code: httpResp.StatusCode, Body: string(msg)}
}

// decodeBody unwraps the response body, decompressing when the upstream
// honored the gzip negotiation.
func decodeBody(httpResp *http.Response) (io.Reader, error) {
	if httpResp.Header.Get("Content-Encoding") == "gzip" {
		return gzip.NewReader(httpResp.Body)
	}
	return httpResp.Body, nil
}
