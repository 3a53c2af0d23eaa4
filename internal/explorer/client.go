package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

const maxErrorBody = 4000

// Client implements Service over HTTP.
type Client struct {
	baseURL    string
	explainURL string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        Config
}

// NewClient creates a client. Empty fields take the package defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ExplainURL == "" {
		cfg.ExplainURL = DefaultExplainURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		explainURL: strings.TrimRight(cfg.ExplainURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{},
		limiter:    limiter,
		cfg:        cfg,
	}
}

// ListCompilers calls GET /api/compilers[/<language>].
func (c *Client) ListCompilers(ctx context.Context, language string) ([]CompilerInfo, error) {
	u := c.baseURL + "/api/compilers"
	if language != "" {
		u += "/" + url.PathEscape(language)
	}
	u += "?fields=id,name,lang,instructionSet"

	var out []CompilerInfo
	if err := c.do(ctx, http.MethodGet, u, "GET /api/compilers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Compile calls POST /api/compiler/<id>/compile.
func (c *Client) Compile(ctx context.Context, req CompileRequest) (CompileResponse, error) {
	op := fmt.Sprintf("POST /api/compiler/%s/compile", req.CompilerID)
	u := fmt.Sprintf("%s/api/compiler/%s/compile", c.baseURL, url.PathEscape(req.CompilerID))

	var resp CompileResponse
	if err := c.do(ctx, http.MethodPost, u, op, newCompilePayload(req), &resp); err != nil {
		return CompileResponse{}, err
	}
	if resp.Code != 0 {
		return resp, &CompileError{CompilerID: req.CompilerID, ExitCode: resp.Code, Stderr: truncate(resp.StderrText())}
	}
	return resp, nil
}

// Explain calls POST <explain>/.
func (c *Client) Explain(ctx context.Context, req ExplainRequest) (ExplainResponse, error) {
	var resp ExplainResponse
	if err := c.do(ctx, http.MethodPost, c.explainURL+"/", "POST explain /", req, &resp); err != nil {
		return ExplainResponse{}, err
	}
	if resp.Status != "success" {
		return resp, &ExplainError{Status: resp.Status, Message: resp.Message}
	}
	return resp, nil
}

// do paces, sends and decodes one request. The timeout covers the request
// itself, not the time spent waiting for the rate limiter.
func (c *Client) do(ctx context.Context, method, u, op string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode, Body: truncate(string(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}
	return nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
