package odex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pcs-platform/edocs-service/pkg/logging"
	"github.com/pcs-platform/edocs-service/pkg/resilience"
)

// ODeX REST endpoints
const (
	EndpointSaveVGM           = "/RS/iVGMService/json/saveVgmWb"
	EndpointVGMAccessInfo     = "/RS/iVGMService/json/getVGMAccessInfo"
	EndpointSaveForm13        = "/RS/iForm13Service/json/saveF13"
	EndpointForm13RequestInfo = "/RS/iForm13Service/json/getForm13ReqInfo"
	EndpointForm13Cancel      = "/RS/iForm13Service/json/requestF13CancelPyr"
	EndpointForm13VesselInfo  = "/RS/iForm13Service/json/getForm13VesselInfo"
	EndpointForm13PODInfo     = "/RS/iForm13Service/json/getForm13PODInfo"
)

// Submission outcomes as reported by ODeX
const (
	OutcomeSubmitted = "SUBMITTED"
	OutcomeFailed    = "FAILED"
)

// ErrNoResponse is the canonical message when ODeX never replied
const ErrNoResponse = "ODeX service unavailable - no response received"

// DefaultTimeout bounds every forward; ODeX is slow under load but
// anything beyond this is treated as no response.
const DefaultTimeout = 30 * time.Second

// Config holds ODeX client configuration
type Config struct {
	BaseURL string
	HashKey string
	Timeout time.Duration
}

// ForwardResult captures one forward attempt against ODeX
type ForwardResult struct {
	StatusCode  int
	Data        any
	Headers     map[string]string
	TimeTaken   time.Duration
	TransportOK bool // false when no response was received at all
}

// Success reports whether ODeX accepted the HTTP exchange
func (r *ForwardResult) Success() bool {
	return r.TransportOK && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is the anti-corruption layer in front of the ODeX API. It owns
// the pre-shared hash key, the request timeout and the circuit breaker;
// callers only see normalized results.
type Client struct {
	baseURL    string
	hashKey    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     *logging.Logger
}

// NewClient creates a new ODeX client
func NewClient(config *Config, breaker *resilience.CircuitBreaker, logger *logging.Logger) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		hashKey:    config.HashKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     logger.WithComponent("odex-client"),
	}
}

// Forward posts a payload to an ODeX endpoint. The pre-shared hash key is
// injected into the body. Transport failures return a result with
// TransportOK=false and the canonical no-response message, plus the error.
func (c *Client) Forward(ctx context.Context, endpoint string, body map[string]any, headers map[string]string) (*ForwardResult, error) {
	payload := make(map[string]any, len(body)+1)
	for k, v := range body {
		payload[k] = v
	}
	payload["hashKey"] = c.hashKey

	start := time.Now()

	raw, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.post(ctx, endpoint, payload, headers)
	})

	elapsed := time.Since(start)

	if err != nil {
		c.logger.CarrierCall(ctx, endpoint, 0, elapsed, false)
		return &ForwardResult{
			StatusCode:  http.StatusInternalServerError,
			Data:        map[string]any{"message": ErrNoResponse},
			TimeTaken:   elapsed,
			TransportOK: false,
		}, err
	}

	result := raw.(*ForwardResult)
	result.TimeTaken = elapsed
	c.logger.CarrierCall(ctx, endpoint, result.StatusCode, elapsed, result.Success())

	return result, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload map[string]any, headers map[string]string) (*ForwardResult, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	return &ForwardResult{
		StatusCode:  resp.StatusCode,
		Data:        decodeBody(rawBody),
		Headers:     respHeaders,
		TransportOK: true,
	}, nil
}

// decodeBody parses the reply as JSON; ODeX sometimes returns a bare
// error string, which is kept verbatim.
func decodeBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return string(trimmed)
	}
	return decoded
}

// SaveVGM submits a VGM weighbridge declaration
func (c *Client) SaveVGM(ctx context.Context, body map[string]any, headers map[string]string) (*ForwardResult, error) {
	return c.Forward(ctx, EndpointSaveVGM, body, headers)
}

// GetVGMAccessInfo checks whether the party is authorized for VGM filing
func (c *Client) GetVGMAccessInfo(ctx context.Context, body map[string]any) (*ForwardResult, error) {
	return c.Forward(ctx, EndpointVGMAccessInfo, body, nil)
}

// SaveForm13 submits an export gate-pass request
func (c *Client) SaveForm13(ctx context.Context, body map[string]any, headers map[string]string) (*ForwardResult, error) {
	return c.Forward(ctx, EndpointSaveForm13, body, headers)
}

// GetForm13RequestInfo polls the status of a submitted Form 13
func (c *Client) GetForm13RequestInfo(ctx context.Context, body map[string]any) (*ForwardResult, error) {
	return c.Forward(ctx, EndpointForm13RequestInfo, body, nil)
}

// RequestForm13Cancel asks the carrier to cancel a submitted Form 13
func (c *Client) RequestForm13Cancel(ctx context.Context, body map[string]any) (*ForwardResult, error) {
	return c.Forward(ctx, EndpointForm13Cancel, body, nil)
}

// GetForm13VesselInfo looks up vessel/voyage data for form population
func (c *Client) GetForm13VesselInfo(ctx context.Context, body map[string]any) (*ForwardResult, error) {
	return c.Forward(ctx, EndpointForm13VesselInfo, body, nil)
}

// GetForm13PODInfo looks up ports of discharge for a vessel call
func (c *Client) GetForm13PODInfo(ctx context.Context, body map[string]any) (*ForwardResult, error) {
	return c.Forward(ctx, EndpointForm13PODInfo, body, nil)
}

// OutcomeOf classifies a reply: a submission is accepted only when ODeX
// assigned a reference number.
func OutcomeOf(data any) string {
	if body, ok := data.(map[string]any); ok {
		if ref, ok := body["odexRefNo"].(string); ok && strings.TrimSpace(ref) != "" {
			return OutcomeSubmitted
		}
	}
	return OutcomeFailed
}

// ValidationFailures extracts business and schema validation messages
// from a logically failed reply.
func ValidationFailures(data any) []string {
	body, ok := data.(map[string]any)
	if !ok {
		return nil
	}

	var failures []string
	failures = append(failures, failuresFrom(body, "business_validation", "business_validations")...)
	failures = append(failures, failuresFrom(body, "schema_validation", "schema_validations")...)
	return failures
}

func failuresFrom(body map[string]any, flagKey, listKey string) []string {
	flag, _ := body[flagKey].(string)
	if !strings.EqualFold(flag, "FAIL") {
		return nil
	}

	list, ok := body[listKey].([]any)
	if !ok {
		return nil
	}

	var out []string
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			if msg, ok := v["message"].(string); ok {
				out = append(out, msg)
			}
		}
	}
	return out
}

// ErrorMessageOf extracts the most specific error message from a reply
func ErrorMessageOf(data any) string {
	switch v := data.(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["responseMessage"].(string); ok && msg != "" {
			return msg
		}
		if msg, ok := v["error"].(string); ok && msg != "" {
			return msg
		}
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}
