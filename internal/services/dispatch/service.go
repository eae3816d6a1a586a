// -----------------------------------------------------------------------
// Pass-through request dispatcher
//
// Issues arbitrary HTTP requests on behalf of the console UI and returns
// the upstream response verbatim. Upstream failures at the HTTP level are
// data; only transport failures surface as errors.
// -----------------------------------------------------------------------

package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// Service implements interfaces.Dispatcher.
type Service struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewService creates the dispatcher. Upstream deployments run self-signed
// certificates, so TLS verification is disabled the same way the ticket
// exchange disables it.
func NewService(cfg common.DispatchConfig, logger arbor.ILogger) *Service {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(cfg.RateLimit), burst)
	}

	return &Service{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		limiter: limiter,
		logger:  logger,
	}
}

var _ interfaces.Dispatcher = (*Service)(nil)

// Do dispatches the request and returns the upstream response unchanged.
func (s *Service) Do(ctx context.Context, req *models.APIRequest) (*models.APIResponse, error) {
	if req == nil || req.URL == "" {
		return nil, fmt.Errorf("request URL is required")
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("dispatch rate limit: %w", err)
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	body, contentType, err := buildBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	s.logger.Debug().
		Str("method", method).
		Str("url", req.URL).
		Msg("Dispatching request")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &models.APIResponse{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    resp.Header,
		Body:       string(data),
	}, nil
}

// buildBody returns the request body bytes and, for multipart requests, the
// Content-Type header the body demands.
func buildBody(req *models.APIRequest) ([]byte, string, error) {
	if req.Multipart == nil {
		return []byte(req.Body), "", nil
	}
	if req.Multipart.Boundary == "" {
		return nil, "", fmt.Errorf("multipart body requires a boundary")
	}

	body, err := buildMultipartBody(req.Multipart)
	if err != nil {
		return nil, "", err
	}
	return body, "multipart/form-data; boundary=" + req.Multipart.Boundary, nil
}

// buildMultipartBody assembles a multipart/form-data payload with the caller's
// boundary. File parts arrive base64-encoded from the UI.
func buildMultipartBody(mp *models.MultipartBody) ([]byte, error) {
	var buf bytes.Buffer

	for _, part := range mp.Parts {
		buf.WriteString("--" + mp.Boundary + "\r\n")

		if part.Type == "file" && part.ContentBase64 != "" {
			fileName := part.FileName
			if fileName == "" {
				fileName = "file"
			}
			content, err := base64.StdEncoding.DecodeString(part.ContentBase64)
			if err != nil {
				return nil, fmt.Errorf("invalid base64 content in part %q: %w", part.Name, err)
			}
			buf.WriteString(fmt.Sprintf("Content-Disposition: form-data; name=%q; filename=%q\r\n", part.Name, fileName))
			buf.WriteString("Content-Type: application/octet-stream\r\n\r\n")
			buf.Write(content)
		} else {
			value := ""
			if part.Type == "text" {
				value = part.Value
			}
			buf.WriteString(fmt.Sprintf("Content-Disposition: form-data; name=%q\r\n\r\n", part.Name))
			buf.WriteString(value)
		}
		buf.WriteString("\r\n")
	}

	buf.WriteString("--" + mp.Boundary + "--\r\n")
	return buf.Bytes(), nil
}
