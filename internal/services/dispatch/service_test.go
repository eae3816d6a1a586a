package dispatch

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/models"
)

func newTestService(t *testing.T, cfg common.DispatchConfig) *Service {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return NewService(cfg, common.GetLogger())
}

func TestDoPassesRequestThrough(t *testing.T) {
	var received *http.Request
	var receivedBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Clone(context.Background())
		receivedBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	svc := newTestService(t, common.DispatchConfig{})
	resp, err := svc.Do(context.Background(), &models.APIRequest{
		URL:    server.URL + "/things?x=1",
		Method: "POST",
		Headers: map[string]string{
			"Authorization": "Bearer tok",
			"Content-Type":  "application/json",
		},
		Body: `{"a":1}`,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "Created", resp.StatusText)
	assert.Equal(t, `{"ok":true}`, resp.Body)
	assert.Equal(t, []string{"yes"}, resp.Headers["X-Upstream"])

	require.NotNil(t, received)
	assert.Equal(t, "POST", received.Method)
	assert.Equal(t, "/things", received.URL.Path)
	assert.Equal(t, "1", received.URL.Query().Get("x"))
	assert.Equal(t, "Bearer tok", received.Header.Get("Authorization"))
	assert.Equal(t, `{"a":1}`, string(receivedBody))
}

func TestDoDefaultsToGET(t *testing.T) {
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	defer server.Close()

	svc := newTestService(t, common.DispatchConfig{})
	_, err := svc.Do(context.Background(), &models.APIRequest{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "GET", method)
}

func TestDoNonTwoHundredIsDataNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("denied"))
	}))
	defer server.Close()

	svc := newTestService(t, common.DispatchConfig{})
	resp, err := svc.Do(context.Background(), &models.APIRequest{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "denied", resp.Body)
}

func TestDoTransportFailureIsError(t *testing.T) {
	svc := newTestService(t, common.DispatchConfig{Timeout: time.Second})
	resp, err := svc.Do(context.Background(), &models.APIRequest{URL: "http://127.0.0.1:1/nope"})
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestDoAcceptsSelfSignedTLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer server.Close()

	svc := newTestService(t, common.DispatchConfig{})
	resp, err := svc.Do(context.Background(), &models.APIRequest{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "secure", resp.Body)
}

func TestDoRejectsMissingURL(t *testing.T) {
	svc := newTestService(t, common.DispatchConfig{})

	_, err := svc.Do(context.Background(), nil)
	assert.Error(t, err)

	_, err = svc.Do(context.Background(), &models.APIRequest{})
	assert.Error(t, err)
}

func TestDoBuildsMultipartBody(t *testing.T) {
	var contentType string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	fileContent := []byte{0x01, 0x02, 0xFF}
	svc := newTestService(t, common.DispatchConfig{})
	_, err := svc.Do(context.Background(), &models.APIRequest{
		URL:    server.URL,
		Method: "POST",
		Multipart: &models.MultipartBody{
			Boundary: "----bnd42",
			Parts: []models.MultipartPart{
				{Type: "text", Name: "note", Value: "hello"},
				{Type: "file", Name: "doc", FileName: "a.bin", ContentBase64: base64.StdEncoding.EncodeToString(fileContent)},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "multipart/form-data; boundary=----bnd42", contentType)

	text := string(body)
	assert.Contains(t, text, "--"+"----bnd42"+"\r\n")
	assert.Contains(t, text, `Content-Disposition: form-data; name="note"`+"\r\n\r\nhello\r\n")
	assert.Contains(t, text, `Content-Disposition: form-data; name="doc"; filename="a.bin"`+"\r\n")
	assert.Contains(t, text, "Content-Type: application/octet-stream\r\n\r\n")
	assert.Contains(t, text, string(fileContent))
	assert.Contains(t, text, "------bnd42--\r\n")
}

func TestDoMultipartFilePartWithoutContentTreatedAsText(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	svc := newTestService(t, common.DispatchConfig{})
	_, err := svc.Do(context.Background(), &models.APIRequest{
		URL:    server.URL,
		Method: "POST",
		Multipart: &models.MultipartBody{
			Boundary: "b",
			Parts:    []models.MultipartPart{{Type: "file", Name: "empty"}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, string(body), `Content-Disposition: form-data; name="empty"`+"\r\n\r\n\r\n")
}

func TestDoMultipartRejectsBadBase64(t *testing.T) {
	svc := newTestService(t, common.DispatchConfig{})
	_, err := svc.Do(context.Background(), &models.APIRequest{
		URL:    "http://example.invalid",
		Method: "POST",
		Multipart: &models.MultipartBody{
			Boundary: "b",
			Parts:    []models.MultipartPart{{Type: "file", Name: "f", ContentBase64: "not base64!!"}},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base64")
}

func TestDoMultipartRejectsMissingBoundary(t *testing.T) {
	svc := newTestService(t, common.DispatchConfig{})
	_, err := svc.Do(context.Background(), &models.APIRequest{
		URL:       "http://example.invalid",
		Method:    "POST",
		Multipart: &models.MultipartBody{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boundary")
}

func TestDoRateLimiterSpacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	svc := newTestService(t, common.DispatchConfig{
		RateLimit: 50 * time.Millisecond,
		RateBurst: 1,
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := svc.Do(context.Background(), &models.APIRequest{URL: server.URL})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
