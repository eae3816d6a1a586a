package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
)

type staticStore struct {
	cfg *models.SSOConfig
}

func (s *staticStore) Load() *models.SSOConfig         { return s.cfg }
func (s *staticStore) Save(*models.SSOConfig) error    { return nil }
func (s *staticStore) AddAccount(models.Account) error { return nil }
func (s *staticStore) RemoveAccount(int) error         { return nil }

var _ interfaces.CredentialStore = (*staticStore)(nil)

func newTestExchanger(callbackURL, serviceURL string) *Service {
	store := &staticStore{cfg: &models.SSOConfig{
		CallbackURL: callbackURL,
		ServiceURL:  serviceURL,
	}}
	return NewService(store, 5*time.Second, common.GetLogger())
}

func TestExchangeSendsTicketAndHeaders(t *testing.T) {
	var gotTicket, gotAccept, gotOrigin, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTicket = r.URL.Query().Get("ticket")
		gotAccept = r.Header.Get("Accept")
		gotOrigin = r.Header.Get("Origin")
		gotReferer = r.Header.Get("Referer")
		w.Header().Add("Set-Cookie", "JSESSIONID=S1; Path=/")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"token":"tok1"}`))
	}))
	defer server.Close()

	svc := newTestExchanger(server.URL+"/api/auth/callback", "http://svc")

	result, err := svc.Exchange(context.Background(), "T1")
	require.NoError(t, err)

	assert.Equal(t, "T1", gotTicket)
	assert.Equal(t, "application/json, text/plain, */*", gotAccept)
	assert.Equal(t, "http://svc", gotOrigin)
	assert.Equal(t, "http://svc/", gotReferer)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, []string{"JSESSIONID=S1; Path=/"}, result.Cookies)
	assert.Equal(t, `{"token":"tok1"}`, result.Body)
}

func TestExchangeNon2xxIsDataNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("denied"))
	}))
	defer server.Close()

	svc := newTestExchanger(server.URL, "http://svc")

	result, err := svc.Exchange(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, result.Status)
	assert.Equal(t, "denied", result.Body)
}

func TestExchangeIgnoresSelfSignedCertificate(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	svc := newTestExchanger(server.URL, "https://svc")

	result, err := svc.Exchange(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.Status)
}

func TestExchangeTransportErrorIsError(t *testing.T) {
	// Closed port: connection refused is a transport failure.
	svc := newTestExchanger("http://127.0.0.1:1/cb", "http://svc")

	_, err := svc.Exchange(context.Background(), "T1")
	assert.Error(t, err)
}

func TestExchangeEmptyTicketRejected(t *testing.T) {
	svc := newTestExchanger("http://127.0.0.1:1/cb", "http://svc")

	_, err := svc.Exchange(context.Background(), "")
	assert.Error(t, err)
}

func TestExchangeDoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer server.Close()

	svc := newTestExchanger(server.URL, "http://svc")

	result, err := svc.Exchange(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, result.Status)
}
