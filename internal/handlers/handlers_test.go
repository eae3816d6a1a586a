package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
)

type fakeStore struct {
	cfg       *models.SSOConfig
	saveErr   error
	lastSaved *models.SSOConfig
}

func (s *fakeStore) Load() *models.SSOConfig { return s.cfg }
func (s *fakeStore) Save(cfg *models.SSOConfig) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.lastSaved = cfg
	s.cfg = cfg
	return nil
}
func (s *fakeStore) AddAccount(account models.Account) error {
	s.cfg.Accounts = append(s.cfg.Accounts, account)
	return nil
}
func (s *fakeStore) RemoveAccount(index int) error {
	if index < 0 || index >= len(s.cfg.Accounts) {
		return assert.AnError
	}
	s.cfg.Accounts = append(s.cfg.Accounts[:index], s.cfg.Accounts[index+1:]...)
	return nil
}

type fakeRegistry struct {
	record   *models.SessionRecord
	clearErr error
	cleared  int
}

func (r *fakeRegistry) Set(record *models.SessionRecord) { r.record = record }
func (r *fakeRegistry) Get() *models.SessionRecord {
	if r.record == nil {
		return &models.SessionRecord{}
	}
	return r.record
}
func (r *fakeRegistry) Clear(ctx context.Context) error {
	r.cleared++
	r.record = &models.SessionRecord{}
	return r.clearErr
}

type fakeDispatcher struct {
	lastReq *models.APIRequest
	resp    *models.APIResponse
	err     error
}

func (d *fakeDispatcher) Do(ctx context.Context, req *models.APIRequest) (*models.APIResponse, error) {
	d.lastReq = req
	return d.resp, d.err
}

type fakeOrchestrator struct {
	loginErr   error
	loginDelay time.Duration
	clearErr   error
	accounts   []*models.Account
}

func (o *fakeOrchestrator) Login(ctx context.Context, account *models.Account) (*models.SessionRecord, error) {
	o.accounts = append(o.accounts, account)
	if o.loginDelay > 0 {
		time.Sleep(o.loginDelay)
	}
	return &models.SessionRecord{Token: "t"}, o.loginErr
}

func (o *fakeOrchestrator) ClearPartition(ctx context.Context) error { return o.clearErr }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSessionHandlerGet(t *testing.T) {
	registry := &fakeRegistry{record: &models.SessionRecord{Token: "tok", Cookies: "a=1"}}
	handler := NewSessionHandler(registry, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.SessionHandler(rec, httptest.NewRequest("GET", "/api/sso/session", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["active"])
}

func TestSessionHandlerGetEmpty(t *testing.T) {
	handler := NewSessionHandler(&fakeRegistry{}, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.SessionHandler(rec, httptest.NewRequest("GET", "/api/sso/session", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["active"])
}

func TestSessionHandlerClear(t *testing.T) {
	registry := &fakeRegistry{record: &models.SessionRecord{Token: "tok"}}
	handler := NewSessionHandler(registry, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.SessionHandler(rec, httptest.NewRequest("DELETE", "/api/sso/session", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, registry.cleared)
	assert.True(t, registry.Get().IsEmpty())
}

func TestSessionHandlerRejectsOtherMethods(t *testing.T) {
	handler := NewSessionHandler(&fakeRegistry{}, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.SessionHandler(rec, httptest.NewRequest("POST", "/api/sso/session", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestConfigHandlerRoundTrip(t *testing.T) {
	store := &fakeStore{cfg: &models.SSOConfig{AppCode: "APP"}}
	handler := NewConfigHandler(store, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.GetConfigHandler(rec, httptest.NewRequest("GET", "/api/sso/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"appCode":"APP"`)

	update := `{"appCode":"NEW","loginUrl":"https://sso/login"}`
	rec = httptest.NewRecorder()
	handler.UpdateConfigHandler(rec, httptest.NewRequest("PUT", "/api/sso/config", strings.NewReader(update)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.lastSaved)
	assert.Equal(t, "NEW", store.lastSaved.AppCode)
}

func TestConfigHandlerRejectsBadBody(t *testing.T) {
	store := &fakeStore{cfg: &models.SSOConfig{}}
	handler := NewConfigHandler(store, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.UpdateConfigHandler(rec, httptest.NewRequest("PUT", "/api/sso/config", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountHandlers(t *testing.T) {
	store := &fakeStore{cfg: &models.SSOConfig{Accounts: []models.Account{}}}
	handler := NewConfigHandler(store, arbor.NewLogger())

	rec := httptest.NewRecorder()
	body := `{"name":"acct","username":"u","password":"p"}`
	handler.AddAccountHandler(rec, httptest.NewRequest("POST", "/api/sso/accounts", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.cfg.Accounts, 1)

	// Name is mandatory.
	rec = httptest.NewRecorder()
	handler.AddAccountHandler(rec, httptest.NewRequest("POST", "/api/sso/accounts", strings.NewReader(`{"username":"u"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.RemoveAccountHandler(rec, httptest.NewRequest("DELETE", "/api/sso/accounts/0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.cfg.Accounts)

	rec = httptest.NewRecorder()
	handler.RemoveAccountHandler(rec, httptest.NewRequest("DELETE", "/api/sso/accounts/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatchHandler(t *testing.T) {
	dispatcher := &fakeDispatcher{resp: &models.APIResponse{Status: 403, Body: "denied"}}
	handler := NewDispatchHandler(dispatcher, arbor.NewLogger())

	body := `{"url":"http://upstream/x","method":"POST","body":"{}"}`
	rec := httptest.NewRecorder()
	handler.CallHandler(rec, httptest.NewRequest("POST", "/api/call", strings.NewReader(body)))

	// Upstream 403 still comes back as a 200 envelope.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":403`)
	require.NotNil(t, dispatcher.lastReq)
	assert.Equal(t, "http://upstream/x", dispatcher.lastReq.URL)
}

func TestDispatchHandlerTransportFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{err: assert.AnError}
	handler := NewDispatchHandler(dispatcher, arbor.NewLogger())

	body := `{"url":"http://upstream/x"}`
	rec := httptest.NewRecorder()
	handler.CallHandler(rec, httptest.NewRequest("POST", "/api/call", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDispatchHandlerRequiresURL(t *testing.T) {
	handler := NewDispatchHandler(&fakeDispatcher{}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.CallHandler(rec, httptest.NewRequest("POST", "/api/call", strings.NewReader(`{"method":"GET"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSSOLoginHandlerStartsAttempt(t *testing.T) {
	orch := &fakeOrchestrator{loginDelay: time.Second}
	store := &fakeStore{cfg: &models.SSOConfig{}}
	handler := NewSSOHandler(orch, store, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.LoginHandler(rec, httptest.NewRequest("POST", "/api/sso/login", strings.NewReader("{}")))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "started", body["status"])
}

func TestSSOLoginHandlerSelectsAccount(t *testing.T) {
	orch := &fakeOrchestrator{loginDelay: time.Second}
	store := &fakeStore{cfg: &models.SSOConfig{Accounts: []models.Account{
		{Name: "first", Username: "u1", Password: "p1"},
		{Name: "second", Username: "u2", Password: "p2"},
	}}}
	handler := NewSSOHandler(orch, store, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.LoginHandler(rec, httptest.NewRequest("POST", "/api/sso/login", strings.NewReader(`{"accountIndex":1}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, orch.accounts, 1)
	require.NotNil(t, orch.accounts[0])
	assert.Equal(t, "second", orch.accounts[0].Name)
}

func TestSSOLoginHandlerRejectsBadIndex(t *testing.T) {
	orch := &fakeOrchestrator{}
	store := &fakeStore{cfg: &models.SSOConfig{}}
	handler := NewSSOHandler(orch, store, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.LoginHandler(rec, httptest.NewRequest("POST", "/api/sso/login", strings.NewReader(`{"accountIndex":3}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, orch.accounts)
}

func TestKVHandlerKeyExtraction(t *testing.T) {
	key, err := extractKey("/api/kv/theme")
	require.NoError(t, err)
	assert.Equal(t, "theme", key)

	key, err = extractKey("/api/kv/my%20key")
	require.NoError(t, err)
	assert.Equal(t, "my key", key)

	_, err = extractKey("/api/kv/")
	assert.Error(t, err)
}

func TestHistoryHandlerList(t *testing.T) {
	history := &stubHistory{events: []*models.LoginEvent{
		{ID: "e1", Status: models.LoginStatusSuccess},
	}}
	handler := NewHistoryHandler(history, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.ListHandler(rec, httptest.NewRequest("GET", "/api/sso/history?limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, history.lastLimit)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["total"])
}

type stubHistory struct {
	events    []*models.LoginEvent
	lastLimit int
}

func (h *stubHistory) StoreLoginEvent(ctx context.Context, event *models.LoginEvent) error {
	h.events = append(h.events, event)
	return nil
}

func (h *stubHistory) ListLoginEvents(ctx context.Context, limit int) ([]*models.LoginEvent, error) {
	h.lastLimit = limit
	return h.events, nil
}

func (h *stubHistory) CountLoginEvents(ctx context.Context) (int, error) {
	return len(h.events), nil
}

func TestUnitsHandlerRequiresSession(t *testing.T) {
	handler := NewUnitsHandler(&stubUnits{}, &fakeRegistry{}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.FetchUnitsHandler(rec, httptest.NewRequest("GET", "/api/units/org-1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnitsHandlerFetch(t *testing.T) {
	units := &stubUnits{resp: &models.APIResponse{Status: 200, Body: `{"data":[]}`}}
	registry := &fakeRegistry{record: &models.SessionRecord{Token: "tok", Cookies: "a=1"}}
	handler := NewUnitsHandler(units, registry, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.FetchUnitsHandler(rec, httptest.NewRequest("GET", "/api/units/org-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "org-1", units.lastOrgID)
	assert.Equal(t, "tok", units.lastToken)
	assert.Equal(t, "a=1", units.lastCookie)
}

type stubUnits struct {
	resp       *models.APIResponse
	lastOrgID  string
	lastToken  string
	lastCookie string
}

func (u *stubUnits) FetchUnits(ctx context.Context, orgID, token, cookie string) (*models.APIResponse, error) {
	u.lastOrgID, u.lastToken, u.lastCookie = orgID, token, cookie
	return u.resp, nil
}

func (u *stubUnits) SetUnitSession(ctx context.Context, req *models.UnitSessionRequest, token, cookie string) (*models.APIResponse, error) {
	u.lastToken, u.lastCookie = token, cookie
	return u.resp, nil
}

var _ interfaces.UnitService = (*stubUnits)(nil)
var _ interfaces.Dispatcher = (*fakeDispatcher)(nil)
var _ interfaces.LoginOrchestrator = (*fakeOrchestrator)(nil)
