package keepalive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

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

type staticRegistry struct {
	record *models.SessionRecord
}

func (r *staticRegistry) Set(record *models.SessionRecord) { r.record = record }
func (r *staticRegistry) Get() *models.SessionRecord {
	if r.record == nil {
		return &models.SessionRecord{}
	}
	return r.record
}
func (r *staticRegistry) Clear(ctx context.Context) error {
	r.record = &models.SessionRecord{}
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (e *recordingEvents) Subscribe(interfaces.EventType, interfaces.EventHandler) error   { return nil }
func (e *recordingEvents) Unsubscribe(interfaces.EventType, interfaces.EventHandler) error { return nil }
func (e *recordingEvents) Publish(ctx context.Context, event interfaces.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}
func (e *recordingEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return e.Publish(ctx, event)
}
func (e *recordingEvents) Close() error { return nil }

func (e *recordingEvents) published() []interfaces.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]interfaces.Event(nil), e.events...)
}

func newProbeFixture(serviceURL string, record *models.SessionRecord) (*Service, *recordingEvents) {
	events := &recordingEvents{}
	svc := NewService(
		common.KeepaliveConfig{Enabled: true, Schedule: "0 */5 * * * *"},
		&staticStore{cfg: &models.SSOConfig{ServiceURL: serviceURL}},
		&staticRegistry{record: record},
		events,
		common.GetLogger(),
	)
	return svc, events
}

func TestProbeSkipsWhenNoSession(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	svc, events := newProbeFixture(server.URL, nil)
	svc.probe()

	assert.False(t, called)
	assert.Empty(t, events.published())
}

func TestProbeSendsSessionCredentials(t *testing.T) {
	var received *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Clone(context.Background())
	}))
	defer server.Close()

	svc, events := newProbeFixture(server.URL, &models.SessionRecord{
		Cookies: "JSESSIONID=j",
		Token:   "tok",
	})
	svc.probe()

	require.NotNil(t, received)
	assert.Equal(t, "JSESSIONID=j", received.Header.Get("Cookie"))
	assert.Equal(t, "Bearer tok", received.Header.Get("Authorization"))
	assert.Empty(t, events.published(), "healthy session publishes nothing")
}

func TestProbeFlagsRejectedSessionAsStale(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	svc, events := newProbeFixture(server.URL, &models.SessionRecord{Token: "tok"})
	svc.probe()

	published := events.published()
	require.Len(t, published, 1)
	assert.Equal(t, interfaces.EventSessionStale, published[0].Type)
}

func TestProbeNetworkFailureIsNotStale(t *testing.T) {
	svc, events := newProbeFixture("http://127.0.0.1:1", &models.SessionRecord{Token: "tok"})
	svc.probe()
	assert.Empty(t, events.published())
}

func TestStartDisabledIsNoOp(t *testing.T) {
	svc := NewService(
		common.KeepaliveConfig{Enabled: false},
		&staticStore{cfg: &models.SSOConfig{}},
		&staticRegistry{},
		nil,
		common.GetLogger(),
	)
	require.NoError(t, svc.Start())
	svc.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	svc := NewService(
		common.KeepaliveConfig{Enabled: true, Schedule: "not a schedule"},
		&staticStore{cfg: &models.SSOConfig{}},
		&staticRegistry{},
		nil,
		common.GetLogger(),
	)
	assert.Error(t, svc.Start())
}
