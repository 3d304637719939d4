package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unrepo/devportal/internal/config"
	"github.com/unrepo/devportal/internal/keystore"
	"github.com/unrepo/devportal/internal/models"
	"github.com/unrepo/devportal/internal/session"
)

type fakeStore struct {
	mu          sync.Mutex
	keys        []models.APIKey
	usage       []models.UsageRecord
	listErr     error
	generateRes *keystore.GenerateResult
	generateErr error
	deleteErr   error
	// gate, when set, blocks GenerateKey until closed
	gate chan struct{}

	listCalls     int32
	generateCalls int32
	deleteCalls   int32
	usageCalls    int32
	identities    []string
}

func (s *fakeStore) ListKeys(ctx context.Context, identity string) ([]models.APIKey, error) {
	atomic.AddInt32(&s.listCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities = append(s.identities, identity)
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.APIKey, len(s.keys))
	copy(out, s.keys)
	return out, nil
}

func (s *fakeStore) GenerateKey(ctx context.Context, identity string, keyType models.KeyType, name string) (*keystore.GenerateResult, error) {
	atomic.AddInt32(&s.generateCalls, 1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	if s.generateRes != nil {
		s.keys = append(s.keys, models.APIKey{ID: fmt.Sprintf("k%d", len(s.keys)+1), Secret: s.generateRes.Secret, Type: keyType, Name: name, IsActive: true})
	}
	return s.generateRes, nil
}

func (s *fakeStore) DeleteKey(ctx context.Context, identity, keyID string) error {
	atomic.AddInt32(&s.deleteCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i := range s.keys {
		if s.keys[i].ID == keyID {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return nil
}

func (s *fakeStore) FetchUsageStats(ctx context.Context, identity string) ([]models.UsageRecord, error) {
	atomic.AddInt32(&s.usageCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage, nil
}

type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *memCache) Put(_ context.Context, slot, secret string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string]string{}
	}
	c.m[slot] = secret
	return nil
}

func (c *memCache) Get(_ context.Context, slot string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[slot]
	return v, ok, nil
}

type harness struct {
	ctrl      *Controller
	store     *fakeStore
	queue     *NotificationQueue
	cache     *memCache
	confirm   bool
	confirmed int32
}

func newHarness(t *testing.T, store *fakeStore, user *session.User) *harness {
	t.Helper()
	h := &harness{store: store, queue: NewNotificationQueue(10), cache: &memCache{}}
	ctrl, err := New(Options{
		Store:    store,
		Session:  session.NewContext(session.StaticProvider{User: user}, time.Second),
		Notifier: h.queue,
		Confirmer: ConfirmFunc(func(ctx context.Context, prompt string) bool {
			atomic.AddInt32(&h.confirmed, 1)
			return h.confirm
		}),
		Cache:      h.cache,
		InitialTab: "create",
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	h.ctrl = ctrl
	return h
}

var devUser = &session.User{Email: "dev@example.com", Name: "Dev"}

func TestNew_RequiresStoreAndSession(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestStart_UnauthenticatedMakesNoCalls(t *testing.T) {
	store := &fakeStore{}
	h := newHarness(t, store, nil)
	h.ctrl.Start(context.Background())

	assert.Zero(t, atomic.LoadInt32(&store.listCalls))
	assert.Zero(t, atomic.LoadInt32(&store.usageCalls))
	_, err := h.ctrl.SubmitCreation(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, h.ctrl.DeleteKey(context.Background(), "k1"), ErrNotAuthenticated)
}

func TestStart_EmptyDashboard(t *testing.T) {
	store := &fakeStore{}
	h := newHarness(t, store, devUser)
	h.ctrl.Start(context.Background())

	v := h.ctrl.View()
	assert.Equal(t, 0, v.ActiveKeyCount)
	assert.Equal(t, int64(0), v.TotalCalls)
	assert.Equal(t, TabCreate, v.Tab)
	assert.Equal(t, "dev@example.com", v.Identity)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.listCalls))
	assert.Equal(t, []string{"dev@example.com"}, store.identities)
}

// flakyProvider fails its first lookup and answers afterwards
type flakyProvider struct {
	calls int32
	user  *session.User
}

func (p *flakyProvider) CurrentUser(ctx context.Context) (*session.User, error) {
	if atomic.AddInt32(&p.calls, 1) == 1 {
		return nil, errors.New("provider unavailable")
	}
	return p.user, nil
}

func TestReconnect_RecoversFromFailedResolve(t *testing.T) {
	store := &fakeStore{keys: []models.APIKey{{ID: "k1", Type: models.KeyTypeResearch, IsActive: true}}}
	ctrl, err := New(Options{
		Store:   store,
		Session: session.NewContext(&flakyProvider{user: devUser}, time.Second),
	})
	require.NoError(t, err)
	defer ctrl.Close()

	ctrl.Start(context.Background())
	require.False(t, ctrl.Session().Authenticated())
	assert.Zero(t, atomic.LoadInt32(&store.listCalls))

	s := ctrl.Reconnect(context.Background())
	assert.True(t, s.Authenticated())
	assert.Equal(t, "dev@example.com", ctrl.View().Identity)
	assert.Len(t, ctrl.Keys(), 1, "keys are loaded before Reconnect returns")
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.listCalls))

	ctrl.Reconnect(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.listCalls), "signed-in session is not resolved again")
}

type brokenCache struct{}

func (brokenCache) Put(context.Context, string, string) error { return errors.New("cache down") }

func (brokenCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("cache down")
}

func TestSubmit_ReturnsSecretWhenCacheFails(t *testing.T) {
	store := &fakeStore{generateRes: &keystore.GenerateResult{Secret: "unrepo_chatbot_0123456789abcdefxyz"}}
	ctrl, err := New(Options{
		Store:   store,
		Session: session.NewContext(session.StaticProvider{User: devUser}, time.Second),
		Cache:   brokenCache{},
	})
	require.NoError(t, err)
	defer ctrl.Close()
	ctrl.Start(context.Background())

	require.NoError(t, ctrl.OpenCreation(models.KeyTypeChatbot))
	require.NoError(t, ctrl.SetCreationName("bot"))
	res, err := ctrl.SubmitCreation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unrepo_chatbot_0123456789abcdefxyz", res.Secret)
	assert.Equal(t, FlowClosed, ctrl.Creation().State)

	_, ok := ctrl.CachedKey(context.Background(), models.KeyTypeChatbot)
	assert.False(t, ok)
}

func TestRefresh_ReadFailureKeepsCachedList(t *testing.T) {
	store := &fakeStore{keys: []models.APIKey{{ID: "k1", Type: models.KeyTypeResearch, UsageCount: 4}}}
	h := newHarness(t, store, devUser)
	h.ctrl.Start(context.Background())
	require.Len(t, h.ctrl.Keys(), 1)

	store.mu.Lock()
	store.listErr = keystore.ErrBackendUnavailable
	store.mu.Unlock()
	h.ctrl.RefreshKeys(context.Background())

	assert.Len(t, h.ctrl.Keys(), 1)
	assert.Empty(t, h.queue.Drain(), "read failures are not surfaced")
}

func TestSubmit_BlankNameMakesNoCall(t *testing.T) {
	store := &fakeStore{}
	h := newHarness(t, store, devUser)
	h.ctrl.Start(context.Background())

	require.NoError(t, h.ctrl.OpenCreation(models.KeyTypeResearch))
	require.NoError(t, h.ctrl.SetCreationName(" \t "))
	_, err := h.ctrl.SubmitCreation(context.Background())

	assert.ErrorIs(t, err, ErrNameRequired)
	assert.Zero(t, atomic.LoadInt32(&store.generateCalls))
	assert.Equal(t, FlowTypeSelected, h.ctrl.Creation().State)
	assert.Empty(t, h.queue.Drain(), "validation is inline, not a notification")
}

func TestSubmit_SuccessRefetchesOnceAndCloses(t *testing.T) {
	store := &fakeStore{generateRes: &keystore.GenerateResult{Secret: "unrepo_research_abc123def456ghi789"}}
	h := newHarness(t, store, devUser)
	h.ctrl.Start(context.Background())
	before := atomic.LoadInt32(&store.listCalls)

	require.NoError(t, h.ctrl.OpenCreation(models.KeyTypeResearch))
	require.NoError(t, h.ctrl.SetCreationName("My Project"))
	res, err := h.ctrl.SubmitCreation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unrepo_research_abc123def456ghi789", res.Secret)

	assert.Equal(t, before+1, atomic.LoadInt32(&store.listCalls))
	assert.Equal(t, FlowClosed, h.ctrl.Creation().State)
	assert.Len(t, h.ctrl.Keys(), 1)

	cached, ok := h.ctrl.CachedKey(context.Background(), models.KeyTypeResearch)
	assert.True(t, ok)
	assert.Equal(t, "unrepo_research_abc123def456ghi789", cached)

	notes := h.queue.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelSuccess, notes[0].Level)
	assert.Equal(t, MsgGenerated, notes[0].Title)
	assert.Contains(t, notes[0].Description, "Key: unrepo_research_abc1...")
	assert.Contains(t, notes[0].Description, OneTimeRevealWarning)
	assert.Equal(t, 5*time.Second, notes[0].Duration)
}

func TestSubmit_ExistingKeyMessage(t *testing.T) {
	store := &fakeStore{generateRes: &keystore.GenerateResult{Secret: "unrepo_research_xyz", Existing: true}}
	h := newHarness(t, store, devUser)
	h.ctrl.Start(context.Background())

	require.NoError(t, h.ctrl.OpenCreation(models.KeyTypeResearch))
	require.NoError(t, h.ctrl.SetCreationName("again"))
	res, err := h.ctrl.SubmitCreation(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Existing)

	notes := h.queue.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, MsgExisting, notes[0].Title)
	assert.NotEqual(t, MsgGenerated, notes[0].Title)
}

func TestSubmit_FailureKeepsDraftAndNotifies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &keystore.RemoteError{Operation: "generate_key", StatusCode: 200, Message: "Key limit reached"}, "Key limit reached"},
		{"no message", &keystore.RemoteError{Operation: "generate_key", StatusCode: 400}, MsgGenerateFailed},
		{"transport", fmt.Errorf("%w: dial tcp", keystore.ErrBackendUnavailable), MsgGenerateTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{generateErr: tt.err}
			h := newHarness(t, store, devUser)
			h.ctrl.Start(context.Background())
			before := atomic.LoadInt32(&store.listCalls)

			require.NoError(t, h.ctrl.OpenCreation(models.KeyTypeChatbot))
			require.NoError(t, h.ctrl.SetCreationName("bot"))
			res, err := h.ctrl.SubmitCreation(context.Background())
			assert.Error(t, err)
			assert.Nil(t, res)

			d := h.ctrl.Creation()
			assert.Equal(t, FlowFailed, d.State)
			assert.Equal(t, "bot", d.Name)
			assert.Equal(t, before, atomic.LoadInt32(&store.listCalls), "no refetch after failure")

			notes := h.queue.Drain()
			require.Len(t, notes, 1)
			assert.Equal(t, LevelError, notes[0].Level)
			assert.Equal(t, tt.want, notes[0].Title)
		})
	}
}

func TestSubmit_DoubleSubmitIssuesOneGenerate(t *testing.T) {
	store := &fakeStore{
		generateRes: &keystore.GenerateResult{Secret: "unrepo_chatbot_0123456789abcdef"},
		gate:        make(chan struct{}),
	}
	h := newHarness(t, store, devUser)
	h.ctrl.Start(context.Background())
	require.NoError(t, h.ctrl.OpenCreation(models.KeyTypeChatbot))
	require.NoError(t, h.ctrl.SetCreationName("bot"))

	first := make(chan error, 1)
	go func() {
		_, err := h.ctrl.SubmitCreation(context.Background())
		first <- err
	}()

	require.Eventually(t, func() bool { return h.ctrl.Creation().Submitting() }, time.Second, time.Millisecond)
	for i := 0; i < 5; i++ {
		_, err := h.ctrl.SubmitCreation(context.Background())
		assert.ErrorIs(t, err, ErrSubmitInProgress)
	}
	assert.ErrorIs(t, h.ctrl.CancelCreation(), ErrSubmitInProgress)

	close(store.gate)
	require.NoError(t, <-first)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.generateCalls))
}

func TestDelete_DeclinedMakesNoCall(t *testing.T) {
	store := &fakeStore{keys: []models.APIKey{{ID: "k1", Type: models.KeyTypeResearch}}}
	h := newHarness(t, store, devUser)
	h.ctrl.Start(context.Background())
	h.confirm = false

	err := h.ctrl.DeleteKey(context.Background(), "k1")

	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.confirmed))
	assert.Zero(t, atomic.LoadInt32(&store.deleteCalls))
	assert.Len(t, h.ctrl.Keys(), 1)
}

func TestDelete_ConfirmedRefetchesAndNotifies(t *testing.T) {
	store := &fakeStore{keys: []models.APIKey{{ID: "k1", Type: models.KeyTypeResearch}, {ID: "k2", Type: models.KeyTypeChatbot}}}
	h := newHarness(t, store, devUser)
	h.ctrl.Start(context.Background())
	h.confirm = true

	require.NoError(t, h.ctrl.DeleteKey(context.Background(), "k1"))

	keys := h.ctrl.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "k2", keys[0].ID)
	notes := h.queue.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, MsgDeleted, notes[0].Title)
}

func TestDelete_FailureNotifies(t *testing.T) {
	store := &fakeStore{
		keys:      []models.APIKey{{ID: "k1", Type: models.KeyTypeResearch}},
		deleteErr: &keystore.RemoteError{Operation: "delete_key", StatusCode: 404},
	}
	h := newHarness(t, store, devUser)
	h.ctrl.Start(context.Background())
	h.confirm = true

	assert.Error(t, h.ctrl.DeleteKey(context.Background(), "k1"))
	notes := h.queue.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, MsgDeleteFailed, notes[0].Title)
	assert.Len(t, h.ctrl.Keys(), 1)
}

func TestRequestConfirmer(t *testing.T) {
	var c RequestConfirmer
	assert.False(t, c.Confirm(context.Background(), DeletePrompt))
	assert.False(t, c.Confirm(WithConfirmation(context.Background(), false), DeletePrompt))
	assert.True(t, c.Confirm(WithConfirmation(context.Background(), true), DeletePrompt))
}

func TestToggleAndCopy(t *testing.T) {
	store := &fakeStore{keys: []models.APIKey{
		{ID: "k1", Type: models.KeyTypeResearch, Secret: "unrepo_research_0123456789abcdef"},
		{ID: "k2", Type: models.KeyTypeChatbot, Secret: "unrepo_chatbot_0123456789abcdef"},
	}}
	h := newHarness(t, store, devUser)
	h.ctrl.Start(context.Background())

	revealed, err := h.ctrl.ToggleVisibility("k1")
	require.NoError(t, err)
	assert.True(t, revealed)
	v := h.ctrl.View()
	assert.Equal(t, "unrepo_research_0123456789abcdef", v.Keys[0].Secret)
	assert.Equal(t, Mask("unrepo_chatbot_0123456789abcdef"), v.Keys[1].Secret)

	_, err = h.ctrl.ToggleVisibility("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	secret, err := h.ctrl.CopyKey(context.Background(), "k2")
	require.NoError(t, err)
	assert.Equal(t, "unrepo_chatbot_0123456789abcdef", secret)
	assert.Equal(t, "k2", h.ctrl.CopiedKeyID())
	notes := h.queue.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, MsgCopied, notes[0].Title)
}

func TestToggleWhileFetchInFlight(t *testing.T) {
	block := make(chan struct{})
	store := &blockingListStore{fakeStore: &fakeStore{keys: []models.APIKey{{ID: "k1"}}}, block: block}
	h := newHarness(t, store.fakeStore, devUser)
	h.ctrl.store = store
	h.ctrl.Start(context.Background())

	store.armed.Store(true)
	done := make(chan struct{})
	go func() {
		h.ctrl.RefreshKeys(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return store.waiting.Load() }, time.Second, time.Millisecond)

	_, err := h.ctrl.ToggleVisibility("k1")
	assert.NoError(t, err, "toggle must not wait for the fetch")
	close(block)
	<-done
}

type blockingListStore struct {
	*fakeStore
	block   chan struct{}
	armed   atomic.Bool
	waiting atomic.Bool
}

func (s *blockingListStore) ListKeys(ctx context.Context, identity string) ([]models.APIKey, error) {
	if s.armed.Load() {
		s.waiting.Store(true)
		<-s.block
	}
	return s.fakeStore.ListKeys(ctx, identity)
}

// sequencedStore answers list calls in a caller-controlled order
type sequencedStore struct {
	*fakeStore
	mu      sync.Mutex
	n       int
	answers []chan []models.APIKey
}

func (s *sequencedStore) ListKeys(ctx context.Context, identity string) ([]models.APIKey, error) {
	s.mu.Lock()
	ch := s.answers[s.n]
	s.n++
	s.mu.Unlock()
	select {
	case keys := <-ch:
		return keys, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefresh_StaleResponseDoesNotOverwriteNewer(t *testing.T) {
	seq := &sequencedStore{fakeStore: &fakeStore{}, answers: []chan []models.APIKey{
		make(chan []models.APIKey, 1), make(chan []models.APIKey, 1), make(chan []models.APIKey, 1),
	}}
	seq.answers[0] <- []models.APIKey{}
	h := newHarness(t, seq.fakeStore, devUser)
	h.ctrl.store = seq
	h.ctrl.Start(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); h.ctrl.RefreshKeys(context.Background()) }()
	require.Eventually(t, func() bool { seq.mu.Lock(); defer seq.mu.Unlock(); return seq.n == 2 }, time.Second, time.Millisecond)
	wg.Add(1)
	go func() { defer wg.Done(); h.ctrl.RefreshKeys(context.Background()) }()
	require.Eventually(t, func() bool { seq.mu.Lock(); defer seq.mu.Unlock(); return seq.n == 3 }, time.Second, time.Millisecond)

	// newer request resolves first, older one afterwards
	seq.answers[2] <- []models.APIKey{{ID: "new"}}
	require.Eventually(t, func() bool { k := h.ctrl.Keys(); return len(k) == 1 && k[0].ID == "new" }, time.Second, time.Millisecond)
	seq.answers[1] <- []models.APIKey{{ID: "old"}}
	wg.Wait()

	keys := h.ctrl.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "new", keys[0].ID)
}

func TestClose_CancelsInFlightAndDiscards(t *testing.T) {
	seq := &sequencedStore{fakeStore: &fakeStore{}, answers: []chan []models.APIKey{
		make(chan []models.APIKey, 1), make(chan []models.APIKey),
	}}
	seq.answers[0] <- []models.APIKey{}
	h := newHarness(t, seq.fakeStore, devUser)
	h.ctrl.store = seq
	h.ctrl.Start(context.Background())

	done := make(chan struct{})
	go func() {
		h.ctrl.RefreshKeys(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { seq.mu.Lock(); defer seq.mu.Unlock(); return seq.n == 2 }, time.Second, time.Millisecond)

	h.ctrl.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not cancel the in-flight fetch")
	}
	assert.Empty(t, h.ctrl.Keys())
	assert.ErrorIs(t, h.ctrl.DeleteKey(context.Background(), "k1"), ErrClosed)
}

// Scenario tests against the real HTTP client and a stub backend

func newBackendStub(t *testing.T, generate func(w http.ResponseWriter, body models.GenerateKeyRequest)) (*keystore.Client, *int32, *int32, *int32) {
	t.Helper()
	var lists, generates, deletes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/keys", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&lists, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": []interface{}{}})
	})
	mux.HandleFunc("/api/keys/usage", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": []interface{}{}})
	})
	mux.HandleFunc("/api/keys/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&generates, 1)
		var body models.GenerateKeyRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		generate(w, body)
	})
	mux.HandleFunc("/api/keys/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			atomic.AddInt32(&deletes, 1)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := keystore.NewClient(&config.BackendConfig{
		URL: srv.URL, Timeout: 2 * time.Second, MinTimeout: time.Second, MaxTimeout: 5 * time.Second,
	}, keystore.WithBreaker(keystore.NewBreaker(t.Name(), nil)))
	return client, &lists, &generates, &deletes
}

func TestScenario_GenerateResearchKey(t *testing.T) {
	client, lists, generates, _ := newBackendStub(t, func(w http.ResponseWriter, body models.GenerateKeyRequest) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]string{"apiKey": "unrepo_research_abc123def456ghi789jkl"},
		})
	})
	queue := NewNotificationQueue(5)
	ctrl, err := New(Options{
		Store:    client,
		Session:  session.NewContext(session.StaticProvider{User: devUser}, time.Second),
		Notifier: queue,
	})
	require.NoError(t, err)
	defer ctrl.Close()
	ctrl.Start(context.Background())
	before := atomic.LoadInt32(lists)

	require.NoError(t, ctrl.OpenCreation(models.KeyTypeResearch))
	require.NoError(t, ctrl.SetCreationName("My Project"))
	res, err := ctrl.SubmitCreation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unrepo_research_abc123def456ghi789jkl", res.Secret)

	assert.Equal(t, int32(1), atomic.LoadInt32(generates))
	assert.Equal(t, before+1, atomic.LoadInt32(lists))
	notes := queue.Drain()
	require.Len(t, notes, 1)
	assert.True(t, strings.HasPrefix(notes[0].Description, "Key: unrepo_research_abc1..."))
}

func TestScenario_ExistingKey(t *testing.T) {
	client, _, _, _ := newBackendStub(t, func(w http.ResponseWriter, body models.GenerateKeyRequest) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "API key already exists",
			"data":    map[string]string{"key": "unrepo_research_xyz"},
		})
	})
	queue := NewNotificationQueue(5)
	ctrl, err := New(Options{
		Store:    client,
		Session:  session.NewContext(session.StaticProvider{User: devUser}, time.Second),
		Notifier: queue,
	})
	require.NoError(t, err)
	defer ctrl.Close()
	ctrl.Start(context.Background())

	require.NoError(t, ctrl.OpenCreation(models.KeyTypeResearch))
	require.NoError(t, ctrl.SetCreationName("dup"))
	res, err := ctrl.SubmitCreation(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Existing)

	notes := queue.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, MsgExisting, notes[0].Title)
}

func TestScenario_DeleteDeclined(t *testing.T) {
	client, _, _, deletes := newBackendStub(t, func(w http.ResponseWriter, body models.GenerateKeyRequest) {})
	ctrl, err := New(Options{
		Store:     client,
		Session:   session.NewContext(session.StaticProvider{User: devUser}, time.Second),
		Confirmer: RequestConfirmer{},
	})
	require.NoError(t, err)
	defer ctrl.Close()
	ctrl.Start(context.Background())

	err = ctrl.DeleteKey(context.Background(), "k1")
	assert.True(t, errors.Is(err, ErrNotConfirmed))
	assert.Zero(t, atomic.LoadInt32(deletes))
}
