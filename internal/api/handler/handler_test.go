package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"prontoapp/backend/internal/api/handler"
	"prontoapp/backend/internal/api/middleware"
	"prontoapp/backend/internal/api/router"
	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/auth"
	"prontoapp/backend/internal/catalog"
	"prontoapp/backend/internal/chathub"
	"prontoapp/backend/internal/marketplace"
	"prontoapp/backend/internal/models"
	"prontoapp/backend/internal/roles"
	"prontoapp/backend/internal/storage"
)

const (
	ana    = "ana@example.com"
	beto   = "beto@example.com"
	juan   = "juan@example.com"
	nobody = "nobody@example.com"
)

// emailVerifier accepts any non-empty token and treats it as the email.
type emailVerifier struct{}

func (emailVerifier) Verify(token string) (auth.Verified, error) {
	if token == "" || token == "invalid" {
		return auth.Verified{}, apperr.New(apperr.ErrAuth, "bad token")
	}
	return auth.Verified{Email: token, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type mockMessageStore struct {
	mock.Mock
}

func (m *mockMessageStore) EnsureThread(ctx context.Context, a, b string) (*models.ChatThread, error) {
	args := m.Called(ctx, a, b)
	return args.Get(0).(*models.ChatThread), args.Error(1)
}

func (m *mockMessageStore) GetThread(ctx context.Context, key string) (*models.ChatThread, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(*models.ChatThread), args.Error(1)
}

func (m *mockMessageStore) Append(ctx context.Context, msg *models.ChatMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockMessageStore) History(ctx context.Context, key string, limit int64) ([]models.ChatMessage, error) {
	args := m.Called(ctx, key, limit)
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *mockMessageStore) ThreadsFor(ctx context.Context, email string) ([]models.ChatThread, error) {
	args := m.Called(ctx, email)
	return args.Get(0).([]models.ChatThread), args.Error(1)
}

type testServer struct {
	engine *gin.Engine
	chats  *mockMessageStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	st := storage.NewStorageService(db)
	require.NoError(t, st.AutoMigrate())

	cat, err := catalog.Default()
	require.NoError(t, err)

	chats := new(mockMessageStore)
	threads := chathub.NewThreads(chats)
	hub := chathub.NewManagerService(threads, nil)
	resolver := roles.NewResolver(emailVerifier{}, st)

	h := handler.NewHandler(
		marketplace.NewRequestStore(st, marketplace.WithCatalog(cat), marketplace.WithPollInterval(10*time.Millisecond)),
		marketplace.NewMatchingIndex(st),
		marketplace.NewRegistry(st, cat),
		cat,
		threads,
		hub,
		resolver,
	)

	limiter := middleware.NewLimiterStore(600, 100, time.Minute)
	t.Cleanup(limiter.Stop)

	return &testServer{engine: router.SetupRoutes(h, resolver, limiter), chats: chats}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) registerRequester(t *testing.T, email string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/requesters", email, marketplace.Profile{
		DisplayName: "Ana", Phone: "+5491100000000", Zone: "La Plata",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (s *testServer) registerProvider(t *testing.T, email string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/providers", email, marketplace.Profile{
		DisplayName: "Juan Plomero", Phone: "+5491111111111", Zone: "La Plata",
		Trade: "Servicios para el Hogar", Specialty: "Plomero",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (s *testServer) createRequest(t *testing.T, token string) models.Request {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/requests", token, gin.H{
		"trade": "Servicios para el Hogar", "specialty": "Plomero", "zone": "La Plata",
		"description": "Pierde la canilla de la cocina",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		Request      models.Request `json:"request"`
		TrackingLink string         `json:"tracking_link"`
	}](t, w).Request
}

func TestHealthAndCatalog(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "", nil).Code)

	w := s.do(t, http.MethodGet, "/api/v1/catalog", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Trades []catalog.Trade `json:"trades"`
		Zones  []string        `json:"zones"`
	}](t, w)
	assert.Len(t, body.Trades, 2)
	assert.Contains(t, body.Zones, "La Plata")
}

func TestRoleAndRegistration(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/role", nobody, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "none", decode[map[string]any](t, w)["role"])

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/role", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/role", "invalid", nil).Code)

	s.registerProvider(t, juan)
	w = s.do(t, http.MethodGet, "/api/v1/role", juan, nil)
	assert.Equal(t, "provider", decode[map[string]any](t, w)["role"])

	// Registered identities cannot register again.
	w = s.do(t, http.MethodPost, "/api/v1/requesters", juan, marketplace.Profile{DisplayName: "J", Phone: "1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/providers", nobody, marketplace.Profile{
		DisplayName: "X", Phone: "1", Zone: "La Plata", Trade: "Jardinería", Specialty: "Poda",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileUpdate(t *testing.T) {
	s := newTestServer(t)
	s.registerRequester(t, ana)

	w := s.do(t, http.MethodPut, "/api/v1/profile", ana, marketplace.Profile{Phone: "+5492210000000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/profile", ana, nil)
	profile := decode[models.Requester](t, w)
	assert.Equal(t, "+5492210000000", profile.Phone)
	assert.Equal(t, "Ana", profile.DisplayName)
	assert.Equal(t, ana, profile.Email)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.registerRequester(t, ana)
	s.registerProvider(t, juan)

	req := s.createRequest(t, ana)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, ana, req.ContactEmail, "contact email defaults to the requester")

	w := s.do(t, http.MethodGet, "/api/v1/provider/requests", juan, nil)
	require.Equal(t, http.StatusOK, w.Code)
	board := decode[[]marketplace.BoardEntry](t, w)
	require.Len(t, board, 1)
	assert.Equal(t, marketplace.StandingNew, board[0].Standing)

	w = s.do(t, http.MethodPost, "/api/v1/requests/"+req.ID+"/quotes", juan, gin.H{
		"amount": 15000, "availability": "mañana", "estimated_time": "2h", "materials_included": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	quote := decode[models.Quote](t, w)

	w = s.do(t, http.MethodGet, "/api/v1/requests/"+req.ID+"/quotes", ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Quote](t, w), 1)

	w = s.do(t, http.MethodPost, "/api/v1/requests/"+req.ID+"/quotes/"+quote.ID+"/accept", ana, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusAccepted, decode[models.Request](t, w).Status)

	w = s.do(t, http.MethodPost, "/api/v1/requests/"+req.ID+"/complete", ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusCompleted, decode[models.Request](t, w).Status)

	w = s.do(t, http.MethodGet, "/api/v1/tracking/"+req.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[marketplace.TrackingView](t, w)
	require.Len(t, view.Quotes, 1)
	assert.Equal(t, "Juan Plomero", view.Quotes[0].ProviderName)
	assert.True(t, view.Quotes[0].Selected)
	assert.NotContains(t, w.Body.String(), "+549", "tracking page carries no phone numbers")
}

func TestErrorKindsMapToStatus(t *testing.T) {
	s := newTestServer(t)
	s.registerRequester(t, ana)
	req := s.createRequest(t, ana)

	w := s.do(t, http.MethodPost, "/api/v1/requests", ana, gin.H{"trade": "Fletes"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/requests/"+req.ID+"/quotes/missing/accept", ana, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/requests/"+req.ID+"/complete", ana, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/tracking/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOwnershipAndRoleGates(t *testing.T) {
	s := newTestServer(t)
	s.registerRequester(t, ana)
	s.registerRequester(t, beto)
	s.registerProvider(t, juan)
	req := s.createRequest(t, ana)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/requests/"+req.ID+"/quotes", beto, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/v1/requests/"+req.ID+"/cancel", beto, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/requests/"+req.ID, beto, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/v1/requests/"+req.ID+"/cancel", juan, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/v1/requests/"+req.ID+"/quotes", ana, gin.H{"amount": 1}).Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/requests/"+req.ID, juan, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/requests/"+req.ID+"/cancel", ana, nil).Code)

	w := s.do(t, http.MethodGet, "/api/v1/requests", beto, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Request](t, w))
}

func TestGetRequest_ProvidersOutsideTradeAndZone(t *testing.T) {
	s := newTestServer(t)
	s.registerRequester(t, ana)
	s.registerProvider(t, juan)
	req := s.createRequest(t, ana)

	const flete = "flete@example.com"
	w := s.do(t, http.MethodPost, "/api/v1/providers", flete, marketplace.Profile{
		DisplayName: "Fletes Tigre", Phone: "+5491122222222", Zone: "Tigre",
		Trade: "Fletes", Specialty: "Con Camión",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/requests/"+req.ID, flete, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), req.ContactPhone)

	w = s.do(t, http.MethodGet, "/api/v1/requests/"+req.ID, juan, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, req.ContactPhone, decode[models.Request](t, w).ContactPhone)
}

func TestProviderDirectory(t *testing.T) {
	s := newTestServer(t)
	s.registerProvider(t, juan)

	w := s.do(t, http.MethodGet, "/api/v1/providers?zone=La%20Plata", nobody, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Provider](t, w), 1)

	w = s.do(t, http.MethodGet, "/api/v1/providers?zone=Tigre", nobody, nil)
	assert.Empty(t, decode[[]models.Provider](t, w))
}

func TestChatMessages(t *testing.T) {
	s := newTestServer(t)
	s.registerRequester(t, ana)
	s.registerRequester(t, beto)
	s.registerProvider(t, juan)

	key := models.ThreadKey(ana, juan)
	thread := &models.ChatThread{Key: key, Participants: []string{ana, juan}}
	s.chats.On("EnsureThread", mock.Anything, ana, juan).Return(thread, nil)
	s.chats.On("GetThread", mock.Anything, key).Return(thread, nil)
	s.chats.On("History", mock.Anything, key, mock.Anything).
		Return([]models.ChatMessage{{ThreadKey: key, Author: juan, Text: "hola", Type: "text"}}, nil)

	w := s.do(t, http.MethodGet, "/api/v1/chats/"+juan+"/messages", ana, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Messages []models.ChatMessage `json:"messages"`
	}](t, w)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "hola", body.Messages[0].Text)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/chats/"+beto+"/messages", ana, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/chats/"+nobody+"/messages", ana, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/chats/"+juan+"/messages", nobody, nil).Code)
}

// streamRecorder adds the CloseNotifier gin's Stream expects.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func TestStreamQuotes_SendsSnapshotAsEvents(t *testing.T) {
	s := newTestServer(t)
	s.registerRequester(t, ana)
	s.registerProvider(t, juan)
	req := s.createRequest(t, ana)

	w := s.do(t, http.MethodPost, "/api/v1/requests/"+req.ID+"/quotes", juan, gin.H{"amount": 9000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	quote := decode[models.Quote](t, w)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	httpReq := httptest.NewRequest(http.MethodGet, "/api/v1/requests/"+req.ID+"/quotes/stream?token="+ana, nil).WithContext(ctx)
	rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
	s.engine.ServeHTTP(rec, httpReq)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event:quote")
	assert.Contains(t, rec.Body.String(), quote.ID)
}
