package routes

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/badminton-platform/handlers"
	"github.com/Dosada05/badminton-platform/models"
	"github.com/Dosada05/badminton-platform/notifications"
	"github.com/Dosada05/badminton-platform/rating"
	"github.com/Dosada05/badminton-platform/repositories"
	"github.com/Dosada05/badminton-platform/services"
)

var secret = []byte("routes-test-secret")

func newServer(t *testing.T) (*httptest.Server, *notifications.Hub) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repositories.NewMemoryStore(rating.DefaultInitial)
	for _, id := range []string{"a1", "b1"} {
		store.PutAccount(models.Account{ID: id, DisplayName: id, CreatedAt: time.Now()})
	}

	hub := notifications.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	t.Cleanup(cancel)

	confirmations := services.NewConfirmationService(store, rating.NewModel(rating.DefaultKFactor),
		notifications.NewHubNotifier(hub), nil, logger, services.DefaultMaxAttempts)

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Match:     handlers.NewMatchHandler(confirmations),
		Account:   handlers.NewAccountHandler(confirmations, services.NewRatingService(store)),
		WebSocket: handlers.NewWebSocketHandler(hub, []string{"*"}, logger),
		Health:    handlers.NewHealthHandler(nil),
	}, Options{JWTSecret: secret, AllowedOrigins: []string{"*"}, Logger: logger})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, hub
}

func token(t *testing.T, accountID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)
	return signed
}

func request(t *testing.T, method, url, bearer, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPublicRoutes(t *testing.T) {
	srv, _ := newServer(t)

	resp := request(t, http.MethodGet, srv.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))

	resp = request(t, http.MethodGet, srv.URL+"/swagger/doc.json", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "/matches/{matchID}/confirm")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := newServer(t)

	for _, path := range []string{"/matches/x", "/accounts/a1/ratings", "/ws"} {
		resp := request(t, http.MethodGet, srv.URL+path, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp := request(t, http.MethodGet, srv.URL+"/accounts/a1/ratings", token(t, "a1"), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/matches", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestConfirmationReachesOpponentSocket(t *testing.T) {
	srv, hub := newServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token(t, "b1")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool {
		return hub.ClientsInRoom(notifications.RoomForAccount("b1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp := request(t, http.MethodPost, srv.URL+"/matches", token(t, "a1"),
		`{"discipline":"singles","side_a":["a1"],"side_b":["b1"],"set_scores":[[21,19],[21,18]],"declared_winner":"sideA"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.MatchEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventConfirmationRequested, event.Type)
	assert.Equal(t, "b1", event.AccountID)
	assert.Equal(t, strings.TrimPrefix(resp.Header.Get("Location"), "/matches/"), event.MatchID)
}
