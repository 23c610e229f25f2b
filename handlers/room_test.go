package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"whosaidit/auth"
	"whosaidit/internal/game"
	"whosaidit/models"
	"whosaidit/questions"
	"whosaidit/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRouter(t *testing.T) (*gin.Engine, *auth.TokenManager) {
	t.Helper()
	store := questions.NewStaticStore(questions.DefaultTemplates)
	engine := game.NewEngine(repository.NewMemoryRoomRepository(),
		questions.NewSupplier(store, questions.NewCache(store), zap.NewNop()), zap.NewNop())
	return setupRouterWith(engine)
}

func setupRouterWith(engine *game.Engine) (*gin.Engine, *auth.TokenManager) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenManager("test-secret")

	router := gin.New()
	NewRoomHandler(engine, tokens, zap.NewNop()).RegisterRoutes(router)
	return router, tokens
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)
	w, body := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestRoomLifecycle(t *testing.T) {
	router, tokens := setupRouter(t)

	w, created := do(t, router, http.MethodPost, "/api/rooms", gin.H{"hostName": "Alice"})
	require.Equal(t, http.StatusCreated, w.Code)
	code := created["roomCode"].(string)
	hostID := created["playerId"].(string)

	claims, err := tokens.ParseToken(created["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, code, claims.RoomCode)
	assert.Equal(t, hostID, claims.PlayerID)

	w, joined := do(t, router, http.MethodPost, "/api/rooms/"+code+"/join", gin.H{"playerName": "Bob"})
	require.Equal(t, http.StatusOK, w.Code)
	bobID := joined["playerId"].(string)
	assert.NotEmpty(t, joined["token"])

	w, body := do(t, router, http.MethodPost, "/api/rooms/"+code+"/join", gin.H{"playerName": "BOB"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, game.ErrNameAlreadyTaken.Code, body["status"])

	w, body = do(t, router, http.MethodGet, "/api/rooms/"+code, nil)
	require.Equal(t, http.StatusOK, w.Code)
	room := body["room"].(map[string]interface{})
	assert.Equal(t, string(models.StateWaiting), room["gameState"])
	assert.Len(t, room["players"], 2)

	w, body = do(t, router, http.MethodPost, "/api/rooms/"+code+"/rejoin", gin.H{"playerId": bobID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, bobID, body["playerId"])
	assert.NotEmpty(t, body["token"])
}

func TestRejoinWithToken(t *testing.T) {
	router, _ := setupRouter(t)

	_, created := do(t, router, http.MethodPost, "/api/rooms", gin.H{"hostName": "Alice"})
	code := created["roomCode"].(string)
	hostID := created["playerId"].(string)
	_, joined := do(t, router, http.MethodPost, "/api/rooms/"+code+"/join", gin.H{"playerName": "Bob"})
	bobToken := joined["token"].(string)

	rejoin := func(playerID, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/rooms/"+code+"/rejoin",
			bytes.NewBufferString(`{"playerId":"`+playerID+`"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusForbidden, rejoin(hostID, bobToken).Code)
	assert.Equal(t, http.StatusOK, rejoin(joined["playerId"].(string), bobToken).Code)

	forged, err := auth.NewTokenManager("other").GenerateToken(code, hostID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rejoin(hostID, forged).Code)
}

func TestGetRoomHidesAnswersDuringPlay(t *testing.T) {
	ctx := context.Background()
	store := questions.NewStaticStore(questions.DefaultTemplates)
	engine := game.NewEngine(repository.NewMemoryRoomRepository(),
		questions.NewSupplier(store, questions.NewCache(store), zap.NewNop()), zap.NewNop())
	router, _ := setupRouterWith(engine)

	room, hostID, err := engine.CreateRoom(ctx, "Alice")
	require.NoError(t, err)
	ids := []string{hostID}
	for _, name := range []string{"Bob", "Carol"} {
		_, id, err := engine.JoinRoom(ctx, room.RoomCode, name)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, _, err = engine.StartGame(ctx, room.RoomCode, hostID)
	require.NoError(t, err)
	for i, id := range ids[:2] {
		_, err := engine.SubmitAnswer(ctx, room.RoomCode, id, "hidden answer "+string(rune('A'+i)))
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+room.RoomCode, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, strings.Contains(w.Body.String(), "hidden answer"), w.Body.String())

	_, err = engine.SubmitAnswer(ctx, room.RoomCode, ids[2], "hidden answer C")
	require.NoError(t, err)
	w, body := do(t, router, http.MethodPost, "/api/rooms/"+room.RoomCode+"/rejoin", gin.H{"playerId": ids[1]})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(models.StateVoting), body["room"].(map[string]interface{})["gameState"])
	assert.NotContains(t, w.Body.String(), "hidden answer")
}

func TestRoomErrors(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"short name", http.MethodPost, "/api/rooms", gin.H{"hostName": "A"}, http.StatusBadRequest, "InvalidName"},
		{"bad body", http.MethodPost, "/api/rooms", "nope", http.StatusBadRequest, "BadMessage"},
		{"unknown room", http.MethodGet, "/api/rooms/ZZZ999", nil, http.StatusNotFound, "RoomNotFound"},
		{"bad code", http.MethodGet, "/api/rooms/abc", nil, http.StatusBadRequest, "InvalidRoomCode"},
		{"join unknown", http.MethodPost, "/api/rooms/ZZZ999/join", gin.H{"playerName": "Bob"}, http.StatusNotFound, "RoomNotFound"},
		{"rejoin without id", http.MethodPost, "/api/rooms/ZZZ999/rejoin", gin.H{}, http.StatusBadRequest, "BadMessage"},
		{"rejoin unknown", http.MethodPost, "/api/rooms/ZZZ999/rejoin", gin.H{"playerId": "x"}, http.StatusNotFound, "RoomNotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body["status"])
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(game.ErrCodeGenerationExhausted.Kind))
	assert.Equal(t, http.StatusInternalServerError, statusFor(game.ErrInternal.Kind))
}
