package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codxp/xptracker/internal/auth"
	"github.com/codxp/xptracker/internal/service"
	"github.com/codxp/xptracker/internal/store"
)

func newTestServer(t *testing.T) *RestServer {
	t.Helper()
	// Изолируем prometheus-регистр, иначе повторный MustRegister паникует
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokenService("")
	require.NoError(t, err)
	accounts := service.NewAccountService(store.NewMemoryStore(), tokens)
	return NewRestServer(Config{Accounts: accounts})
}

func doJSON(t *testing.T, rs *RestServer, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	w := httptest.NewRecorder()
	rs.Router().ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, rs *RestServer, username, password string) string {
	t.Helper()
	w := doJSON(t, rs, "POST", "/register", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return "Bearer " + resp.Token
}

func TestRegisterEndpoint(t *testing.T) {
	rs := newTestServer(t)

	w := doJSON(t, rs, "POST", "/register", "", map[string]string{
		"username": "alice", "password": "pw",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Повторная регистрация — 409
	w = doJSON(t, rs, "POST", "/register", "", map[string]string{
		"username": "alice", "password": "pw",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Отсутствующие поля — 400
	for _, body := range []map[string]string{
		{"username": "bob"},
		{"password": "pw"},
		{},
	} {
		w = doJSON(t, rs, "POST", "/register", "", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestLoginEndpoint(t *testing.T) {
	rs := newTestServer(t)
	registerAndLogin(t, rs, "alice", "pw")

	w := doJSON(t, rs, "POST", "/login", "", map[string]string{
		"username": "alice", "password": "pw",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Неверный пароль и несуществующий пользователь дают одинаковый 401
	for _, body := range []map[string]string{
		{"username": "alice", "password": "wrong"},
		{"username": "ghost", "password": "pw"},
	} {
		w = doJSON(t, rs, "POST", "/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
	}
}

func TestBearerRequired(t *testing.T) {
	rs := newTestServer(t)

	for _, header := range []string{
		"",
		"Bearer",
		"Basic abc",
		"Bearer not-a-token",
	} {
		w := doJSON(t, rs, "GET", "/tokens", header, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestTokensRoundTrip(t *testing.T) {
	rs := newTestServer(t)
	bearer := registerAndLogin(t, rs, "alice", "pw")

	// Свежий аккаунт — полностью нулевая структура 3x4
	w := doJSON(t, rs, "GET", "/tokens", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"regular":[0,0,0,0],"weapon":[0,0,0,0],"battlepass":[0,0,0,0]}`, w.Body.String())

	w = doJSON(t, rs, "PUT", "/tokens", bearer, map[string][]int{
		"regular":    {1, 2, 3, 4},
		"weapon":     {0, 0, 0, 5},
		"battlepass": {-7, 0, 0, 0}, // отрицательное значение прижмётся к нулю
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, rs, "GET", "/tokens", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"regular":[1,2,3,4],"weapon":[0,0,0,5],"battlepass":[0,0,0,0]}`, w.Body.String())
}

func TestPutTokensLenientCoercion(t *testing.T) {
	rs := newTestServer(t)
	bearer := registerAndLogin(t, rs, "alice", "pw")

	// Числовые строки приводятся к числам, мусор — к нулю, запрос не падает
	w := doJSON(t, rs, "PUT", "/tokens", bearer, map[string][]interface{}{
		"regular": {"3", 0, 0, 0},
		"weapon":  {"abc", nil, true, "4"},
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, rs, "GET", "/tokens", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"regular":[3,0,0,0],"weapon":[0,0,0,4],"battlepass":[0,0,0,0]}`, w.Body.String())
}

func TestTotalsEndpoint(t *testing.T) {
	rs := newTestServer(t)
	bearer := registerAndLogin(t, rs, "alice", "pw")

	w := doJSON(t, rs, "PUT", "/tokens", bearer, map[string][]int{
		"regular": {1, 0, 0, 0},
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, rs, "GET", "/totals", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"regular":    {"minutes":15,"hours":0.25},
		"weapon":     {"minutes":0,"hours":0},
		"battlepass": {"minutes":0,"hours":0},
		"grand":      {"minutes":15,"hours":0.25}
	}`, w.Body.String())
}

func TestProfileEndpoints(t *testing.T) {
	rs := newTestServer(t)
	bearer := registerAndLogin(t, rs, "alice", "pw")

	w := doJSON(t, rs, "GET", "/profile", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cod_username":"","prestige":"","level":1}`, w.Body.String())

	w = doJSON(t, rs, "PUT", "/profile", bearer, map[string]interface{}{
		"cod_username": "AliceTV",
		"prestige":     "Prestige 5",
		"level":        2000, // прижмётся к 1000
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, rs, "GET", "/profile", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cod_username":"AliceTV","prestige":"Prestige 5","level":1000}`, w.Body.String())
}

func TestChangePasswordEndpoint(t *testing.T) {
	rs := newTestServer(t)
	bearer := registerAndLogin(t, rs, "alice", "oldpw")

	// Неверный старый пароль — 401
	w := doJSON(t, rs, "POST", "/password", bearer, map[string]string{
		"old_password": "wrong", "new_password": "newpw",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, rs, "POST", "/password", bearer, map[string]string{
		"old_password": "oldpw", "new_password": "newpw",
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	// Старый пароль больше не работает
	w = doJSON(t, rs, "POST", "/login", "", map[string]string{
		"username": "alice", "password": "oldpw",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, rs, "POST", "/login", "", map[string]string{
		"username": "alice", "password": "newpw",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	rs := newTestServer(t)

	w := doJSON(t, rs, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStatsRequiresAuth(t *testing.T) {
	rs := newTestServer(t)

	w := doJSON(t, rs, "GET", "/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	bearer := registerAndLogin(t, rs, "alice", "pw")
	w = doJSON(t, rs, "GET", "/stats", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Contains(t, stats, "uptime")
	assert.Contains(t, stats, "memory_mb")
	assert.Contains(t, stats, "cpu_percent")
}
