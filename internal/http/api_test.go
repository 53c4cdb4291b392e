package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bioauth-server/internal/auth"
	"bioauth-server/internal/repository"
	"bioauth-server/internal/repository/sqlite"
	"bioauth-server/internal/service"
)

type testServer struct {
	router *gin.Engine
	tokens *auth.TokenService
	repo   repository.UserRepository
}

func setupTestServer(t *testing.T, protectUserList bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))

	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokens := auth.NewTokenService("test-secret", time.Hour)
	users := service.NewUserService(repo, hasher, tokens)

	router := gin.New()
	NewHandler(users, tokens, protectUserList).RegisterRoutes(router)

	return &testServer{router: router, tokens: tokens, repo: repo}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeAuthResponse(t *testing.T, w *httptest.ResponseRecorder) AuthResponse {
	t.Helper()
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRegisterAndLoginFlow(t *testing.T) {
	ts := setupTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeAuthResponse(t, w)
	assert.Equal(t, "user registered successfully", resp.Message)
	assert.Empty(t, resp.Token, "registration must not log the user in")

	w = ts.do(t, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/login",
		gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeAuthResponse(t, w)
	assert.NotEmpty(t, resp.Token)

	w = ts.do(t, http.MethodPost, "/api/auth/login",
		gin.H{"email": "a@x.com", "password": "wrong00"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_InputValidation(t *testing.T) {
	ts := setupTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/auth/register",
		gin.H{"email": "not-an-email", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthGuard(t *testing.T) {
	ts := setupTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/login",
		gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := decodeAuthResponse(t, w).Token

	body := gin.H{"biometricKey": "bio-1"}

	tests := []struct {
		name       string
		authHeader string
		wantCode   int
		wantError  string
	}{
		{
			name:      "no header",
			wantCode:  http.StatusUnauthorized,
			wantError: "missing or malformed token",
		},
		{
			name:       "not bearer",
			authHeader: "Basic abc123",
			wantCode:   http.StatusUnauthorized,
			wantError:  "missing or malformed token",
		},
		{
			name: "wrong signature",
			authHeader: "Bearer " + func() string {
				forged, err := auth.NewTokenService("other-secret", time.Hour).Issue("u1")
				require.NoError(t, err)
				return forged
			}(),
			wantCode:  http.StatusUnauthorized,
			wantError: "invalid or expired token",
		},
		{
			name: "expired",
			authHeader: "Bearer " + func() string {
				expired, err := auth.NewTokenService("test-secret", -time.Minute).Issue("u1")
				require.NoError(t, err)
				return expired
			}(),
			wantCode:  http.StatusUnauthorized,
			wantError: "invalid or expired token",
		},
		{
			name:       "valid token",
			authHeader: "Bearer " + token,
			wantCode:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.authHeader != "" {
				headers["Authorization"] = tt.authHeader
			}
			w := ts.do(t, http.MethodPut, "/api/users/biometric-key", body, headers)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantError != "" {
				var resp map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantError, resp["error"])
			}
		})
	}
}

func TestBiometricLoginFlow(t *testing.T) {
	ts := setupTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/auth/biometric-login",
		gin.H{"biometricKey": "bio-1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(t, http.MethodPost, "/api/auth/login",
		gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := decodeAuthResponse(t, w).Token

	w = ts.do(t, http.MethodPut, "/api/users/biometric-key",
		gin.H{"biometricKey": "bio-1"},
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/biometric-login",
		gin.H{"biometricKey": "bio-1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeAuthResponse(t, w)

	// token must resolve to the registered user
	userID, err := ts.tokens.Verify(resp.Token)
	require.NoError(t, err)
	user, err := ts.repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestBiometricKeyConflict(t *testing.T) {
	ts := setupTestServer(t, false)

	login := func(email, password string) string {
		w := ts.do(t, http.MethodPost, "/api/auth/register",
			gin.H{"email": email, "password": password}, nil)
		require.Equal(t, http.StatusCreated, w.Code)
		w = ts.do(t, http.MethodPost, "/api/auth/login",
			gin.H{"email": email, "password": password}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		return decodeAuthResponse(t, w).Token
	}

	aliceToken := login("a@x.com", "secret1")
	bobToken := login("b@x.com", "secret2")

	w := ts.do(t, http.MethodPut, "/api/users/biometric-key",
		gin.H{"biometricKey": "bio-1"},
		map[string]string{"Authorization": "Bearer " + aliceToken})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPut, "/api/users/biometric-key",
		gin.H{"biometricKey": "bio-1"},
		map[string]string{"Authorization": "Bearer " + bobToken})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListUsers(t *testing.T) {
	ts := setupTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodGet, "/api/users", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var users []UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "a@x.com", users[0].Email)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "biometric")
}

func TestListUsers_Protected(t *testing.T) {
	ts := setupTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(t, http.MethodPost, "/api/auth/login",
		gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := decodeAuthResponse(t, w).Token

	w = ts.do(t, http.MethodGet, "/api/users", nil,
		map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
}
