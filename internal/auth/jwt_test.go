package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("super-secret", time.Hour)
	tok, expiresAt, err := issuer.Issue("user-123")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	id, err := issuer.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id.UserID)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, err := issuer.Issue("u1")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := NewTokenIssuer("right-secret", time.Hour).Issue("u2")
	require.NoError(t, err)

	_, err = NewTokenIssuer("wrong-secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	_, err := NewTokenIssuer("k", time.Hour).Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsTokenWithoutExpiry(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "u3"}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewTokenIssuer("k", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := &Claims{
		UserID:           "u4",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewTokenIssuer("k", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsMissingUserID(t *testing.T) {
	t.Parallel()

	tok, _, err := NewTokenIssuer("k", time.Hour).Issue("")
	require.NoError(t, err)

	_, err = NewTokenIssuer("k", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_Header(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("k", time.Hour)
	tok, _, err := issuer.Issue("u5")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"bearer", "Bearer " + tok, nil},
		{"lowercase scheme", "bearer " + tok, nil},
		{"padded", "  Bearer   " + tok + "  ", nil},
		{"absent", "", ErrMissingToken},
		{"scheme only", "Bearer", ErrMissingToken},
		{"basic", "Basic dXNlcjpwYXNz", ErrMissingToken},
		{"garbage token", "Bearer abc", ErrInvalidToken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			id, err := issuer.Authenticate(r)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u5", id.UserID)
		})
	}
}

func TestGate(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("k", time.Hour)
	tok, _, err := issuer.Issue("u6")
	require.NoError(t, err)

	var seen Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	})
	h := Gate(issuer)(next)

	r := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u6", seen.UserID)

	r = httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing_token")

	r = httptest.NewRequest(http.MethodGet, "/tasks", nil)
	r.Header.Set("Authorization", "Bearer "+strings.Repeat("x", 20))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_token")
}

func TestIdentityFrom_Empty(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := IdentityFrom(r.Context())
	assert.False(t, ok)
}

func TestPasswordHasher(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(4)
	hash, err := h.Hash("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, h.Compare(hash, "hunter2"))
	assert.False(t, h.Compare(hash, "hunter3"))

	_, err = h.Hash(strings.Repeat("p", 73))
	assert.ErrorIs(t, err, ErrPasswordRejected)
}

func TestQueryFallback(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("secret", time.Hour)
	tok, _, err := issuer.Issue("ws-user")
	require.NoError(t, err)
	a := QueryFallback{Issuer: issuer, Param: "token"}

	r := httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil)
	id, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "ws-user", id.UserID)

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	_, err = a.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r = httptest.NewRequest(http.MethodGet, "/ws?token=garbage", nil)
	_, err = a.Authenticate(r)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A header, when present, takes precedence over the query string.
	r = httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil)
	r.Header.Set("Authorization", "Bearer garbage")
	_, err = a.Authenticate(r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGate_RejectionBodyIsFixed(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("k", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := issuer.Issue("u7")
	require.NoError(t, err)
	issuer.now = time.Now

	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	h := Gate(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	tests := []struct {
		name    string
		header  string
		code    string
		message string
	}{
		{"missing", "", "missing_token", "Authentication required"},
		{"expired", "Bearer " + expired, "invalid_token", "Invalid or expired token"},
		{"malformed", "Bearer abc.def.ghi", "invalid_token", "Invalid or expired token"},
	}
	for _, tt := range tests {
		logs.Reset()
		r := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		r = r.WithContext(logger.WithContext(r.Context()))
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code, tt.name)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), tt.name)
		assert.Equal(t, map[string]string{"error": tt.code, "message": tt.message}, body, tt.name)
		assert.NotContains(t, w.Body.String(), "token has invalid claims", tt.name)

		// The parser detail stays in the debug log.
		assert.Contains(t, logs.String(), "Rejected unauthenticated request", tt.name)
	}
}

type failingWriter struct {
	header http.Header
	status int
}

func (f *failingWriter) Header() http.Header       { return f.header }
func (f *failingWriter) WriteHeader(status int)    { f.status = status }
func (f *failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestGate_LogsEncodeFailure(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	h := Gate(NewTokenIssuer("k", time.Hour))(http.NotFoundHandler())

	r := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	r = r.WithContext(logger.WithContext(r.Context()))
	w := &failingWriter{header: http.Header{}}
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.status)
	assert.Contains(t, logs.String(), "Failed to encode auth rejection")
	assert.Contains(t, logs.String(), "connection reset")
}
