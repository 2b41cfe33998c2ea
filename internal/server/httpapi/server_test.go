package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cloudsentiment/internal/logging"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/auth"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/models"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/objectstore"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type nopNotifier struct {
	mu       sync.Mutex
	goodbyes int
}

func (n *nopNotifier) SendVerification(context.Context, string, string) error { return nil }
func (n *nopNotifier) SendGoodbye(context.Context, string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.goodbyes++
	return nil
}

type harness struct {
	srv      *Server
	repo     *accounts.MemoryRepository
	objects  *objectstore.MemoryStore
	notifier *nopNotifier
	pingErr  error
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	hasher, err := auth.NewPasswordHasher(auth.HashAlgorithmBcrypt, bcrypt.MinCost, 1, 64)
	require.NoError(t, err)

	h := &harness{
		repo:     accounts.NewMemoryRepository(),
		objects:  objectstore.NewMemoryStore(),
		notifier: &nopNotifier{},
	}
	svc := services.NewAccountService(services.Dependencies{
		Accounts:    h.repo,
		Revocations: revocations.NewMemoryRepository(),
		Hasher:      hasher,
		Tokens:      auth.NewTokenCodec([]byte("http-secret"), 30*time.Minute, 24*time.Hour),
		Objects:     h.objects,
		Notifier:    h.notifier,
		Logger:      logging.Nop(),
	})
	h.srv = NewServer(":0", svc, func(context.Context) error { return h.pingErr }, logging.Nop())
	return h
}

func (h *harness) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := h.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func jsonReq(method, target string, v any, token string) *http.Request {
	var buf bytes.Buffer
	if v != nil {
		_ = json.NewEncoder(&buf).Encode(v)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func loginReq(identifier, password string) *http.Request {
	form := url.Values{"username": {identifier}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// registerAndLogin runs the happy path and returns an access token.
func (h *harness) registerAndLogin(t *testing.T, username, email, password string) string {
	t.Helper()

	status, body := h.do(t, jsonReq(http.MethodPost, "/auth/register",
		map[string]string{"username": username, "email": email, "password": password}, ""))
	require.Equal(t, http.StatusCreated, status, body)

	vt := body["verification_token"].(string)
	status, body = h.do(t, httptest.NewRequest(http.MethodGet, "/auth/verify?token="+url.QueryEscape(vt), nil))
	require.Equal(t, http.StatusOK, status, body)

	status, body = h.do(t, loginReq(username, password))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "bearer", body["token_type"])
	return body["access_token"].(string)
}

func TestRegister_DuplicateIs400(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, jsonReq(http.MethodPost, "/auth/register",
		map[string]string{"username": "alice", "email": "alice@x.com", "password": "pw1"}, ""))
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, body["verification_token"])
	assert.NotEmpty(t, body["message"])

	status, body = h.do(t, jsonReq(http.MethodPost, "/auth/register",
		map[string]string{"username": "alice", "email": "other@x.com", "password": "pw1"}, ""))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["detail"])
}

func TestRegister_BadInput(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	status, _ := h.do(t, req)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(t, jsonReq(http.MethodPost, "/auth/register",
		map[string]string{"username": "alice", "email": "bad", "password": "pw1"}, ""))
	assert.Equal(t, http.StatusBadRequest, status)
}

func formReq(method, target string, form url.Values, token string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestFormBodies_StoredValuesSurviveLaterRequests(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, formReq(http.MethodPost, "/auth/register",
		url.Values{"username": {"alice"}, "email": {"alice@x.com"}, "password": {"pw1"}}, ""))
	require.Equal(t, http.StatusCreated, status, body)

	// reuse the request buffers with different content
	for i := 0; i < 50; i++ {
		h.do(t, formReq(http.MethodPost, "/auth/register",
			url.Values{"username": {"zzzzz"}, "email": {"q"}, "password": {"x"}}, ""))
	}

	for _, id := range []string{"alice", "alice@x.com"} {
		acc, err := h.repo.FindByIdentifier(context.Background(), id)
		require.NoError(t, err, id)
		assert.Equal(t, "alice", acc.Username)
		assert.Equal(t, "alice@x.com", acc.Email)
	}

	vt := body["verification_token"].(string)
	status, _ = h.do(t, httptest.NewRequest(http.MethodGet, "/auth/verify?token="+url.QueryEscape(vt), nil))
	require.Equal(t, http.StatusOK, status)
	status, body = h.do(t, loginReq("alice", "pw1"))
	require.Equal(t, http.StatusOK, status, body)
	token := body["access_token"].(string)

	status, body = h.do(t, formReq(http.MethodPut, "/auth/profile",
		url.Values{"name": {"Alice A"}, "email": {"alice2@x.com"}}, token))
	require.Equal(t, http.StatusOK, status, body)

	for i := 0; i < 50; i++ {
		h.do(t, formReq(http.MethodPut, "/auth/profile", url.Values{"name": {"yyyyyyy"}}, "bogus"))
	}

	acc, err := h.repo.FindByIdentifier(context.Background(), "alice2@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice A", acc.Name)
	assert.Equal(t, "alice2@x.com", acc.Email)
}

func TestRegister_OverlongBcryptPasswordIs400(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, jsonReq(http.MethodPost, "/auth/register",
		map[string]string{"username": "alice", "email": "alice@x.com", "password": strings.Repeat("p", 100)}, ""))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEqual(t, "Internal server error", body["detail"])
	assert.Zero(t, h.repo.Len())
}

func TestVerify_Failures(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, httptest.NewRequest(http.MethodGet, "/auth/verify", nil))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(t, httptest.NewRequest(http.MethodPost, "/auth/verify?token=garbage", nil))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestVerifyManualAndResend(t *testing.T) {
	h := newHarness(t)

	_, body := h.do(t, jsonReq(http.MethodPost, "/auth/register",
		map[string]string{"username": "alice", "email": "alice@x.com", "password": "pw1"}, ""))
	vt := body["verification_token"].(string)

	status, body := h.do(t, jsonReq(http.MethodPost, "/auth/verify/resend", map[string]string{"email": "alice@x.com"}, ""))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Verification email sent", body["message"])

	status, body = h.do(t, httptest.NewRequest(http.MethodPost, "/auth/verify/manual?token="+url.QueryEscape(vt), nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice@x.com", body["email"])

	status, body = h.do(t, jsonReq(http.MethodPost, "/auth/verify/resend", map[string]string{"email": "alice@x.com"}, ""))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Email already verified", body["message"])

	status, _ = h.do(t, jsonReq(http.MethodPost, "/auth/verify/resend", map[string]string{"email": "ghost@x.com"}, ""))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLogin_StatusCodes(t *testing.T) {
	h := newHarness(t)

	h.do(t, jsonReq(http.MethodPost, "/auth/register",
		map[string]string{"username": "alice", "email": "alice@x.com", "password": "pw1"}, ""))

	status, body := h.do(t, loginReq("alice", "pw1"))
	assert.Equal(t, http.StatusForbidden, status, body)

	status, _ = h.do(t, loginReq("alice", "wrong"))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(t, loginReq("nobody", "pw1"))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestVerifyToken(t *testing.T) {
	h := newHarness(t)
	tok := h.registerAndLogin(t, "alice", "alice@x.com", "pw1")

	status, body := h.do(t, jsonReq(http.MethodGet, "/auth/verify-token", nil, tok))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "alice", body["subject"])

	status, _ = h.do(t, jsonReq(http.MethodGet, "/auth/verify-token", nil, "garbage"))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.do(t, httptest.NewRequest(http.MethodGet, "/auth/verify-token", nil))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProfile(t *testing.T) {
	h := newHarness(t)
	tok := h.registerAndLogin(t, "alice", "alice@x.com", "pw1")
	h.registerAndLogin(t, "bob", "bob@x.com", "pw2")

	status, _ := h.do(t, jsonReq(http.MethodPut, "/auth/profile", map[string]string{"name": "Alice"}, tok))
	assert.Equal(t, http.StatusOK, status)

	status, body := h.do(t, jsonReq(http.MethodPut, "/auth/profile", map[string]string{"email": "bob@x.com"}, tok))
	assert.Equal(t, http.StatusBadRequest, status, body)

	got, err := h.repo.FindByIdentifier(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "alice@x.com", got.Email)

	status, _ = h.do(t, jsonReq(http.MethodPut, "/auth/profile", map[string]string{"name": "x"}, ""))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLogout_RevokesBearer(t *testing.T) {
	h := newHarness(t)
	tok := h.registerAndLogin(t, "alice", "alice@x.com", "pw1")

	status, _ := h.do(t, jsonReq(http.MethodPost, "/auth/logout", nil, tok))
	require.Equal(t, http.StatusOK, status)

	status, _ = h.do(t, jsonReq(http.MethodPost, "/auth/logout", nil, tok))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.do(t, jsonReq(http.MethodGet, "/auth/verify-token", nil, tok))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestDeleteAccount(t *testing.T) {
	h := newHarness(t)
	tok := h.registerAndLogin(t, "alice", "alice@x.com", "pw1")
	h.objects.Put("alice/data.csv", []byte("x"))

	status, body := h.do(t, jsonReq(http.MethodDelete, "/auth/account", nil, tok))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, models.StatusSuccess, body["status"])
	assert.Equal(t, float64(1), body["deleted_objects"])
	assert.Len(t, body["steps"], 3)
	assert.Empty(t, h.objects.List("alice/"))
	assert.Equal(t, 1, h.notifier.goodbyes)

	status, _ = h.do(t, jsonReq(http.MethodDelete, "/auth/account", nil, tok))
	assert.Equal(t, http.StatusUnauthorized, status, "token of a deleted account no longer authenticates")
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	h.pingErr = errors.New("db down")
	status, _ = h.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, body["detail"])
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	h := newHarness(t)
	h.srv.address = addr

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
