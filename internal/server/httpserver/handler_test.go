package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/authsession/internal/client/api"
	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/refreshtokens"
	"github.com/dmitrijs2005/authsession/internal/server/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	us := users.NewService(users.NewMemoryRepository(), refreshtokens.NewMemoryRepository(), cfg)
	srv := httptest.NewServer(NewHTTPServer("127.0.0.1:0", logging.NewNop(), us).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, api.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env api.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func authResult(t *testing.T, env api.Envelope) api.AuthResult {
	t.Helper()
	var res api.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res
}

func register(t *testing.T, srv *httptest.Server) api.AuthResult {
	t.Helper()
	code, env := call(t, srv, http.MethodPost, common.RegisterPath, "",
		api.RegisterInput{Email: "ann@example.com", Password: "secret1", Name: "Ann"})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, env.Success)
	return authResult(t, env)
}

func TestRegister(t *testing.T) {
	srv := newTestServer(t)

	res := register(t, srv)
	assert.Equal(t, "ann@example.com", res.User.Email)
	assert.NotEmpty(t, res.Token)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(900), res.ExpiresIn)

	code, env := call(t, srv, http.MethodPost, common.RegisterPath, "",
		api.RegisterInput{Email: "ann@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)

	code, env = call(t, srv, http.MethodPost, common.RegisterPath, "",
		api.RegisterInput{Email: "nope", Password: "1"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "email")
	assert.Contains(t, env.Errors, "password")
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv)

	code, env := call(t, srv, http.MethodPost, common.LoginPath, "",
		api.Credentials{Email: "ann@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, authResult(t, env).Token)

	code, env = call(t, srv, http.MethodPost, common.LoginPath, "",
		api.Credentials{Email: "ann@example.com", Password: "bad"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid credentials", env.Message)
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)
	res := register(t, srv)

	code, env := call(t, srv, http.MethodGet, common.MePath, res.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var u api.User
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, res.User.ID, u.ID)

	code, _ = call(t, srv, http.MethodGet, common.MePath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, srv, http.MethodGet, common.MePath, "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRefreshAndLogout(t *testing.T) {
	srv := newTestServer(t)
	res := register(t, srv)

	code, env := call(t, srv, http.MethodPost, common.RefreshPath, "", api.RefreshRequest{RefreshToken: res.RefreshToken})
	require.Equal(t, http.StatusOK, code)
	rotated := authResult(t, env)
	assert.NotEqual(t, res.RefreshToken, rotated.RefreshToken)

	code, _ = call(t, srv, http.MethodPost, common.RefreshPath, "", api.RefreshRequest{})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, srv, http.MethodPost, common.LogoutPath, "", api.RefreshRequest{RefreshToken: rotated.RefreshToken})
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, srv, http.MethodPost, common.RefreshPath, "", api.RefreshRequest{RefreshToken: rotated.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid refresh token", env.Message)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	code, env := call(t, srv, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, buf.String(), "authsession_server_requests_total")
}
