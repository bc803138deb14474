package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/habedi/gotok/auth"
	"github.com/habedi/gotok/pkg/clierr"
	"github.com/habedi/gotok/pkg/hasher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testIDP answers token, account and revoke requests and records the last form per path.
type testIDP struct {
	*httptest.Server
	mu    sync.Mutex
	forms map[string]map[string]string
}

func newTestIDP(t *testing.T) *testIDP {
	t.Helper()
	idp := &testIDP{forms: make(map[string]map[string]string)}
	idp.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form := map[string]string{}
		for k := range r.Form {
			form[k] = r.Form.Get(k)
		}
		idp.mu.Lock()
		idp.forms[r.URL.Path] = form
		idp.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","expires_in":3600,"token_type":"Bearer"}`))
		case "/account":
			if r.Header.Get("Authorization") != "Bearer access-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
				return
			}
			_, _ = w.Write([]byte(`{"sub":"42","email":"me@example.com"}`))
		case "/revoke":
			_, _ = w.Write([]byte(`{"refresh_token":"refresh-2"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(idp.Close)
	return idp
}

func (idp *testIDP) lastForm(path string) map[string]string {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return idp.forms[path]
}

func (idp *testIDP) args(storePath string, extra ...string) []string {
	return append(extra,
		"--store", "file",
		"--store-path", storePath,
		"--audience", "api.example.com",
		"--token-url", idp.URL+"/token",
		"--account-url", idp.URL+"/account",
		"--revoke-url", idp.URL+"/revoke",
		"--client-id", "gotok-cli",
		"--retry-delay", "0s",
	)
}

func TestCLI_TokenLifecycle(t *testing.T) {
	idp := newTestIDP(t)
	storePath := filepath.Join(t.TempDir(), "tokens.json")

	out, err := runCLI(t, "", idp.args(storePath, "signin", "--code", "code-1")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, `Tokens stored under "me.api.example.com"`)
	assert.Equal(t, "code-1", idp.lastForm("/token")["code"])
	assert.Equal(t, "gotok-cli", idp.lastForm("/token")["client_id"])

	out, err = runCLI(t, "", idp.args(storePath, "token")...)
	require.NoError(t, err, out)
	assert.Equal(t, "access-1\n", out)

	out, err = runCLI(t, "", idp.args(storePath, "token", "--json")...)
	require.NoError(t, err, out)
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &record))
	assert.Equal(t, "refresh-1", record["refresh_token"])

	out, err = runCLI(t, "", idp.args(storePath, "list")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "me.api.example.com")
	assert.Contains(t, out, "valid")

	out, err = runCLI(t, "", idp.args(storePath, "account")...)
	require.NoError(t, err, out)
	assert.JSONEq(t, `{"sub":"42","email":"me@example.com"}`, out)

	out, err = runCLI(t, "", idp.args(storePath, "revoke")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "new one")
	assert.Equal(t, "refresh-1", idp.lastForm("/revoke")["token"])

	out, err = runCLI(t, "", idp.args(storePath, "remove")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Removed tokens")

	_, err = runCLI(t, "", idp.args(storePath, "token")...)
	assert.ErrorIs(t, err, auth.ErrNotStored)
	assert.Equal(t, clierr.NotFound, toCLIError(err).Type)
}

func TestCLI_SigninReadsCredentialFromStdin(t *testing.T) {
	idp := newTestIDP(t)
	storePath := filepath.Join(t.TempDir(), "tokens.json")

	out, err := runCLI(t, "piped-code\n", idp.args(storePath, "signin", "--key", "work")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, `Tokens stored under "work"`)
	assert.Equal(t, "piped-code", idp.lastForm("/token")["code"])

	out, err = runCLI(t, "", idp.args(storePath, "token", "--key", "work")...)
	require.NoError(t, err, out)
	assert.Equal(t, "access-1\n", out)
}

func TestCLI_SigninWithEmptyCredential(t *testing.T) {
	idp := newTestIDP(t)
	storePath := filepath.Join(t.TempDir(), "tokens.json")

	_, err := runCLI(t, "", idp.args(storePath, "signin")...)
	assert.ErrorIs(t, err, auth.ErrInvalidArgument)
}

func TestCLI_Signout(t *testing.T) {
	idp := newTestIDP(t)
	storePath := filepath.Join(t.TempDir(), "tokens.json")

	_, err := runCLI(t, "", idp.args(storePath, "signin", "--code", "code-1")...)
	require.NoError(t, err)

	out, err := runCLI(t, "", idp.args(storePath, "signout")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Signed out of me.api.example.com")

	out, err = runCLI(t, "", idp.args(storePath, "list")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "No tokens stored.")
}

func TestCLI_RequestModeLabel(t *testing.T) {
	idp := newTestIDP(t)
	storePath := filepath.Join(t.TempDir(), "tokens.json")

	_, err := runCLI(t, "", idp.args(storePath, "signin", "--code", "c", "--label", "work", "--request-mode", "label")...)
	require.NoError(t, err)
	assert.Equal(t, "work", idp.lastForm("/token")["account"])
}

func TestCLI_MissingEndpointsIsValidationError(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "tokens.json")

	_, err := runCLI(t, "", "token", "--store", "file", "--store-path", storePath, "--audience", "api.example.com")
	require.Error(t, err)
	assert.Equal(t, clierr.Validation, toCLIError(err).Type)
}

func TestCLI_InvalidStoreIsValidationError(t *testing.T) {
	_, err := runCLI(t, "", "list", "--store", "redis")
	require.Error(t, err)
	assert.Equal(t, clierr.Validation, clierr.TypeOf(err))
}

func TestCLI_ListSQLite(t *testing.T) {
	idp := newTestIDP(t)
	dbPath := filepath.Join(t.TempDir(), "tokens.db")
	args := func(extra ...string) []string {
		a := idp.args("", extra...)
		return append(a, "--store", "sqlite", "--store-path", dbPath)
	}

	_, err := runCLI(t, "", args("signin", "--code", "c")...)
	require.NoError(t, err)

	out, err := runCLI(t, "", args("list")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "me.api.example.com")
	assert.Contains(t, out, "yes")
}

func TestCLI_TokenFingerprint(t *testing.T) {
	idp := newTestIDP(t)
	storePath := filepath.Join(t.TempDir(), "tokens.json")

	_, err := runCLI(t, "", idp.args(storePath, "signin", "--code", "c")...)
	require.NoError(t, err)

	out, err := runCLI(t, "", idp.args(storePath, "token", "--fingerprint", "--algo", "md5")...)
	require.NoError(t, err, out)
	want, err := hasher.GenerateHash("access-1", "md5")
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)
	assert.NotContains(t, out, "access-1")

	_, err = runCLI(t, "", idp.args(storePath, "token", "--fingerprint", "--algo", "crc32")...)
	assert.ErrorIs(t, err, auth.ErrInvalidArgument)
}
