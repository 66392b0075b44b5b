package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const credentials = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`

func TestRedirectURL(t *testing.T) {
	log := zerolog.Nop()
	tests := map[string]string{
		"":                               "http://localhost:6789/oauth2callback",
		"urn:ietf:wg:oauth:2.0:oob":      "http://localhost:6789/oauth2callback",
		"http://localhost":               "http://localhost:6789",
		"http://127.0.0.1:8080/callback": "http://127.0.0.1:6789/callback",
		"https://example.com/callback":   "https://example.com/callback",
	}
	for in, want := range tests {
		assert.Equal(t, want, redirectURL(in, log), in)
	}
}

func TestGetConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := GetConfig(dir, Scopes, zerolog.Nop())
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ClientSecretsFile), []byte(credentials), 0o600))
	config, err := GetConfig(dir, Scopes, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "id.apps.googleusercontent.com", config.ClientID)
	assert.Equal(t, "http://localhost:6789", config.RedirectURL)
	assert.Equal(t, Scopes, config.Scopes)
}

func TestClientWithoutTokenFailsFast(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ClientSecretsFile), []byte(credentials), 0o600))

	_, err := Client(context.Background(), dir, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, HasToken(dir))
}

func TestTokenCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ClientSecretsFile), []byte(credentials), 0o600))
	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)}
	path := filepath.Join(dir, TokenFile)
	require.NoError(t, saveToken(path, tok))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.True(t, HasToken(dir))

	loaded, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)

	client, err := Client(context.Background(), dir, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

type staticSource struct{ tok *oauth2.Token }

func (s staticSource) Token() (*oauth2.Token, error) { return s.tok, nil }

func TestSavingSourcePersistsNewTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), TokenFile)
	old := &oauth2.Token{AccessToken: "old"}
	fresh := &oauth2.Token{AccessToken: "new", RefreshToken: "r"}

	s := &savingSource{base: staticSource{fresh}, path: path, last: old, log: zerolog.Nop()}
	got, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)

	saved, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", saved.AccessToken)

	require.NoError(t, os.Remove(path))
	_, err = s.Token()
	require.NoError(t, err)
	assert.NoFileExists(t, path)
}
