package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestFileTokenStore_SaveLoad(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	store := NewFileTokenStore(tokenPath)

	token := &oauth2.Token{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		Expiry:       time.Now().Add(1 * time.Hour),
		TokenType:    "Bearer",
	}

	if err := store.SaveToken(token); err != nil {
		t.Fatalf("SaveToken() returned an error: %v", err)
	}

	loaded, err := store.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken() returned an error: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadToken() returned nil token")
	}

	if loaded.AccessToken != token.AccessToken {
		t.Errorf("Expected AccessToken to be '%s', got '%s'", token.AccessToken, loaded.AccessToken)
	}
	if loaded.RefreshToken != token.RefreshToken {
		t.Errorf("Expected RefreshToken to be '%s', got '%s'", token.RefreshToken, loaded.RefreshToken)
	}
	if !loaded.Expiry.Equal(token.Expiry) {
		t.Errorf("Expected Expiry to be %v, got %v", token.Expiry, loaded.Expiry)
	}
}

func TestFileTokenStore_SavePermissions(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	store := NewFileTokenStore(tokenPath)

	if err := store.SaveToken(&oauth2.Token{AccessToken: "secret"}); err != nil {
		t.Fatalf("SaveToken() returned an error: %v", err)
	}

	info, err := os.Stat(tokenPath)
	if err != nil {
		t.Fatalf("Stat() returned an error: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestFileTokenStore_LoadMissing(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "nonexistent.json"))

	token, err := store.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken() should not return an error for a missing file, got: %v", err)
	}
	if token != nil {
		t.Errorf("LoadToken() should return nil for a missing file, got: %v", token)
	}
}

func TestFileTokenStore_LoadCorrupt(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(tokenPath, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	store := NewFileTokenStore(tokenPath)
	if _, err := store.LoadToken(); err == nil {
		t.Error("Expected an error for a corrupt token file")
	}
}
