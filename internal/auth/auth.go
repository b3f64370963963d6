// Package auth handles the OAuth bootstrap: loading client credentials,
// running the installed-app flow on first use, and persisting the session
// token so later runs are non-interactive.
package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

// TokenStore saves and loads OAuth tokens.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
}

// OAuthConfig builds the oauth2 config from a Google client credentials file
// (the JSON downloaded from Google Cloud Console, "installed" or "web").
func OAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return cfg, nil
}

// autoSaveTokenSource wraps an oauth2.TokenSource and writes refreshed tokens
// back to the store, so a long-lived install keeps working without
// re-authorizing.
type autoSaveTokenSource struct {
	source oauth2.TokenSource
	store  TokenStore
	last   *oauth2.Token
}

func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}
	if a.last == nil || a.last.AccessToken != token.AccessToken {
		if err := a.store.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.last = token
	}
	return token, nil
}

// Client returns an authenticated HTTP client, running the interactive OAuth
// flow if no usable token is stored yet.
func Client(ctx context.Context, oauthConfig *oauth2.Config, store TokenStore) (*http.Client, error) {
	token, err := store.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if token == nil {
		token, err = Login(ctx, oauthConfig, store)
		if err != nil {
			return nil, err
		}
	}

	source := &autoSaveTokenSource{
		source: oauth2.ReuseTokenSource(token, oauthConfig.TokenSource(ctx, token)),
		store:  store,
		last:   token,
	}
	return oauth2.NewClient(ctx, source), nil
}

// Login runs the interactive installed-app flow: a local HTTP server receives
// the redirect, the resulting code is exchanged for a token, and the token is
// persisted to the store.
func Login(ctx context.Context, oauthConfig *oauth2.Config, store TokenStore) (*oauth2.Token, error) {
	redirectURL, codeChan, errChan, err := startLocalServer()
	if err != nil {
		return nil, err
	}
	oauthConfig.RedirectURL = redirectURL

	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Printf("Listening on %s for the OAuth callback\n", redirectURL)
	fmt.Println("Visit the following URL to authorize calpush:")
	fmt.Println(authURL)
	fmt.Println("Waiting for authorization...")

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		return nil, fmt.Errorf("authorization failed: %w", err)
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("authorization timed out after 5 minutes")
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := store.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	fmt.Println("Authorization successful")
	return token, nil
}

// startLocalServer listens for the OAuth redirect on port 8080, falling back
// to a random port when 8080 is taken. The caller gets the redirect URL plus
// channels for the authorization code and errors.
func startLocalServer() (string, <-chan string, <-chan error, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:8080")
	if err != nil {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		switch {
		case code != "":
			fmt.Fprint(w, "<html><body><h1>Authorization successful</h1><p>You can close this window.</p></body></html>")
			codeChan <- code
		case r.URL.Query().Get("error") != "":
			errMsg := r.URL.Query().Get("error")
			fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", errMsg)
			errChan <- fmt.Errorf("authorization error: %s", errMsg)
		default:
			fmt.Fprint(w, "<html><body><h1>No authorization code received</h1></body></html>")
			errChan <- fmt.Errorf("no authorization code received")
		}
		go func() {
			time.Sleep(1 * time.Second)
			server.Shutdown(context.Background())
		}()
	})
	server.Handler = mux

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("callback server error: %w", err)
		}
	}()

	return redirectURL, codeChan, errChan, nil
}
