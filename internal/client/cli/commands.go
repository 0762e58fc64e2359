package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/httpclient"
)

func (a *App) Me(ctx context.Context) error {
	u, err := a.session.FetchCurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "id:    %s\nemail: %s\nname:  %s\nrole:  %s\n", u.ID, u.Email, u.Name, u.Role)
	return nil
}

// Status prints the in-memory session and the stored token's expiry.
func (a *App) Status(ctx context.Context) error {
	s := a.session.Session()
	if s.User != nil {
		fmt.Fprintf(a.out, "user:          %s\n", s.User.Email)
	}
	fmt.Fprintf(a.out, "authenticated: %t\n", s.IsAuthenticated)
	if !s.LastActivity.IsZero() {
		fmt.Fprintf(a.out, "last activity: %s\n", s.LastActivity.Format(time.RFC3339))
	}
	if info := a.tokens.Current(ctx); info != nil {
		fmt.Fprintf(a.out, "token expires: %s (in %s)\n",
			info.ExpiresAt.Format(time.RFC3339), info.TimeUntilExpiry.Truncate(time.Second))
	}
	if a.tokens.IsRefreshInProgress() {
		fmt.Fprintln(a.out, "refresh:       in progress")
	}
	return nil
}

// Get issues an authenticated GET and prints the response body, indented
// when it is JSON.
func (a *App) Get(ctx context.Context, path string) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	resp, err := a.api.Do(ctx, &httpclient.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if json.Indent(&buf, resp.Body, "", "  ") != nil {
		buf.Reset()
		buf.Write(resp.Body)
	}
	fmt.Fprintf(a.out, "%d\n%s\n", resp.StatusCode, buf.String())
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	s, err := a.session.Refresh(ctx)
	if err != nil {
		return err
	}
	if !s.IsAuthenticated {
		return fmt.Errorf("no active session")
	}
	return nil
}
