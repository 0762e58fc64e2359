package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authsession/internal/client/events"
)

// printNotifications echoes session events to the user, the way a UI would
// show a toast. It returns the unsubscribe function.
func (a *App) printNotifications() func() {
	return a.bus.Subscribe(func(_ context.Context, e events.Event) {
		fmt.Fprintln(a.out, describe(e))
	}, events.KindLogin, events.KindLogout, events.KindRegister, events.KindTokenRefreshed, events.KindAuthExpired)
}

func describe(e events.Event) string {
	who := ""
	if e.User != nil {
		who = " as " + e.User.Email
	}
	switch e.Kind {
	case events.KindLogin:
		return "* signed in" + who
	case events.KindRegister:
		return "* registered" + who
	case events.KindLogout:
		return "* signed out"
	case events.KindTokenRefreshed:
		return "* session refreshed"
	case events.KindAuthExpired:
		return "* session expired, please log in again"
	}
	return fmt.Sprintf("* %s", e.Kind)
}
