// Package cli provides the interactive authsession command-line client.
//
// It wires configuration, session storage, the cross-context broadcaster,
// the token manager, the request pipeline and the session coordinator, then
// runs a REPL over them. Session notifications (login, logout, refresh,
// expiry) are printed as they arrive, including those caused by another
// process sharing the same Redis-backed session.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
