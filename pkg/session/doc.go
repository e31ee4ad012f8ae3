// Package session owns the canonical in-memory session collection for a
// storytelling chat client and keeps it in sync with local and remote
// persistence.
//
// Invariants:
// - At most one session is active at any time, and the current-session
//   pointer always references a session in the collection.
// - Every mutation is a single atomic transition of the collection,
//   serialized through the synchronizer.
// - Local persistence is write-through; remote persistence is a detached
//   background effect whose failure never reverts committed state.
//
// Usage:
//
//	sync, _ := session.New(session.Config{Local: store, Logger: logger})
//	_ = sync.Load(ctx)
//	id, _ := sync.CreateSession(ctx, nil, "What if the hare had slept in?")
//	_, _ = sync.AddTurn(ctx, id, session.TurnDraft{Role: session.RoleUser, Content: "hello"})
package session
