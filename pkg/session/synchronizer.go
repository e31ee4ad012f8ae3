package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/haeun/whatif/internal/observability"
	"github.com/haeun/whatif/internal/tracing"
	"github.com/haeun/whatif/pkg/identity"
	"github.com/haeun/whatif/pkg/story"
)

// Config holds synchronizer dependencies.
type Config struct {
	Local    LocalStore
	Remote   RemoteStore       // optional; nil disables the authenticated path
	Identity identity.Resolver // optional; nil means always anonymous
	Logger   zerolog.Logger
	IDs      IDSource         // optional; defaults to UUIDv4
	Now      func() time.Time // optional; defaults to time.Now
	OnChange func(State)      // optional; called after each committed transition
}

// Synchronizer owns the canonical in-memory session collection and keeps
// it in sync with local and remote persistence. All mutations go through
// its operations; each one is a single atomic transition of the
// collection. Remote writes run as detached background tasks whose
// completion order never affects in-memory consistency.
type Synchronizer struct {
	mu    sync.Mutex
	state State

	local    LocalStore
	remote   RemoteStore
	identity identity.Resolver
	logger   zerolog.Logger
	newID    IDSource
	now      func() time.Time
	onChange func(State)

	background sync.WaitGroup

	// Publish ordering: commitSeq is assigned under mu at commit time,
	// pubMu serializes deliveries and drops snapshots a newer commit
	// has already superseded.
	commitSeq    uint64
	pubMu        sync.Mutex
	pubDelivered uint64
}

// New creates a synchronizer. The collection starts empty and loading;
// call Load to hydrate it.
func New(cfg Config) (*Synchronizer, error) {
	observability.EnsureRegistered()

	if cfg.Local == nil {
		return nil, errors.New("local store is required")
	}

	newID := cfg.IDs
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Synchronizer{
		state:    State{Sessions: []Session{}, IsLoading: true},
		local:    cfg.Local,
		remote:   cfg.Remote,
		identity: cfg.Identity,
		logger:   cfg.Logger,
		newID:    newID,
		now:      now,
		onChange: cfg.OnChange,
	}

	s.logger.Info().Msg("Session synchronizer initialized")
	return s, nil
}

// currentUser resolves identity for one operation. Resolver failures are
// treated as "no user" so every operation can degrade to the local path.
func (s *Synchronizer) currentUser(ctx context.Context) *identity.User {
	if s.identity == nil {
		return nil
	}
	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Identity resolution failed, treating as anonymous")
		return nil
	}
	return user
}

func (s *Synchronizer) authenticated(user *identity.User) bool {
	return user != nil && s.remote != nil
}

// Load hydrates the collection from whichever backing store is
// authoritative. Remote failures fall back to the local store; a
// malformed local payload is treated as no data. The collection always
// converges on a usable state.
func (s *Synchronizer) Load(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "whatif.session", "session.load")
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	s.mu.Lock()
	s.state.IsLoading = true
	snap, seq := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, seq)

	user := s.currentUser(ctx)

	var (
		sessions  []Session
		currentID string
		localErr  error
		source    = "local"
	)

	if s.authenticated(user) {
		remoteSessions, err := s.remote.LoadSessions(ctx, user.ID)
		if err != nil {
			logger.Warn().Err(err).Msg("Remote load failed, falling back to local store")
			span.RecordError(err)
			sessions, currentID, localErr = s.loadFromLocal(logger)
		} else {
			source = "remote"
			sessions = remoteSessions
			for _, sess := range sessions {
				if sess.IsActive {
					currentID = sess.ID
					break
				}
			}
		}
	} else {
		sessions, currentID, localErr = s.loadFromLocal(logger)
	}

	if sessions == nil {
		sessions = []Session{}
	}

	s.mu.Lock()
	s.state.Sessions = sessions
	s.state.CurrentSessionID = currentID
	s.state.IsLoading = false
	snap, seq = s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, seq)
	observability.SetSessionCount(len(sessions))

	if localErr != nil {
		span.RecordError(localErr)
		span.SetStatus(codes.Error, localErr.Error())
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, localErr)
	}

	logger.Info().
		Int("sessions", len(sessions)).
		Str("source", source).
		Msg("Session collection loaded")
	return nil
}

// loadFromLocal reads the collection and pointer keys. Missing or
// malformed data yields an empty collection; only a store read failure
// is returned as an error.
func (s *Synchronizer) loadFromLocal(logger zerolog.Logger) ([]Session, string, error) {
	payload, ok, err := s.local.Get(SessionsKey)
	if err != nil {
		return []Session{}, "", fmt.Errorf("failed to read local sessions: %w", err)
	}

	sessions := []Session{}
	if ok {
		decoded, err := DecodeSessions(payload)
		if err != nil {
			logger.Warn().Err(err).Msg("Stored sessions are malformed, starting empty")
		} else {
			sessions = decoded
		}
	}

	currentID := ""
	pointer, ok, err := s.local.Get(CurrentSessionKey)
	if err != nil {
		return sessions, "", fmt.Errorf("failed to read current session pointer: %w", err)
	}
	if ok {
		for _, sess := range sessions {
			if sess.ID == pointer {
				currentID = pointer
				break
			}
		}
	}

	return sessions, currentID, nil
}

// CreateSession produces a new active session and makes it current. The
// title derives from the story; a non-empty first message becomes one
// assistant-authored opening turn. On the authenticated path a remote
// create failure rolls back the optimistic entry and surfaces the error.
func (s *Synchronizer) CreateSession(ctx context.Context, st *story.Story, firstMessage string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "whatif.session", "session.create")
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	user := s.currentUser(ctx)
	now := s.now()

	sess := Session{
		ID:        s.newID(),
		Title:     story.SessionTitle(st),
		CreatedAt: now,
		UpdatedAt: now,
		Turns:     []Turn{},
		IsActive:  true,
	}
	if st != nil {
		sess.StoryID = st.ID
	}
	if strings.TrimSpace(firstMessage) != "" {
		sess.Turns = append(sess.Turns, Turn{
			ID:        s.newID(),
			Role:      RoleAssistant,
			Content:   firstMessage,
			Timestamp: now,
		})
	}

	span.SetAttributes(attribute.String("session_id", sess.ID))

	s.mu.Lock()
	prev := s.snapshotLocked()
	for i := range s.state.Sessions {
		s.state.Sessions[i].IsActive = false
	}
	s.state.Sessions = append([]Session{sess}, s.state.Sessions...)
	s.state.CurrentSessionID = sess.ID

	if !s.authenticated(user) {
		// The operation is not complete until the collection is durable
		// locally; an immediate reload must see the new session.
		if err := s.persistLocalLocked(); err != nil {
			s.restoreLocked(prev)
			s.mu.Unlock()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	snap, seq := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, seq)

	if s.authenticated(user) {
		if err := s.createRemote(ctx, user.ID, sess); err != nil {
			s.mu.Lock()
			s.rollbackCreateLocked(prev, sess.ID)
			snap, seq = s.commitLocked()
			s.mu.Unlock()
			s.publish(snap, seq)

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).Str("session_id", sess.ID).Msg("Remote session create failed")
			return "", fmt.Errorf("%w: %v", ErrRemoteRejected, err)
		}
	}

	observability.SetSessionCount(len(snap.Sessions))
	logger.Info().
		Str("session_id", sess.ID).
		Str("title", sess.Title).
		Int("turns", len(sess.Turns)).
		Msg("Session created")
	return sess.ID, nil
}

// createRemote persists a new session as the single active one for the
// user: deactivate everything, insert the session, insert the optional
// opening turn.
func (s *Synchronizer) createRemote(ctx context.Context, userID string, sess Session) error {
	if err := s.remote.DeactivateAll(ctx, userID); err != nil {
		return fmt.Errorf("failed to deactivate sessions: %w", err)
	}
	if err := s.remote.InsertSession(ctx, userID, sess); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	for _, turn := range sess.Turns {
		if err := s.remote.InsertTurn(ctx, sess.ID, turn); err != nil {
			return fmt.Errorf("failed to insert opening turn: %w", err)
		}
	}
	return nil
}

// SwitchToSession marks the named session active and all others inactive.
// Switching to the already-current session is a no-op. The remote
// activation change is eventually consistent; the in-memory switch never
// waits for it and never reverts on its failure.
func (s *Synchronizer) SwitchToSession(ctx context.Context, sessionID string) error {
	ctx, span := tracing.StartSpan(
		ctx,
		"whatif.session",
		"session.switch",
		attribute.String("session_id", sessionID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	user := s.currentUser(ctx)

	s.mu.Lock()
	if s.state.CurrentSessionID == sessionID {
		s.mu.Unlock()
		logger.Debug().Str("session_id", sessionID).Msg("Session already current")
		return nil
	}
	if s.indexLocked(sessionID) < 0 {
		s.mu.Unlock()
		span.SetStatus(codes.Error, "session not found")
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	for i := range s.state.Sessions {
		s.state.Sessions[i].IsActive = s.state.Sessions[i].ID == sessionID
	}
	s.state.CurrentSessionID = sessionID

	if !s.authenticated(user) {
		if err := s.persistLocalLocked(); err != nil {
			// The in-memory switch stands; durability degrades.
			logger.Error().Err(err).Str("session_id", sessionID).Msg("Local persist failed on switch")
			span.RecordError(err)
		}
	}
	snap, seq := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, seq)

	if s.authenticated(user) {
		userID := user.ID
		s.runBackground(ctx, "switch", func(bg context.Context) error {
			if err := s.remote.DeactivateAll(bg, userID); err != nil {
				return err
			}
			return s.remote.SetSessionActive(bg, userID, sessionID, true)
		})
	}

	logger.Debug().Str("session_id", sessionID).Msg("Switched session")
	return nil
}

// AddTurn assigns an id and timestamp to the draft, appends it, bumps the
// session's updatedAt, and makes the session current. The in-memory and
// local-durable update completes before the call returns; the remote
// insert is best-effort in the background. A turn the user has seen is
// never rolled back.
func (s *Synchronizer) AddTurn(ctx context.Context, sessionID string, draft TurnDraft) (Turn, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"whatif.session",
		"session.append_turn",
		attribute.String("session_id", sessionID),
		attribute.String("role", string(draft.Role)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	if !draft.Role.Valid() {
		span.SetStatus(codes.Error, "invalid role")
		return Turn{}, fmt.Errorf("invalid turn role: %q", draft.Role)
	}

	user := s.currentUser(ctx)

	s.mu.Lock()
	idx := s.indexLocked(sessionID)
	if idx < 0 {
		s.mu.Unlock()
		span.SetStatus(codes.Error, "session not found")
		return Turn{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	now := s.now()
	// Timestamps are monotonically non-decreasing within a session.
	if turns := s.state.Sessions[idx].Turns; len(turns) > 0 {
		if last := turns[len(turns)-1].Timestamp; now.Before(last) {
			now = last
		}
	}

	turn := Turn{
		ID:        s.newID(),
		Role:      draft.Role,
		Content:   draft.Content,
		Timestamp: now,
	}

	for i := range s.state.Sessions {
		s.state.Sessions[i].IsActive = i == idx
	}
	s.state.Sessions[idx].Turns = append(s.state.Sessions[idx].Turns, turn)
	s.state.Sessions[idx].UpdatedAt = now
	s.state.CurrentSessionID = sessionID

	persistErr := s.persistLocalLocked()
	snap, seq := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, seq)
	observability.RecordTurnAppended()

	if persistErr != nil {
		// The appended turn stays visible; only durability degraded.
		logger.Error().Err(persistErr).Str("session_id", sessionID).Msg("Local persist failed on append")
		span.RecordError(persistErr)
		span.SetStatus(codes.Error, persistErr.Error())
		return turn, fmt.Errorf("%w: %v", ErrStorageUnavailable, persistErr)
	}

	if s.authenticated(user) {
		userID := user.ID
		s.runBackground(ctx, "append", func(bg context.Context) error {
			if err := s.remote.InsertTurn(bg, sessionID, turn); err != nil {
				return err
			}
			if err := s.remote.TouchSession(bg, userID, sessionID); err != nil {
				return err
			}
			return s.remote.DeactivateOthers(bg, userID, sessionID)
		})
	}

	logger.Debug().
		Str("session_id", sessionID).
		Str("role", string(turn.Role)).
		Msg("Turn appended")
	return turn, nil
}

// DeleteSession removes the session from the collection. Deleting the
// current session clears the pointer in the same transition. The remote
// delete runs in the background and is not retried.
func (s *Synchronizer) DeleteSession(ctx context.Context, sessionID string) error {
	ctx, span := tracing.StartSpan(
		ctx,
		"whatif.session",
		"session.delete",
		attribute.String("session_id", sessionID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	user := s.currentUser(ctx)

	s.mu.Lock()
	idx := s.indexLocked(sessionID)
	if idx < 0 {
		s.mu.Unlock()
		logger.Debug().Str("session_id", sessionID).Msg("Delete of unknown session is a no-op")
		return nil
	}

	s.state.Sessions = append(s.state.Sessions[:idx], s.state.Sessions[idx+1:]...)
	if s.state.CurrentSessionID == sessionID {
		s.state.CurrentSessionID = ""
	}

	if !s.authenticated(user) {
		if err := s.persistLocalLocked(); err != nil {
			logger.Error().Err(err).Str("session_id", sessionID).Msg("Local persist failed on delete")
			span.RecordError(err)
		}
	}
	snap, seq := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, seq)
	observability.SetSessionCount(len(snap.Sessions))

	if s.authenticated(user) {
		userID := user.ID
		s.runBackground(ctx, "delete", func(bg context.Context) error {
			return s.remote.DeleteSession(bg, userID, sessionID)
		})
	}

	logger.Info().Str("session_id", sessionID).Msg("Session deleted")
	return nil
}

// Sessions returns a copy of the collection, newest-updated-first.
func (s *Synchronizer) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked().Sessions
}

// CurrentSessionID returns the current session id, or empty when none.
func (s *Synchronizer) CurrentSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentSessionID
}

// CurrentSession returns a copy of the current session.
func (s *Synchronizer) CurrentSession() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(s.state.CurrentSessionID)
	if s.state.CurrentSessionID == "" || idx < 0 {
		return Session{}, false
	}
	return s.state.Sessions[idx].clone(), true
}

// IsLoading reports whether bootstrap is still in flight.
func (s *Synchronizer) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsLoading
}

// Snapshot returns a copy of the full collection state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Wait blocks until all in-flight background remote writes settle.
func (s *Synchronizer) Wait() {
	s.background.Wait()
}

func (s *Synchronizer) indexLocked(sessionID string) int {
	for i := range s.state.Sessions {
		if s.state.Sessions[i].ID == sessionID {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) snapshotLocked() State {
	out := State{
		Sessions:         make([]Session, len(s.state.Sessions)),
		CurrentSessionID: s.state.CurrentSessionID,
		IsLoading:        s.state.IsLoading,
	}
	for i, sess := range s.state.Sessions {
		out.Sessions[i] = sess.clone()
	}
	return out
}

// restoreLocked reverts to a snapshot taken under the same critical
// section. Only safe when the mutex was never released in between.
func (s *Synchronizer) restoreLocked(prev State) {
	s.state = prev
}

// rollbackCreateLocked undoes a failed remote create. The mutex was
// released while the remote write ran, so only the orphaned session is
// removed; transitions committed in that window stand. The pointer and
// active flags are restored from prev only when they still reference
// the orphan.
func (s *Synchronizer) rollbackCreateLocked(prev State, orphanID string) {
	if idx := s.indexLocked(orphanID); idx >= 0 {
		s.state.Sessions = append(s.state.Sessions[:idx], s.state.Sessions[idx+1:]...)
	}

	if s.state.CurrentSessionID != orphanID {
		return
	}

	current := ""
	if prev.CurrentSessionID != "" && s.indexLocked(prev.CurrentSessionID) >= 0 {
		current = prev.CurrentSessionID
	}
	s.state.CurrentSessionID = current
	for i := range s.state.Sessions {
		s.state.Sessions[i].IsActive = current != "" && s.state.Sessions[i].ID == current
	}
}

// persistLocalLocked writes both well-known keys through to the local
// store as part of the triggering mutation.
func (s *Synchronizer) persistLocalLocked() error {
	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	payload, err := EncodeSessions(s.state.Sessions)
	if err != nil {
		return err
	}
	if err := s.local.Set(SessionsKey, payload); err != nil {
		return fmt.Errorf("failed to write local sessions: %w", err)
	}
	if err := s.local.Set(CurrentSessionKey, s.state.CurrentSessionID); err != nil {
		return fmt.Errorf("failed to write current session pointer: %w", err)
	}
	return nil
}

// commitLocked snapshots the state and stamps it with a commit sequence
// number, so publishes can be delivered in commit order.
func (s *Synchronizer) commitLocked() (State, uint64) {
	s.commitSeq++
	return s.snapshotLocked(), s.commitSeq
}

// publish delivers a committed snapshot to the change callback. Deliveries
// are serialized; a snapshot that lost the race to a newer commit is
// dropped so observers never see state regress.
func (s *Synchronizer) publish(snap State, seq uint64) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn == nil {
		return
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if seq <= s.pubDelivered {
		return
	}
	s.pubDelivered = seq
	fn(snap)
}

// SetOnChange replaces the change callback. Useful when the consumer
// is wired up after the synchronizer, like a gateway broadcaster.
func (s *Synchronizer) SetOnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// runBackground launches a detached remote write. It inherits the
// caller's tracing values but not its cancellation; failures are
// reported, never propagated to committed in-memory state.
func (s *Synchronizer) runBackground(ctx context.Context, op string, fn func(context.Context) error) {
	bg := context.WithoutCancel(ctx)
	s.background.Add(1)
	observability.RecordRemoteWrite(op)

	go func() {
		defer s.background.Done()
		if err := fn(bg); err != nil {
			observability.RecordRemoteWriteFailure(op)
			logger := tracing.LoggerFromContext(bg, s.logger)
			logger.Error().
				Err(err).
				Str("op", op).
				Msg("Background remote write failed")
		}
	}()
}
