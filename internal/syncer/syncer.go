// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package syncer publishes staged changesets to the shared remote with
// optimistic concurrency: a publish is attempted only while the live remote
// reference still equals the locally recorded sync state. Divergence is a
// conflict to report, never something to merge automatically.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kbmd/internal/docstore"
	"github.com/pdiddy/kbmd/pkg/types"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// transport failures. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const (
	defaultMaxRetries = 3
	syncStateFile     = "syncstate.yaml"
)

// State is the sync engine's position in its lifecycle.
type State string

const (
	// StateClean means the local store matches the recorded sync state.
	StateClean State = "clean"

	// StateStaged means a changeset has been applied locally but not sent.
	StateStaged State = "staged"

	// StatePublished means the remote accepted the changes.
	StatePublished State = "published"

	// StateConflicted means the remote diverged; manual merge required.
	StateConflicted State = "conflicted"

	// StateRejected means the transport refused the write after retries.
	StateRejected State = "rejected"
)

// ConflictError reports that the live remote reference no longer matches
// the locally recorded base.
type ConflictError struct {
	Base string
	Live string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("remote has diverged: recorded base %s, live reference %s (manual merge required)", short(e.Base), short(e.Live))
}

// TransportError reports a transport-side failure (network, permissions).
// It is retryable with backoff up to the configured attempt count.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport moves staged documents to the shared remote.
type Transport interface {
	// CurrentReference returns the live remote reference.
	CurrentReference(ctx context.Context) (string, error)

	// Publish sends the given files as one atomic remote update, but only
	// if the remote still points at expectedBase. It returns the new
	// remote reference, a *ConflictError on divergence, or a
	// *TransportError on transport failure.
	Publish(ctx context.Context, paths []string, message, expectedBase string) (string, error)
}

// Engine drives the Clean -> Staged -> {Published, Conflicted, Rejected}
// lifecycle for one knowledgebase.
type Engine struct {
	store     *docstore.Store
	transport Transport
	cfg       types.SyncConfig
	state     State
}

// New builds a sync engine over the given store and transport.
func New(store *docstore.Store, transport Transport, cfg types.SyncConfig) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Engine{store: store, transport: transport, cfg: cfg, state: StateClean}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State { return e.state }

// Outcome summarizes one sync attempt.
type Outcome struct {
	State    State
	NewRef   string
	Applied  int
	Attempts int
}

// Sync stages the changeset against the current remote state and publishes
// it. The divergence check runs before any local write, so a conflict
// leaves the store untouched. Advisory items are never applied or
// published. An empty changeset is a no-op that leaves the engine clean.
func (e *Engine) Sync(ctx context.Context, cs types.Changeset, w io.Writer) (Outcome, error) {
	mutations := cs.Mutations()
	if len(mutations) == 0 {
		e.state = StateClean
		fmt.Fprintln(w, "nothing to publish")
		return Outcome{State: StateClean}, nil
	}

	recorded, err := LoadSyncState(e.store.Root())
	if err != nil {
		return Outcome{State: e.state}, err
	}

	live, attempts, err := e.currentReferenceWithRetry(ctx, w)
	if err != nil {
		e.state = StateRejected
		return Outcome{State: StateRejected, Attempts: attempts}, err
	}

	base := recorded.RemoteRef
	if cs.BaseRef != "" {
		base = cs.BaseRef
	}
	if base != "" && live != base {
		e.state = StateConflicted
		return Outcome{State: StateConflicted, Attempts: attempts}, &ConflictError{Base: base, Live: live}
	}

	// Apply mutations locally: the changeset is now staged.
	var paths []string
	for _, c := range mutations {
		if err := e.store.ApplyChange(c); err != nil {
			return Outcome{State: e.state}, fmt.Errorf("staging %s: %w", c.DocID, err)
		}
		if c.DocType == types.DocIndex {
			paths = append(paths, e.store.IndexPath(c.DocID))
		} else {
			paths = append(paths, e.store.EntryPath(c.DocID))
		}
		fmt.Fprintf(w, "staged  %s (%s)\n", c.DocID, c.Kind)
	}
	e.state = StateStaged

	message := fmt.Sprintf("kbmd: publish %d document(s)", len(mutations))
	newRef, pubAttempts, err := e.publishWithRetry(ctx, paths, message, live, w)
	attempts += pubAttempts
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			e.state = StateConflicted
			return Outcome{State: StateConflicted, Applied: len(mutations), Attempts: attempts}, err
		}
		e.state = StateRejected
		return Outcome{State: StateRejected, Applied: len(mutations), Attempts: attempts}, err
	}

	st := types.SyncState{RemoteRef: newRef, SyncedAt: time.Now().UTC()}
	if err := SaveSyncState(e.store.Root(), st); err != nil {
		return Outcome{State: e.state}, err
	}
	e.state = StatePublished
	fmt.Fprintf(w, "published %d document(s) at %s\n", len(mutations), short(newRef))
	return Outcome{State: StatePublished, NewRef: newRef, Applied: len(mutations), Attempts: attempts}, nil
}

// currentReferenceWithRetry queries the live remote reference, retrying
// transport failures with exponential backoff.
func (e *Engine) currentReferenceWithRetry(ctx context.Context, w io.Writer) (string, int, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := backoff(ctx, attempt-1); err != nil {
				return "", attempt, err
			}
			fmt.Fprintf(w, "retrying remote query (attempt %d/%d)\n", attempt, e.cfg.MaxRetries)
		}
		ref, err := e.transport.CurrentReference(ctx)
		if err == nil {
			return ref, attempt + 1, nil
		}
		lastErr = err
		if !isTransportError(err) {
			return "", attempt + 1, err
		}
	}
	return "", e.cfg.MaxRetries + 1, lastErr
}

// publishWithRetry pushes the staged files, retrying transport failures.
// Conflicts are terminal and never retried.
func (e *Engine) publishWithRetry(ctx context.Context, paths []string, message, expectedBase string, w io.Writer) (string, int, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := backoff(ctx, attempt-1); err != nil {
				return "", attempt, err
			}
			fmt.Fprintf(w, "retrying publish (attempt %d/%d)\n", attempt, e.cfg.MaxRetries)
		}
		newRef, err := e.transport.Publish(ctx, paths, message, expectedBase)
		if err == nil {
			return newRef, attempt + 1, nil
		}
		lastErr = err
		if !isTransportError(err) {
			return "", attempt + 1, err
		}
	}
	return "", e.cfg.MaxRetries + 1, lastErr
}

func isTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// backoff sleeps for RetryBaseDelay * 2^attempt or until ctx is cancelled.
func backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// LoadSyncState reads the recorded sync state from root/syncstate.yaml.
// A missing file means no sync has happened yet.
func LoadSyncState(root string) (types.SyncState, error) {
	data, err := os.ReadFile(filepath.Join(root, syncStateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return types.SyncState{}, nil
		}
		return types.SyncState{}, fmt.Errorf("reading sync state: %w", err)
	}
	var st types.SyncState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return types.SyncState{}, fmt.Errorf("parsing sync state: %w", err)
	}
	return st, nil
}

// SaveSyncState writes the recorded sync state.
func SaveSyncState(root string, st types.SyncState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding sync state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, syncStateFile), data, 0o644); err != nil {
		return fmt.Errorf("writing sync state: %w", err)
	}
	return nil
}

func short(ref string) string {
	if len(ref) > 12 {
		return ref[:12]
	}
	if ref == "" {
		return "(none)"
	}
	return ref
}
