// Package state owns the skill tree application state.
//
// A Store is an explicit container: callers create one and pass it to the
// components that need it. Every mutation replaces the node collection with
// a modified clone, so a State returned by Snapshot is never changed
// afterwards and may be held by renderers indefinitely.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/skilltree/internal/completion"
	"github.com/agentic-research/skilltree/internal/source"
	"github.com/agentic-research/skilltree/internal/tree"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// unknownError is reported when a fetch fails without a message.
const unknownError = "unknown error"

// persistTimeout bounds a single progress save.
const persistTimeout = 5 * time.Second

// State is a read-only view of the store. Do not modify Nodes.
type State struct {
	Nodes   tree.Collection
	RootID  string
	Loading bool
	Error   string
	// Source is the location the current tree was loaded from.
	Source string
	// LoadID changes on every successful load, which also resets progress.
	LoadID string
}

// ProgressStore persists completed ids per tree source.
type ProgressStore interface {
	Save(ctx context.Context, source string, ids []string) error
	Load(ctx context.Context, source string) ([]string, error)
}

// Options configures a Store.
type Options struct {
	Logger *zap.Logger
	// Progress is optional. Without it state lives only in memory.
	Progress ProgressStore
	// Normalize options applied to every loaded tree.
	Normalize []tree.Option
}

// Store holds the tree state and serializes mutations.
type Store struct {
	mu       sync.RWMutex
	state    State
	inflight int
	subs     map[string]chan State
	loaded   map[string]struct{} // sources loaded successfully at least once

	logger    *zap.Logger
	progress  ProgressStore
	normalize []tree.Option

	persistMu sync.Mutex
	saved     *roaring.Bitmap // completed set last written for saved Source
	savedFor  string
}

// New returns a store holding the empty initial state.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		state:     State{Nodes: tree.Collection{}},
		subs:      make(map[string]chan State),
		loaded:    make(map[string]struct{}),
		logger:    logger,
		progress:  opts.Progress,
		normalize: opts.Normalize,
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.state.Nodes.Get(id)
	if err != nil {
		return tree.Node{}, err
	}
	return *n.Clone(), nil
}

// Load fetches the tree at location and replaces the current one. On
// failure the previous tree is kept and State.Error is set; the error is
// also returned.
//
// Saved progress is restored only on the first successful load of a
// location. A refetch resets progress, and the reset is saved.
//
// Concurrent loads are not coordinated: whichever finishes last wins.
func (s *Store) Load(ctx context.Context, f source.Fetcher, location string) error {
	first := s.begin(location)

	raw, err := f.Fetch(ctx, location)
	if err != nil {
		s.reject(location, err)
		return err
	}

	res := tree.NormalizeResult(raw, s.normalize...)
	if len(res.Collisions) > 0 {
		s.logger.Warn("duplicate node ids in skill tree",
			zap.String("source", location),
			zap.Strings("ids", res.Collisions),
		)
	}
	if s.progress != nil && first {
		ids, err := s.progress.Load(ctx, location)
		if err != nil {
			s.logger.Warn("load progress", zap.String("source", location), zap.Error(err))
		} else if len(ids) > 0 {
			restored := completion.Restore(res.Nodes, ids)
			s.logger.Info("restored progress",
				zap.String("source", location),
				zap.Int("saved", len(ids)),
				zap.Int("restored", restored),
			)
		}
	}

	s.fulfill(location, res.Nodes, res.RootID, first)
	if !first {
		s.persist()
	}
	return nil
}

// begin marks the store as loading and reports whether location has not
// been loaded successfully before.
func (s *Store) begin(location string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	if s.inflight > 1 {
		s.logger.Warn("skill tree load started while another is pending",
			zap.String("source", location),
			zap.Int("inflight", s.inflight),
		)
	}
	s.state.Loading = true
	s.state.Error = ""
	s.publishLocked()
	_, seen := s.loaded[location]
	return !seen
}

func (s *Store) reject(location string, err error) {
	msg := err.Error()
	if msg == "" {
		msg = unknownError
	}
	s.logger.Error("load skill tree", zap.String("source", location), zap.Error(err))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	s.state.Loading = false
	s.state.Error = msg
	s.publishLocked()
}

// fulfill installs a loaded tree. When the tree was not restored from the
// saved set, the saved marker is cleared so the next persist writes it.
func (s *Store) fulfill(location string, nodes tree.Collection, rootID string, restored bool) {
	s.persistMu.Lock()
	if restored {
		s.saved = completion.CompletedBitmap(nodes)
	} else {
		s.saved = nil
	}
	s.savedFor = location
	s.persistMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	s.loaded[location] = struct{}{}
	s.state = State{
		Nodes:  nodes,
		RootID: rootID,
		Source: location,
		LoadID: uuid.NewString(),
	}
	s.logger.Info("loaded skill tree",
		zap.String("source", location),
		zap.String("root", rootID),
		zap.Int("nodes", len(nodes)),
	)
	s.publishLocked()
}

// Toggle flips completion of id under the parent gate.
func (s *Store) Toggle(id string) completion.Outcome {
	return s.mutate("toggle", id, func(nodes tree.Collection) completion.Outcome {
		return completion.Toggle(nodes, id)
	})
}

// CompleteWithParents completes id and all of its ancestors.
func (s *Store) CompleteWithParents(id string) completion.Outcome {
	return s.mutate("complete_with_parents", id, func(nodes tree.Collection) completion.Outcome {
		return completion.CompleteWithParents(nodes, id)
	})
}

// Reset un-completes every node.
func (s *Store) Reset() {
	s.mutate("reset", "", func(nodes tree.Collection) completion.Outcome {
		completion.Reset(nodes)
		return completion.Applied
	})
}

func (s *Store) mutate(op, id string, fn func(tree.Collection) completion.Outcome) completion.Outcome {
	s.mu.Lock()
	next := s.state.Nodes.Clone()
	outcome := fn(next)
	if outcome == completion.Applied {
		s.state.Nodes = next
		s.publishLocked()
	}
	s.mu.Unlock()

	s.logger.Debug("skill tree mutation",
		zap.String("op", op),
		zap.String("id", id),
		zap.Stringer("outcome", outcome),
	)
	if outcome == completion.Applied {
		s.persist()
	}
	return outcome
}

// persist saves the latest completed set when it differs from what was last
// written.
func (s *Store) persist() {
	if s.progress == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	st := s.Snapshot()
	if st.Source == "" {
		return
	}
	bm := completion.CompletedBitmap(st.Nodes)
	if st.Source == s.savedFor && s.saved != nil && s.saved.Equals(bm) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.progress.Save(ctx, st.Source, completion.CompletedIDs(st.Nodes)); err != nil {
		s.logger.Error("save progress", zap.String("source", st.Source), zap.Error(err))
		return
	}
	s.saved = bm
	s.savedFor = st.Source
}

// Subscribe returns a channel that receives the current state and every
// state published afterwards. The channel holds one pending state; a slow
// reader sees only the latest. Call the returned func to unsubscribe.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	id := uuid.NewString()

	s.mu.Lock()
	s.subs[id] = ch
	ch <- s.state
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// publishLocked must be called with s.mu held for writing.
func (s *Store) publishLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- s.state:
			continue
		default:
		}
		// Replace the stale pending state.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.state:
		default:
		}
	}
}
