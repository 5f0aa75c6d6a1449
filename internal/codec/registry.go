package codec

import (
	"fmt"
	"log/slog"
	"sync"

	"mediakit/internal/mediaerr"
)

type entry struct {
	codec Codec
	meta  Meta
	state any
}

// Registry maps codec identities to codecs. Registration is expected at
// startup; after that the registry is safe for concurrent readers.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	byID    map[ID]*entry
	custom  ScoreFunc
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byID:   make(map[ID]*entry),
		logger: logger.With("component", "codec-registry"),
	}
}

// Register adds c. If c implements StateInitializer its persistent state is
// created here, once.
func (r *Registry) Register(c Codec) error {
	m := c.Meta()
	if m.ID == "" {
		return mediaerr.Errorf(mediaerr.KindConfiguration, "codec.Register", "codec has no identity")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[m.ID]; dup {
		return mediaerr.Errorf(mediaerr.KindConfiguration, "codec.Register", "codec %s already registered", m.ID)
	}
	var state any
	if si, ok := c.(StateInitializer); ok {
		var err error
		if state, err = si.InitState(); err != nil {
			return mediaerr.E(mediaerr.KindConfiguration, "codec.Register",
				fmt.Errorf("init state of %s: %w", m.ID, err))
		}
	}
	e := &entry{codec: c, meta: m, state: state}
	r.entries = append(r.entries, e)
	r.byID[m.ID] = e
	r.logger.Debug("codec registered", "codec", m.ID, "class", m.Class)
	return nil
}

// SetCustomScore installs the scoring function used by the Custom criterion.
func (r *Registry) SetCustomScore(f ScoreFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom = f
}

// Lookup returns a registered codec and its persistent state.
func (r *Registry) Lookup(id ID) (Codec, any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, nil, mediaerr.E(mediaerr.KindConfiguration, "codec.Lookup",
			fmt.Errorf("%s: %w", id, mediaerr.ErrCodecNotRegistered))
	}
	return e.codec, e.state, nil
}

// Codecs lists registered codecs in registration order.
func (r *Registry) Codecs() []Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Meta, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.meta)
	}
	return out
}

// Select asks every codec whether it handles d and returns the best willing
// one under c. Ties go to the codec registered first.
func (r *Registry) Select(d Descriptor, c Criterion) (ID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best      *entry
		bestScore float64
	)
	for _, e := range r.entries {
		a := e.codec.Applicability(d)
		if !a.WillHandle {
			continue
		}
		s := Score(a, c, r.custom)
		if best == nil || s > bestScore {
			best, bestScore = e, s
		}
	}
	if best == nil {
		return "", mediaerr.E(mediaerr.KindUnsupported, "codec.Select",
			fmt.Errorf("class %q compression %q: %w", d.Class(), d.Compression(), mediaerr.ErrUnsupportedFormat))
	}
	r.logger.Debug("codec selected", "codec", best.meta.ID, "criterion", c.String(), "descriptor", d.ID)
	return best.meta.ID, nil
}

// Bind looks up id and attaches its persistent state to h.
func (r *Registry) Bind(id ID, h *Handle) (Codec, error) {
	c, state, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	h.Persistent = state
	return c, nil
}
