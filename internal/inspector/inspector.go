// ABOUTME: Per-session element registries for the dev-mode component inspector
// ABOUTME: Sessions idle past the TTL are swept; the oldest is evicted when the cap is reached

package inspector

import (
	"container/list"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultIdleTTL is how long an untouched session registry survives.
	DefaultIdleTTL = 30 * time.Minute

	// DefaultMaxSessions bounds the number of live registries.
	DefaultMaxSessions = 256

	maxElements   = 1000
	maxProps      = 32
	maxIDLength   = 128
	maxPropLength = 512
)

var (
	// ErrElementNotFound is returned when a session has no element with the id.
	ErrElementNotFound = errors.New("element not found")

	// ErrRegistryFull is returned when a session already holds maxElements.
	ErrRegistryFull = errors.New("too many elements registered")
)

// Element is one rendered component the page reported.
type Element struct {
	ID        string            `json:"id"`
	Component string            `json:"component"`
	Source    string            `json:"source,omitempty"`
	Line      int               `json:"line,omitempty"`
	Props     map[string]string `json:"props,omitempty"`
}

// Validate checks an element before it is stored.
func (e Element) Validate() error {
	switch {
	case e.ID == "":
		return errors.New("id is required")
	case len(e.ID) > maxIDLength:
		return fmt.Errorf("id must be at most %d characters", maxIDLength)
	case e.Component == "":
		return errors.New("component is required")
	case e.Line < 0:
		return errors.New("line must not be negative")
	case len(e.Props) > maxProps:
		return fmt.Errorf("at most %d props are allowed", maxProps)
	}
	for k, v := range e.Props {
		if len(k) > maxPropLength || len(v) > maxPropLength {
			return fmt.Errorf("prop %q is too long", k)
		}
	}
	return nil
}

// Registry holds the elements of one browser session. It is only touched
// with the owning Inspector's lock held.
type Registry struct {
	elements map[string]Element
	lastSeen time.Time
	node     *list.Element
}

// Inspector owns every session's registry.
type Inspector struct {
	mu          sync.Mutex
	sessions    map[string]*Registry
	order       *list.List // session ids, least recently used at the front
	idleTTL     time.Duration
	maxSessions int
	now         func() time.Time
	logger      *slog.Logger
	done        chan struct{}
	closeOnce   sync.Once
}

// New creates an inspector and starts its sweeper. Zero values pick the defaults.
func New(idleTTL time.Duration, maxSessions int) *Inspector {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	in := &Inspector{
		sessions:    make(map[string]*Registry),
		order:       list.New(),
		idleTTL:     idleTTL,
		maxSessions: maxSessions,
		now:         time.Now,
		logger:      slog.Default().With("component", "inspector"),
		done:        make(chan struct{}),
	}
	go in.sweepLoop()
	return in
}

// Close stops the sweeper. Safe to call more than once.
func (in *Inspector) Close() {
	in.closeOnce.Do(func() { close(in.done) })
}

// touchLocked returns the session's registry, creating it when missing, and
// marks it as used now.
func (in *Inspector) touchLocked(session string) *Registry {
	now := in.now()
	if reg, ok := in.sessions[session]; ok {
		reg.lastSeen = now
		in.order.MoveToBack(reg.node)
		return reg
	}

	if len(in.sessions) >= in.maxSessions {
		if front := in.order.Front(); front != nil {
			in.dropLocked(front.Value.(string))
		}
	}

	reg := &Registry{elements: make(map[string]Element), lastSeen: now}
	reg.node = in.order.PushBack(session)
	in.sessions[session] = reg
	return reg
}

func (in *Inspector) dropLocked(session string) {
	reg, ok := in.sessions[session]
	if !ok {
		return
	}
	in.order.Remove(reg.node)
	delete(in.sessions, session)
}

// Register adds or replaces an element in the session's registry.
func (in *Inspector) Register(session string, el Element) error {
	if err := el.Validate(); err != nil {
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	reg := in.touchLocked(session)
	if _, exists := reg.elements[el.ID]; !exists && len(reg.elements) >= maxElements {
		return ErrRegistryFull
	}
	reg.elements[el.ID] = el
	return nil
}

// List returns the session's elements sorted by id.
func (in *Inspector) List(session string) []Element {
	in.mu.Lock()
	defer in.mu.Unlock()

	reg := in.touchLocked(session)
	out := make([]Element, 0, len(reg.elements))
	for _, el := range reg.elements {
		out = append(out, el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns one element or ErrElementNotFound.
func (in *Inspector) Get(session, id string) (Element, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	el, ok := in.touchLocked(session).elements[id]
	if !ok {
		return Element{}, ErrElementNotFound
	}
	return el, nil
}

// Clear empties the session's registry.
func (in *Inspector) Clear(session string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.touchLocked(session).elements = make(map[string]Element)
}

// Sessions reports how many registries are live.
func (in *Inspector) Sessions() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.sessions)
}

// Sweep drops every registry idle for longer than the TTL and returns how many went.
func (in *Inspector) Sweep() int {
	in.mu.Lock()
	defer in.mu.Unlock()

	cutoff := in.now().Add(-in.idleTTL)
	dropped := 0
	for front := in.order.Front(); front != nil; front = in.order.Front() {
		session := front.Value.(string)
		if in.sessions[session].lastSeen.After(cutoff) {
			break
		}
		in.dropLocked(session)
		dropped++
	}
	return dropped
}

func (in *Inspector) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := in.Sweep(); n > 0 {
				in.logger.Debug("dropped idle inspector sessions", "count", n)
			}
		case <-in.done:
			return
		}
	}
}
