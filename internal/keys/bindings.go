package keys

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrConflict is wrapped by Apply when an override would give one sequence
// to two actions.
var ErrConflict = errors.New("key sequence bound to two actions")

// Action is a bound callback. Actions run on the goroutine that resolved the
// sequence and must not call Engine.Press.
type Action func()

// Binding associates a named action with the key sequences that trigger it.
type Binding struct {
	Name   string
	Help   string
	Keys   []Sequence
	Action Action
}

// Bindings is the key binding table. Lookups are exact-match; prefix
// relationships only inform the engine's ambiguity check.
//
// Bindings is safe for concurrent use. Applications may add and remove
// bindings from inside actions.
type Bindings struct {
	mu       sync.RWMutex
	order    []*Binding
	byName   map[string]*Binding
	bySeq    map[string]*Binding
	prefixes map[string]int
}

// NewBindings creates an empty binding table.
func NewBindings() *Bindings {
	return &Bindings{
		byName:   make(map[string]*Binding),
		bySeq:    make(map[string]*Binding),
		prefixes: make(map[string]int),
	}
}

// Add binds a single sequence to action. The sequence text doubles as the
// binding name. An existing binding for the same sequence is replaced.
func (b *Bindings) Add(keys string, action Action) error {
	return b.Bind(keys, "", action, keys)
}

// Bind registers action under name for each of the given sequences. Binding
// an existing name replaces its action and keys. A sequence already bound to
// another name moves to this one.
func (b *Bindings) Bind(name, help string, action Action, keys ...string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("binding name is required")
	}
	if action == nil {
		return fmt.Errorf("binding %q: action is required", name)
	}

	seqs, err := parseAll(keys)
	if err != nil {
		return fmt.Errorf("binding %q: %w", name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	target, ok := b.byName[name]
	if !ok {
		target = &Binding{Name: name}
		b.byName[name] = target
		b.order = append(b.order, target)
	}
	target.Help = help
	target.Action = action
	target.Keys = nil

	for _, seq := range seqs {
		b.detachLocked(seq)
		target.Keys = append(target.Keys, seq)
	}

	b.rebuildLocked()

	return nil
}

// Remove unbinds a single sequence and reports whether it was bound. The
// named action stays registered so keymap overrides can rebind it.
func (b *Bindings) Remove(keys string) bool {
	seq, err := ParseSequence(keys)
	if err != nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.detachLocked(seq) {
		return false
	}
	b.rebuildLocked()

	return true
}

// Unbind removes the named action and all of its sequences.
func (b *Bindings) Unbind(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	target, ok := b.byName[name]
	if !ok {
		return false
	}

	delete(b.byName, name)
	for i, existing := range b.order {
		if existing == target {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.rebuildLocked()

	return true
}

// Lookup returns the binding whose sequence equals seq exactly.
func (b *Bindings) Lookup(seq Sequence) (Binding, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	found, ok := b.bySeq[seq.String()]
	if !ok {
		return Binding{}, false
	}

	return *found, true
}

// HasContinuation reports whether seq is a strict prefix of a bound sequence.
func (b *Bindings) HasContinuation(seq Sequence) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.prefixes[seq.String()] > 0
}

// Named returns the binding registered under name.
func (b *Bindings) Named(name string) (Binding, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	found, ok := b.byName[name]
	if !ok {
		return Binding{}, false
	}

	return *found, true
}

// All returns a snapshot of every binding in registration order.
func (b *Bindings) All() []Binding {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Binding, 0, len(b.order))
	for _, binding := range b.order {
		copied := *binding
		copied.Keys = append([]Sequence(nil), binding.Keys...)
		out = append(out, copied)
	}

	return out
}

// Len returns the number of bound sequences.
func (b *Bindings) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.bySeq)
}

// Override rebinds a named action to a new set of sequences.
type Override struct {
	Action string   `yaml:"action"`
	Keys   []string `yaml:"keys"`
}

// Apply rebinds actions by name. Every override is validated against the
// resulting table before anything changes; on error the table is untouched.
func (b *Bindings) Apply(overrides []Override) error {
	if len(overrides) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	planned := make(map[*Binding][]Sequence, len(overrides))
	for _, o := range overrides {
		name := strings.TrimSpace(o.Action)
		if name == "" {
			return fmt.Errorf("keymap override: action is required")
		}
		target, ok := b.byName[name]
		if !ok {
			return fmt.Errorf("keymap override action=%q: unknown action", name)
		}
		if _, dup := planned[target]; dup {
			return fmt.Errorf("keymap override action=%q: duplicated override entry", name)
		}
		if len(o.Keys) == 0 {
			return fmt.Errorf("keymap override action=%q: keys are required", name)
		}
		seqs, err := parseAll(o.Keys)
		if err != nil {
			return fmt.Errorf("keymap override action=%q: %w", name, err)
		}
		planned[target] = seqs
	}

	seen := make(map[string]string)
	for _, binding := range b.order {
		seqs, ok := planned[binding]
		if !ok {
			seqs = binding.Keys
		}
		for _, seq := range seqs {
			key := seq.String()
			if prev, dup := seen[key]; dup && prev != binding.Name {
				return fmt.Errorf("keymap override: %q used by both %q and %q: %w", key, prev, binding.Name, ErrConflict)
			}
			seen[key] = binding.Name
		}
	}

	for target, seqs := range planned {
		target.Keys = seqs
	}
	b.rebuildLocked()

	return nil
}

// Export returns the current table as overrides, sorted by action name.
func (b *Bindings) Export() []Override {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Override, 0, len(b.order))
	for _, binding := range b.order {
		o := Override{Action: binding.Name}
		for _, seq := range binding.Keys {
			o.Keys = append(o.Keys, seq.String())
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })

	return out
}

// detachLocked removes seq from whichever binding holds it.
func (b *Bindings) detachLocked(seq Sequence) bool {
	owner, ok := b.bySeq[seq.String()]
	if !ok {
		return false
	}

	for i, existing := range owner.Keys {
		if existing.Equal(seq) {
			owner.Keys = append(owner.Keys[:i:i], owner.Keys[i+1:]...)
			break
		}
	}
	delete(b.bySeq, seq.String())

	return true
}

func (b *Bindings) rebuildLocked() {
	b.bySeq = make(map[string]*Binding, len(b.bySeq))
	b.prefixes = make(map[string]int, len(b.prefixes))

	for _, binding := range b.order {
		for _, seq := range binding.Keys {
			b.bySeq[seq.String()] = binding
			for i := 1; i < len(seq); i++ {
				b.prefixes[seq[:i].String()]++
			}
		}
	}
}

func parseAll(keys []string) ([]Sequence, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one key sequence is required")
	}

	seqs := make([]Sequence, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seq, err := ParseSequence(k)
		if err != nil {
			return nil, err
		}
		if seen[seq.String()] {
			continue
		}
		seen[seq.String()] = true
		seqs = append(seqs, seq)
	}

	return seqs, nil
}
