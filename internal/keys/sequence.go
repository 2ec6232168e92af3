// Package keys turns a stream of key symbols into fired actions.
//
// A binding maps a key sequence such as "gg" or "d<escape>" to an action. The
// Engine accumulates pressed keys in a pending buffer and resolves the buffer
// against the bindings. When the buffer is both a complete binding and the
// start of a longer one, the engine waits for a debounce window before firing
// the shorter binding.
package keys

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Key is a single key symbol: either one character ("g", "G", "1") or a
// named key ("escape", "space", "ctrl+w").
type Key string

// Named reports whether k is a named key rather than a single character.
func (k Key) Named() bool {
	return utf8.RuneCountInString(string(k)) > 1
}

// String renders k in sequence notation.
func (k Key) String() string {
	switch {
	case k == "<":
		return "<lt>"
	case k.Named():
		mods, base := splitModifiers(string(k))
		switch base {
		case "<":
			base = "lt"
		case ">":
			base = "gt"
		}
		return "<" + mods + base + ">"
	default:
		return string(k)
	}
}

// NormalizeKey canonicalizes a key name. Single upper-case letters are
// preserved so "g" and "G" stay distinct.
func NormalizeKey(name string) Key {
	if name == " " {
		return "space"
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	if utf8.RuneCountInString(trimmed) == 1 {
		return Key(trimmed)
	}

	s := strings.ToLower(trimmed)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "control+", "ctrl+")
	s = strings.ReplaceAll(s, "ctl+", "ctrl+")
	s = strings.ReplaceAll(s, "option+", "alt+")
	s = strings.ReplaceAll(s, "meta+", "alt+")

	mods, base := splitModifiers(s)
	switch base {
	case "esc":
		base = "escape"
	case "return", "ret", "cr":
		base = "enter"
	case "spacebar":
		base = "space"
	case "lt":
		base = "<"
	case "gt":
		base = ">"
	case "bs":
		base = "backspace"
	case "del":
		base = "delete"
	}

	return Key(mods + base)
}

// splitModifiers separates a leading run of "ctrl+", "alt+" and "shift+"
// from the key they modify. A trailing "+" is the plus key itself.
func splitModifiers(s string) (string, string) {
	var mods strings.Builder
	for {
		matched := false
		for _, m := range []string{"ctrl+", "alt+", "shift+"} {
			if strings.HasPrefix(s, m) && len(s) > len(m) {
				mods.WriteString(m)
				s = s[len(m):]
				matched = true
			}
		}
		if !matched {
			return mods.String(), s
		}
	}
}

// WithModifiers applies modifier flags to a base key. ctrl and alt apply to
// any key; shift only to named keys, since characters arrive already cased.
func WithModifiers(base Key, ctrl, alt, shift bool) Key {
	if base == "" {
		return base
	}

	var prefix string
	if ctrl {
		prefix += "ctrl+"
	}
	if alt {
		prefix += "alt+"
	}
	if shift && base.Named() {
		prefix += "shift+"
	}

	return NormalizeKey(prefix + string(base))
}

// Sequence is an ordered list of key symbols.
type Sequence []Key

// ParseSequence reads sequence notation. Characters stand for themselves,
// named keys are written in angle brackets ("<escape>", "<ctrl+w>") and a
// literal "<" is written "<lt>".
func ParseSequence(text string) (Sequence, error) {
	if text == "" {
		return nil, fmt.Errorf("empty key sequence")
	}

	var seq Sequence
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && size <= 1 {
			return nil, fmt.Errorf("invalid UTF-8 in key sequence %q", text)
		}

		if r != '<' {
			seq = append(seq, Key(text[i:i+size]))
			i += size
			continue
		}

		end := strings.IndexByte(text[i+1:], '>')
		if end < 0 {
			return nil, fmt.Errorf("unterminated named key in %q", text)
		}
		name := text[i+1 : i+1+end]
		key := NormalizeKey(name)
		if key == "" {
			return nil, fmt.Errorf("empty named key in %q", text)
		}
		seq = append(seq, key)
		i += end + 2
	}

	return seq, nil
}

// MustParseSequence is like ParseSequence but panics on error. It is meant
// for sequences written in source code.
func MustParseSequence(text string) Sequence {
	seq, err := ParseSequence(text)
	if err != nil {
		panic(err)
	}

	return seq
}

// String renders s in sequence notation. ParseSequence(s.String()) yields s.
func (s Sequence) String() string {
	var b strings.Builder
	for _, k := range s {
		b.WriteString(k.String())
	}

	return b.String()
}

// Equal reports whether s and other hold the same keys in the same order.
func (s Sequence) Equal(other Sequence) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}

	return true
}

// HasPrefix reports whether prefix is a (not necessarily strict) prefix of s.
func (s Sequence) HasPrefix(prefix Sequence) bool {
	return len(prefix) <= len(s) && s[:len(prefix)].Equal(prefix)
}
