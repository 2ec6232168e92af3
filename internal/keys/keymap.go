package keys

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Keymap is the on-disk form of a set of binding overrides:
//
//	bindings:
//	  - action: select_first
//	    keys: ["gg", "<home>"]
type Keymap struct {
	Bindings []Override `yaml:"bindings"`
}

// ParseKeymap decodes a keymap document. Unknown fields are rejected so a
// misspelled key does not silently do nothing.
func ParseKeymap(data []byte) (*Keymap, error) {
	var km Keymap

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&km); err != nil {
		if errors.Is(err, io.EOF) {
			return &km, nil
		}
		return nil, fmt.Errorf("parse keymap: %w", err)
	}

	return &km, nil
}

// LoadKeymap reads and decodes the keymap file at path.
func LoadKeymap(path string) (*Keymap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keymap: %w", err)
	}

	return ParseKeymap(data)
}

// ApplyKeymapFile loads path and applies it to bindings. The table is left
// unchanged when loading or validation fails.
func ApplyKeymapFile(bindings *Bindings, path string) error {
	km, err := LoadKeymap(path)
	if err != nil {
		return err
	}

	return bindings.Apply(km.Bindings)
}

// Marshal encodes the keymap as YAML.
func (k *Keymap) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(k); err != nil {
		return nil, fmt.Errorf("encode keymap: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode keymap: %w", err)
	}

	return buf.Bytes(), nil
}
