package keys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop() {}

func TestBindingsAddAndLookup(t *testing.T) {
	b := NewBindings()
	require.NoError(t, b.Add("g", noop))
	require.NoError(t, b.Add("gg", noop))
	require.NoError(t, b.Add("x", noop))

	binding, ok := b.Lookup(Sequence{"g"})
	require.True(t, ok)
	assert.Equal(t, "g", binding.Name)

	_, ok = b.Lookup(Sequence{"g", "g", "g"})
	assert.False(t, ok)

	assert.True(t, b.HasContinuation(Sequence{"g"}))
	assert.False(t, b.HasContinuation(Sequence{"g", "g"}))
	assert.False(t, b.HasContinuation(Sequence{"x"}))
	assert.Equal(t, 3, b.Len())
}

func TestBindingsValidation(t *testing.T) {
	b := NewBindings()

	assert.Error(t, b.Add("", noop))
	assert.Error(t, b.Add("<bad", noop))
	assert.Error(t, b.Add("a", nil))
	assert.Error(t, b.Bind(" ", "", noop, "a"))
	assert.Error(t, b.Bind("act", "", noop))
	assert.Zero(t, b.Len())
}

func TestBindingsReplaceSequence(t *testing.T) {
	b := NewBindings()
	calls := map[string]int{}

	require.NoError(t, b.Bind("first", "", func() { calls["first"]++ }, "a", "b"))
	require.NoError(t, b.Bind("second", "", func() { calls["second"]++ }, "a"))

	binding, ok := b.Lookup(Sequence{"a"})
	require.True(t, ok)
	assert.Equal(t, "second", binding.Name)
	binding.Action()
	assert.Equal(t, 1, calls["second"])

	first, ok := b.Named("first")
	require.True(t, ok)
	assert.Equal(t, []Sequence{{"b"}}, first.Keys)
}

func TestBindingsRebindName(t *testing.T) {
	b := NewBindings()
	require.NoError(t, b.Bind("quit", "exit", noop, "q"))
	require.NoError(t, b.Bind("quit", "exit", noop, "<escape>"))

	_, ok := b.Lookup(Sequence{"q"})
	assert.False(t, ok)
	_, ok = b.Lookup(Sequence{"escape"})
	assert.True(t, ok)
	assert.Len(t, b.All(), 1)
}

func TestBindingsRemove(t *testing.T) {
	b := NewBindings()
	require.NoError(t, b.Bind("delete_to_first", "", noop, "dgg"))
	require.NoError(t, b.Add("d", noop))

	assert.True(t, b.HasContinuation(Sequence{"d", "g"}))
	assert.True(t, b.Remove("dgg"))
	assert.False(t, b.Remove("dgg"))
	assert.False(t, b.Remove("<bad"))
	assert.False(t, b.HasContinuation(Sequence{"d"}))

	named, ok := b.Named("delete_to_first")
	require.True(t, ok)
	assert.Empty(t, named.Keys)
}

func TestBindingsUnbind(t *testing.T) {
	b := NewBindings()
	require.NoError(t, b.Bind("select_first", "", noop, "g", "<home>"))

	assert.True(t, b.Unbind("select_first"))
	assert.False(t, b.Unbind("select_first"))
	assert.Zero(t, b.Len())
	assert.Empty(t, b.All())
}

func TestBindingsAllIsSnapshot(t *testing.T) {
	b := NewBindings()
	require.NoError(t, b.Bind("a", "help a", noop, "a"))
	require.NoError(t, b.Bind("b", "help b", noop, "b"))

	all := b.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "help b", all[1].Help)

	all[0].Keys[0] = Sequence{"z"}
	_, ok := b.Lookup(Sequence{"a"})
	assert.True(t, ok)
}

func TestBindingsApply(t *testing.T) {
	newTable := func(t *testing.T) *Bindings {
		b := NewBindings()
		require.NoError(t, b.Bind("select_first", "", noop, "g"))
		require.NoError(t, b.Bind("select_last", "", noop, "G"))
		require.NoError(t, b.Bind("quit", "", noop, "q"))
		return b
	}

	t.Run("rebinds by name", func(t *testing.T) {
		b := newTable(t)
		err := b.Apply([]Override{{Action: "select_first", Keys: []string{"gg", "<home>"}}})
		require.NoError(t, err)

		_, ok := b.Lookup(Sequence{"g"})
		assert.False(t, ok)
		assert.True(t, b.HasContinuation(Sequence{"g"}))
		_, ok = b.Lookup(Sequence{"home"})
		assert.True(t, ok)
	})

	t.Run("swap keys between actions", func(t *testing.T) {
		b := newTable(t)
		err := b.Apply([]Override{
			{Action: "select_first", Keys: []string{"G"}},
			{Action: "select_last", Keys: []string{"g"}},
		})
		require.NoError(t, err)

		binding, ok := b.Lookup(Sequence{"G"})
		require.True(t, ok)
		assert.Equal(t, "select_first", binding.Name)
	})

	errorCases := []struct {
		name      string
		overrides []Override
		conflict  bool
	}{
		{"unknown action", []Override{{Action: "nope", Keys: []string{"x"}}}, false},
		{"missing action", []Override{{Keys: []string{"x"}}}, false},
		{"missing keys", []Override{{Action: "quit"}}, false},
		{"bad notation", []Override{{Action: "quit", Keys: []string{"<q"}}}, false},
		{"duplicate entry", []Override{
			{Action: "quit", Keys: []string{"Q"}},
			{Action: "quit", Keys: []string{"Z"}},
		}, false},
		{"conflict", []Override{{Action: "quit", Keys: []string{"g"}}}, true},
	}

	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTable(t)
			before := b.Export()

			err := b.Apply(tc.overrides)
			require.Error(t, err)
			assert.Equal(t, tc.conflict, errors.Is(err, ErrConflict))
			assert.Equal(t, before, b.Export())
		})
	}

	t.Run("empty is a no-op", func(t *testing.T) {
		b := newTable(t)
		assert.NoError(t, b.Apply(nil))
	})
}

func TestBindingsExport(t *testing.T) {
	b := NewBindings()
	require.NoError(t, b.Bind("quit", "", noop, "q", "<escape>"))
	require.NoError(t, b.Bind("add", "", noop, "a"))

	assert.Equal(t, []Override{
		{Action: "add", Keys: []string{"a"}},
		{Action: "quit", Keys: []string{"q", "<escape>"}},
	}, b.Export())
}
