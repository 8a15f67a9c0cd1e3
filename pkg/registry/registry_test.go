package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseRegistry_RegisterAndGet(t *testing.T) {
	r := NewBaseRegistry[string]()

	require.NoError(t, r.Register("a", "alpha"))

	item, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", item)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestBaseRegistry_RejectsDuplicates(t *testing.T) {
	r := NewBaseRegistry[int]()

	require.NoError(t, r.Register("x", 1))
	assert.Error(t, r.Register("x", 2))
	assert.Error(t, r.Register("", 3))
}

func TestBaseRegistry_RemoveAndCount(t *testing.T) {
	r := NewBaseRegistry[int]()
	_ = r.Register("a", 1)
	_ = r.Register("b", 2)

	assert.Equal(t, 2, r.Count())

	require.NoError(t, r.Remove("a"))
	assert.Error(t, r.Remove("a"))
	assert.Equal(t, 1, r.Count())

	r.Clear()
	assert.Equal(t, 0, r.Count())
}

type fakeStore struct{ name string }

func TestResolve_LayerOrder(t *testing.T) {
	SetProcessDefaults(nil)
	t.Cleanup(func() { SetProcessDefaults(nil) })

	processSet := NewAdapterSet()
	processSet.Register(CapVectorStore, &fakeStore{name: "process"})
	SetProcessDefaults(processSet)

	options := NewAdapterSet()
	options.Register(CapVectorStore, &fakeStore{name: "options"})

	override := options.With(CapVectorStore, &fakeStore{name: "override"})

	// Override layer wins.
	got, err := Resolve[*fakeStore](CapVectorStore, override, options)
	require.NoError(t, err)
	assert.Equal(t, "override", got.name)

	// Without override, options win.
	got, err = Resolve[*fakeStore](CapVectorStore, nil, options)
	require.NoError(t, err)
	assert.Equal(t, "options", got.name)

	// Bare resolution falls to process defaults.
	got, err = Resolve[*fakeStore](CapVectorStore)
	require.NoError(t, err)
	assert.Equal(t, "process", got.name)
}

func TestResolve_NoAdapter(t *testing.T) {
	SetProcessDefaults(nil)
	t.Cleanup(func() { SetProcessDefaults(nil) })

	_, err := Resolve[*fakeStore](CapGraphStore)
	assert.ErrorIs(t, err, ErrNoAdapter)
}

func TestResolve_WrongTypeIsError(t *testing.T) {
	SetProcessDefaults(nil)
	t.Cleanup(func() { SetProcessDefaults(nil) })

	set := NewAdapterSet()
	set.Register(CapReranker, "not a store")

	_, err := Resolve[*fakeStore](CapReranker, set)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoAdapter)
}

func TestAdapterSet_WithDoesNotMutate(t *testing.T) {
	base := NewAdapterSet()
	base.Register(CapLLM, "base-llm")

	derived := base.With(CapLLM, "derived-llm")

	impl, ok := base.Lookup(CapLLM)
	require.True(t, ok)
	assert.Equal(t, "base-llm", impl)

	impl, ok = derived.Lookup(CapLLM)
	require.True(t, ok)
	assert.Equal(t, "derived-llm", impl)
}
