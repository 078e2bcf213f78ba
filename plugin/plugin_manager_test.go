package plugin

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func fixed(id, name string, v Verdict) *Func {
	return &Func{
		PluginID:   id,
		PluginName: name,
		Desc:       name + " description",
		ProbeFunc: func(ctx context.Context, host string, port int) (Verdict, error) {
			return v, nil
		},
	}
}

func TestManager_RegisterResolve(t *testing.T) {
	m := NewManager()
	assert.Equal(t, 0, m.Count())

	require.NoError(t, m.Register(fixed("11213", "trace", Confirmed("x"))))
	assert.Equal(t, 1, m.Count())

	p, ok := m.Resolve("11213")
	require.True(t, ok)
	assert.Equal(t, "trace", p.Name())

	_, ok = m.Resolve(" 11213 ")
	assert.False(t, ok)

	_, ok = m.Resolve("99999")
	assert.False(t, ok)
}

func TestManager_RegisterInvalid(t *testing.T) {
	m := NewManager()
	assert.Error(t, m.Register(nil))
	assert.Error(t, m.Register(fixed("  ", "blank", Confirmed("x"))))
	assert.Equal(t, 0, m.Count())
}

func TestManager_DuplicateLastWins(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(fixed("57582", "first", Confirmed("x"))))
	require.NoError(t, m.Register(fixed("57582", "second", NotReproducible("y"))))

	assert.Equal(t, 1, m.Count())
	p, ok := m.Resolve("57582")
	require.True(t, ok)
	assert.Equal(t, "second", p.Name())
}

func TestManager_Remove(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(fixed("10114", "icmp", Confirmed("x"))))

	assert.True(t, m.Remove("10114"))
	assert.False(t, m.Remove("10114"))
	assert.Equal(t, 0, m.Count())
}

func TestManager_ListSorted(t *testing.T) {
	m := NewManager()
	for _, id := range []string{"201082", "11213", "10114", "zeta", "104743", "alpha", "57608"} {
		require.NoError(t, m.Register(fixed(id, "p"+id, Confirmed("x"))))
	}

	var ids []string
	for _, info := range m.List() {
		ids = append(ids, info.ID)
	}
	assert.Equal(t, []string{"10114", "11213", "57608", "104743", "201082", "alpha", "zeta"}, ids)

	first := m.List()[0]
	assert.Equal(t, "p10114", first.Name)
	assert.Equal(t, "p10114 description", first.Description)
}
