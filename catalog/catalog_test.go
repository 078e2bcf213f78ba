package catalog

import (
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	pm, err := New(Config{})
	require.NoError(t, err)

	var ids []string
	for _, info := range pm.List() {
		ids = append(ids, info.ID)
		assert.NotEmpty(t, info.Name, info.ID)
		assert.NotEmpty(t, info.Description, info.ID)
	}

	assert.Equal(t, []string{
		"10114", "11213", "15901", "42873", "45411", "51192", "57582",
		"57608", "104743", "142960", "161181", "193283", "201082",
	}, ids)
}

func TestPlugins_DeclareTimeouts(t *testing.T) {
	for _, p := range Plugins(Config{}) {
		tp, ok := p.(plugin.TimeoutProvider)
		require.True(t, ok, p.ID())
		assert.Greater(t, tp.Timeout(), time.Duration(0), p.ID())
	}
}

func TestPlugins_FreshInstances(t *testing.T) {
	a, b := Plugins(Config{}), Plugins(Config{})
	require.Len(t, b, len(a))
	for i := range a {
		assert.NotSame(t, a[i], b[i])
	}
}
