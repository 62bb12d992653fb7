package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManagedCache_NilIsSafeNoOp(t *testing.T) {
	t.Parallel()

	var c *ManagedCache
	_, ok := c.Get(context.Background(), "gen1")
	assert.False(t, ok)

	c.Set(context.Background(), "gen1", []Definition{{ID: "x"}})
	assert.NoError(t, c.Invalidate(context.Background()))
	assert.NoError(t, c.Close())
}

func TestNewManagedCache_DisabledReturnsNil(t *testing.T) {
	t.Parallel()

	c, err := NewManagedCache(ManagedCacheConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestLoadAllCached_NilCacheFallsBackToDirectLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSkillFile(t, dir, "skill.md", "---\nid: echo\nname: Echo\ndescription: echoes input\n---\nbody")

	r := NewRegistry()
	r.LoadAllCached(context.Background(), Dirs{Managed: dir}, EligibilityContext{}, nil, "gen1")

	d, ok := r.Get("echo")
	assert.True(t, ok)
	assert.Equal(t, SourceManaged, d.Source)
}
