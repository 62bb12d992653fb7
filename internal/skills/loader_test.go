package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkillFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const greetMD = `---
id: greet
name: Greet
description: Says hello
triggers:
  keywords:
    - hello
    - hi
  intents:
    - greeting
tools:
  - say
security:
  approval_required: false
eligibility:
  os:
    - linux
    - darwin
---
Respond with a friendly greeting.
`

func TestLoadDir_ParsesMarkdownFrontMatter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSkillFile(t, dir, "skill.md", greetMD)

	defs, bad := LoadDir(dir, SourceBundled)
	require.Empty(t, bad)
	require.Len(t, defs, 1)

	d := defs[0]
	assert.Equal(t, "greet", d.ID)
	assert.Equal(t, "Greet", d.Name)
	assert.Equal(t, SourceBundled, d.Source)
	assert.ElementsMatch(t, []string{"hello", "hi"}, d.Triggers.Keywords)
	assert.ElementsMatch(t, []string{"greeting"}, d.Triggers.Intents)
	assert.ElementsMatch(t, []string{"linux", "darwin"}, d.Eligibility.OS)
	assert.Contains(t, d.Body, "friendly greeting")
}

func TestLoadDir_ParsesPureYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSkillFile(t, dir, "skill.yaml", `
id: deploy
name: Deploy
description: Deploys the service
eligibility:
  required_binaries:
    - kubectl
`)

	defs, bad := LoadDir(dir, SourceManaged)
	require.Empty(t, bad)
	require.Len(t, defs, 1)
	assert.Equal(t, "deploy", defs[0].ID)
	assert.Equal(t, []string{"kubectl"}, defs[0].Eligibility.RequiredBinaries)
}

func TestLoadDir_MissingDescriptionIsIneligible(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSkillFile(t, dir, "skill.md", "---\nid: bad\nname: Bad\n---\nbody\n")

	defs, bad := LoadDir(dir, SourceWorkspace)
	assert.Empty(t, defs)
	require.Len(t, bad, 1)
	assert.Equal(t, ReasonParse, bad[0].Kind)
}

func TestLoadDir_MalformedFrontMatterIsIneligible(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSkillFile(t, dir, "skill.md", "no front matter here")

	defs, bad := LoadDir(dir, SourceWorkspace)
	assert.Empty(t, defs)
	require.Len(t, bad, 1)
	assert.Equal(t, ReasonParse, bad[0].Kind)
}

func TestLoadDir_SkipsDotDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSkillFile(t, dir, filepath.Join(".git", "skill.md"), greetMD)
	writeSkillFile(t, dir, filepath.Join("sub", "skill.yml"), "id: nested\nname: Nested\ndescription: found\n")

	defs, bad := LoadDir(dir, SourceWorkspace)
	require.Empty(t, bad)
	require.Len(t, defs, 1)
	assert.Equal(t, "nested", defs[0].ID)
}

func TestLoadDir_AbsentDirectoryReturnsEmpty(t *testing.T) {
	t.Parallel()

	defs, bad := LoadDir(filepath.Join(t.TempDir(), "missing"), SourceExtra)
	assert.Empty(t, defs)
	assert.Empty(t, bad)
}

func TestLoadDir_BlankDirectoryIsNoop(t *testing.T) {
	t.Parallel()

	defs, bad := LoadDir("   ", SourceExtra)
	assert.Empty(t, defs)
	assert.Empty(t, bad)
}
