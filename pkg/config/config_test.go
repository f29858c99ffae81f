package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "crc", c.GetString("Identity.Hash"))
	assert.Equal(t, int64(32768), c.GetInt64("MMap.Larger.Than"))
	assert.Equal(t, 6, c.GetInt("Shop.Time.Precision"))
	assert.Equal(t, 0, c.GetInt("Strict.Error"))
	assert.Equal(t, "STD", c.GetString("Verbosity"))
}

func TestLoadReadsProjectLocalProperties(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".ao"), 0o755))
	body := "Project.Name = widget\nShop.Time.Precision = 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ao", "properties"), []byte(body), 0o644))

	c, err := Load(WithProjectDir(dir))
	require.NoError(t, err)
	assert.Equal(t, "widget", c.GetString("Project.Name"))
	assert.Equal(t, 3, c.GetInt("Shop.Time.Precision"))
}

func TestEnvOverridesFileAndDefault(t *testing.T) {
	t.Setenv("_AO_PROJECT_NAME", "from-env")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.GetString("Project.Name"))
}

func TestSetOverridesEverything(t *testing.T) {
	t.Setenv("_AO_PROJECT_NAME", "from-env")
	c, err := Load()
	require.NoError(t, err)
	c.Set("Project.Name", "from-flag")
	assert.Equal(t, "from-flag", c.GetString("Project.Name"))
}

func TestSubstituteExpandsKnownPropertiesAndLeavesUnknownTokensAlone(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	c.Set("Project.Name", "widget")

	got := c.Substitute("building ${Project.Name} at ${Not.A.Real.Property}")
	assert.Equal(t, "building widget at ${Not.A.Real.Property}", got)
}

func TestUnknownReportsUnrecognizedKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".ao"), 0o755))
	body := "Project.Name = widget\nTotally.Bogus.Property = 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ao", "properties"), []byte(body), 0o644))

	c, err := Load(WithProjectDir(dir))
	require.NoError(t, err)

	unknown := c.Unknown(KnownSet())
	assert.Contains(t, unknown, "totally.bogus.property")
	assert.NotContains(t, unknown, "project.name")
}
