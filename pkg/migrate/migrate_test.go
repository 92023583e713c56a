package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsShippedMigrations(t *testing.T) {
	embedded, err := Validate(Embedded())
	require.NoError(t, err)
	onDisk, err := Validate(OnDisk(EmbeddedDir))
	require.NoError(t, err)
	require.Equal(t, onDisk, embedded)
	require.Equal(t, 6, embedded)
}

func TestValidateRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Validate(OnDisk(dir))
	require.ErrorContains(t, err, "no migrations found")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	_, err = Validate(OnDisk(dir))
	require.ErrorContains(t, err, "invalid migration filename")

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_missing_down.sql"), []byte("-- +goose Up\n"), 0o644))
	_, err = Validate(OnDisk(dir))
	require.ErrorContains(t, err, "missing")

	dir = t.TempDir()
	body := []byte("-- +goose Up\n-- +goose Down\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_a.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_b.sql"), body, 0o644))
	_, err = Validate(OnDisk(dir))
	require.ErrorContains(t, err, "duplicate migration version")
}

func TestSourceNames(t *testing.T) {
	require.Equal(t, "embedded:migrations", Embedded().String())
	require.Equal(t, "db/migrations", OnDisk("db/migrations").String())
	_, err := Validate(Source{})
	require.Error(t, err)
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	embedded, err := fs.Glob(Migrations, "migrations/*.sql")
	require.NoError(t, err)
	onDisk, err := filepath.Glob(filepath.Join(EmbeddedDir, "*.sql"))
	require.NoError(t, err)
	require.Len(t, embedded, len(onDisk))
	require.NotEmpty(t, embedded)
}

func TestAssignmentMigrationCarriesConcurrencyGuards(t *testing.T) {
	content := readMigration(t, "*_create_lead_assignments.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS lead_assignments",
		"ON lead_assignments (lead_id) WHERE status = 'assigned'",
		"ON lead_assignments (lead_id, broker_id) WHERE tier <> 'fallback'",
		"CHECK (tier NOT IN ('fixed', 'fallback') OR expires_at IS NULL)",
		"DROP TABLE IF EXISTS lead_assignments",
	}
	for _, sub := range checks {
		require.Contains(t, content, sub)
	}
}

func TestSettingsMigrationSeedsSingleton(t *testing.T) {
	content := readMigration(t, "*_create_router_settings.sql")
	require.Contains(t, content, "CHECK (id = 1)")
	require.Contains(t, content, "INSERT INTO router_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING")
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20260301090200")
	require.NoError(t, err)
	require.Equal(t, int64(20260301090200), v)

	_, err = ParseVersion("2026")
	require.Error(t, err)
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(EmbeddedDir, pattern))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}
