package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
)

// setupEnv points zooctl at a fresh SQLite file with cheap hashing
func setupEnv(t *testing.T) {
	t.Helper()

	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "zoo.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PASSWORD_MEMORY_KIB", "8192")
	t.Setenv("PASSWORD_ITERATIONS", "1")
	t.Setenv("PASSWORD_PARALLELISM", "1")
	t.Setenv("BOOTSTRAP_ADMIN_USERNAME", "admin")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "zoo123")

	t.Setenv(passwordEnv, "")
	require.NoError(t, os.Unsetenv(passwordEnv))
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	err := newRootCommand(strings.NewReader(stdin), &out).Execute(context.Background(), args)
	return out.String(), err
}

func TestExecute_UnknownCommand(t *testing.T) {
	_, err := run(t, "", "feed-the-lions")
	assert.EqualError(t, err, "unknown command: feed-the-lions")
}

func TestExecute_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"-h"}, {"--help"}} {
		out, err := run(t, "", args...)
		require.NoError(t, err)
		assert.Contains(t, out, "Usage: zooctl <command> [args]")
		assert.Contains(t, out, "  migrate ")
		assert.Contains(t, out, "  roles ")
	}
}

func TestRoles(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "roles")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"admin        *",
		"ticketing    animals:view enclosures:view reports:view ticket_types:* tickets:*",
		"zookeeper    animals:create animals:update animals:view enclosures:view feeding:* reports:view",
		"",
	}, "\n"), out)
}

func TestBootstrapLoginDashboard(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date")

	out, err = run(t, "", "bootstrap")
	require.NoError(t, err)
	assert.Contains(t, out, "Created admin admin")
	assert.Contains(t, out, "Created 3 default ticket types")

	out, err = run(t, "", "bootstrap")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to do")

	out, err = run(t, "zoo123\n", "login", "-u", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as admin (admin)")

	out, err = run(t, "zoo123\n", "dashboard", "-u", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Active users:   1")
	assert.Contains(t, out, "Revenue today:  0.00")
}

func TestLogin_WrongPassword(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "", "bootstrap")
	require.NoError(t, err)

	t.Setenv(passwordEnv, "not-it")
	_, err = run(t, "", "login", "-u", "admin")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = run(t, "", "login")
	assert.EqualError(t, err, "-u is required")
}

func TestBootstrap_MissingPassword(t *testing.T) {
	setupEnv(t)
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "")

	_, err := run(t, "", "bootstrap")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
