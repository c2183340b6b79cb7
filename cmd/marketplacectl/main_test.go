package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCreateAdmin_RequiresFlags(t *testing.T) {
	_, err := run("create-admin", "--email", "ops@example.com", "--password", "short")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--name is required")
	assert.Contains(t, err.Error(), "--password must be at least 8 characters")
}

func TestMigrateList(t *testing.T) {
	out, err := run("migrate", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "001_create_users.up.sql")
	assert.Contains(t, out, "005_create_reviews.up.sql")
}

func TestUnknownCommand(t *testing.T) {
	_, err := run("drop-everything")
	assert.Error(t, err)
}

func TestGenerateCatalog_Deterministic(t *testing.T) {
	a := generateCatalog(7, 40)
	b := generateCatalog(7, 40)
	require.Len(t, a, 40)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, generateCatalog(8, 40))

	perCategory := make(map[int]int)
	for _, p := range a {
		perCategory[p.Category]++
		assert.GreaterOrEqual(t, p.Price, int64(500))
		assert.Zero(t, p.Price%100)
		assert.NotEmpty(t, p.Name)
	}
	for i := range seedCategories {
		assert.Equal(t, 10, perCategory[i])
	}
}

func TestSeed_RejectsShortPassword(t *testing.T) {
	_, err := run("seed", "--seller-password", "short")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--seller-password")
}
