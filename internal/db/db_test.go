package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
)

func TestConnectAndMigrate_SQLite(t *testing.T) {
	gdb, err := Connect("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	u := models.User{
		Username:     "jdoe",
		Email:        "jdoe@example.com",
		Password:     "x",
		IsFreelancer: true,
		IsActive:     true,
		Skills:       []models.Skill{{Name: "Go", Slug: "go"}},
	}
	require.NoError(t, gdb.Create(&u).Error)
	assert.NotEqual(t, "", u.ID.String())

	var got models.User
	require.NoError(t, gdb.Preload("Skills").First(&got, "username = ?", "jdoe").Error)
	assert.Equal(t, u.ID, got.ID)
	assert.Len(t, got.Skills, 1)
	assert.False(t, got.DateJoined.IsZero())
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect("oracle", "x")
	assert.Error(t, err)
}

func TestMigrate_UsernameUniqueIgnoringCase(t *testing.T) {
	gdb, err := Connect("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	// running twice is fine
	require.NoError(t, Migrate(gdb))

	first := models.User{Username: "JDoe", Email: "a@example.com", Password: "x", IsActive: true}
	require.NoError(t, gdb.Create(&first).Error)

	dup := models.User{Username: "jdoe", Email: "b@example.com", Password: "x", IsActive: true}
	err = gdb.Create(&dup).Error
	require.Error(t, err)
	assert.Contains(t, strings.ToLower(err.Error()), "unique")
}
