package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marvelalbum/catalog/catalogtest"
	"marvelalbum/db"
	"marvelalbum/models"
	"marvelalbum/utils"
)

const (
	aBomb      = 1017100
	spiderGirl = 1009009
	spiderMan  = 1009610
	hulk       = 1009351
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return conn
}

func register(t *testing.T, conn *gorm.DB, name string) *models.User {
	t.Helper()
	user, err := RegisterUser(context.Background(), conn, catalogtest.IDs(), 10, models.RegisterInput{
		Username: name,
		Email:    name + "@marvel.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return user
}

// give adds unlocked copies of a card to the user's album.
func give(t *testing.T, conn *gorm.DB, userID uint, cardID, quantity int) {
	t.Helper()
	require.NoError(t, addCards(conn, userID, cardID, quantity))
}

func entry(t *testing.T, conn *gorm.DB, userID uint, cardID int) models.AlbumEntry {
	t.Helper()
	var e models.AlbumEntry
	require.NoError(t, conn.Where("user_id = ? AND card_id = ?", userID, cardID).First(&e).Error)
	return e
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, status, utils.StatusOf(err), err.Error())
}
