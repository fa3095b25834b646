package directory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Aidin1998/tradebook/pkg/models"
)

func newDirectory(t *testing.T) (*Service, *models.User) {
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	user := &models.User{LoginID: "TJones", UserType: "trader", Active: true}
	require.NoError(t, db.Create(user).Error)

	return NewService(zaptest.NewLogger(t), db), user
}

func TestResolvePrefersNumericID(t *testing.T) {
	svc, user := newDirectory(t)

	found, err := svc.Resolve(context.Background(), fmt.Sprintf("%d", user.ID))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
}

func TestResolveFallsBackToLoginCaseInsensitively(t *testing.T) {
	svc, user := newDirectory(t)

	for _, login := range []string{"tjones", "TJONES", "TJones"} {
		found, err := svc.Resolve(context.Background(), login)
		require.NoError(t, err)
		require.NotNil(t, found, login)
		assert.Equal(t, user.ID, found.ID, login)
	}
}

func TestResolveUnknownReturnsNil(t *testing.T) {
	svc, _ := newDirectory(t)

	found, err := svc.Resolve(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = svc.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRoleNormalizesCase(t *testing.T) {
	svc, user := newDirectory(t)

	role, ok := svc.Role(user)
	require.True(t, ok)
	assert.Equal(t, models.RoleTrader, role)

	_, ok = svc.Role(&models.User{})
	assert.False(t, ok)

	_, ok = svc.Role(nil)
	assert.False(t, ok)
}
