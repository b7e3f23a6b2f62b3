package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochj23/webmush/pkg/gamedb"
)

func newAuthEnv(t *testing.T) (*Game, *AuthService) {
	t.Helper()
	g := NewGame(gamedb.NewDatabase(), nil, nil, nil)
	require.NoError(t, g.Bootstrap())
	return g, NewAuthService(g, "test-secret", 3600)
}

func TestCreatePlayerAndLogin(t *testing.T) {
	g, auth := newAuthEnv(t)

	token, player, err := auth.CreatePlayer("Ada", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "Ada", g.DB.Name(player))
	assert.Equal(t, g.StartingRoom(), g.DB.Location(player))
	assert.Equal(t, g.Conf.StartingMoney, g.DB.Pennies(player))

	loginToken, ref, err := auth.Login("ada", "hunter2")
	require.NoError(t, err, "login is case-insensitive on name")
	assert.Equal(t, player, ref)

	claims, err := auth.ValidateToken(loginToken)
	require.NoError(t, err)
	assert.Equal(t, player, claims.PlayerRef)
	assert.Equal(t, "Ada", claims.PlayerName)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, auth := newAuthEnv(t)
	_, _, err := auth.CreatePlayer("Ada", "hunter2")
	require.NoError(t, err)

	_, _, err = auth.Login("Ada", "wrong")
	assert.Error(t, err)
	_, _, err = auth.Login("Nobody", "hunter2")
	assert.Error(t, err)
}

func TestCreatePlayerValidation(t *testing.T) {
	_, auth := newAuthEnv(t)
	_, _, err := auth.CreatePlayer("Ada", "hunter2")
	require.NoError(t, err)

	_, _, err = auth.CreatePlayer("Ada", "other")
	assert.Error(t, err, "duplicate name")
	_, _, err = auth.CreatePlayer("ada", "other")
	assert.Error(t, err, "duplicate name, case folded")
	_, _, err = auth.CreatePlayer("", "hunter2")
	assert.Error(t, err, "empty name")
	_, _, err = auth.CreatePlayer("Bad;Name", "hunter2")
	assert.Error(t, err, "name with separator characters")
	_, _, err = auth.CreatePlayer("Bea", "xy")
	assert.Error(t, err, "password too short")
}

func TestShortPasswordLeavesNoPlayer(t *testing.T) {
	g, auth := newAuthEnv(t)
	_, _, err := auth.CreatePlayer("Bea", "xy")
	require.Error(t, err)
	assert.Equal(t, gamedb.Nothing, g.lookupPlayer("Bea"))
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	g, auth := newAuthEnv(t)
	token, _, err := auth.CreatePlayer("Ada", "hunter2")
	require.NoError(t, err)

	_, err = auth.ValidateToken(token + "x")
	assert.Error(t, err)
	_, err = auth.ValidateToken("not a token")
	assert.Error(t, err)

	other := NewAuthService(g, "different-secret", 3600)
	_, err = other.ValidateToken(token)
	assert.Error(t, err, "token signed with another key")
}

func TestValidateTokenRejectsDeletedPlayer(t *testing.T) {
	g, auth := newAuthEnv(t)
	token, player, err := auth.CreatePlayer("Ada", "hunter2")
	require.NoError(t, err)

	require.NoError(t, g.DB.Destroy(player))
	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	_, auth := newAuthEnv(t)
	token, player, err := auth.CreatePlayer("Ada", "hunter2")
	require.NoError(t, err)

	fresh, err := auth.RefreshToken(token)
	require.NoError(t, err)
	claims, err := auth.ValidateToken(fresh)
	require.NoError(t, err)
	assert.Equal(t, player, claims.PlayerRef)
}

func TestPasswordChangeCommand(t *testing.T) {
	g, auth := newAuthEnv(t)
	_, player, err := auth.CreatePlayer("Ada", "hunter2")
	require.NoError(t, err)

	g.DispatchCommand(player, "@password hunter2 = correct-horse")
	assert.True(t, CheckPassword(g.DB, player, "correct-horse"))
	assert.False(t, CheckPassword(g.DB, player, "hunter2"))

	g.DispatchCommand(player, "@password wrong = battery-staple")
	assert.True(t, CheckPassword(g.DB, player, "correct-horse"),
		"password changed without the old one")
}
