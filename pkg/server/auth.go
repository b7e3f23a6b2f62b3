package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kochj23/webmush/pkg/gamedb"
)

var errBadCredentials = errors.New("invalid credentials")

// SetPassword hashes and stores a player's password.
func SetPassword(db *gamedb.Database, player gamedb.DBRef, password string) error {
	if len(password) < 3 {
		return fmt.Errorf("password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.SetPasswordHash(player, string(hash))
}

// CheckPassword verifies a password against a player's stored hash.
func CheckPassword(db *gamedb.Database, player gamedb.DBRef, password string) bool {
	hash := db.PasswordHash(player)
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Claims holds the JWT claims for an authenticated player session.
type Claims struct {
	PlayerRef  gamedb.DBRef `json:"player_ref"`
	PlayerName string       `json:"player_name"`
	jwt.RegisteredClaims
}

// AuthService issues and validates session tokens bound to player
// identity.
type AuthService struct {
	game   *Game
	jwtKey []byte
	expiry time.Duration
}

// NewAuthService creates an auth service. An empty secret gets a random
// 32-byte key, which invalidates sessions across restarts.
func NewAuthService(game *Game, jwtSecret string, expirySeconds int) *AuthService {
	var key []byte
	if jwtSecret != "" {
		key = []byte(jwtSecret)
	} else {
		key = make([]byte, 32)
		rand.Read(key)
	}
	expiry := 24 * time.Hour
	if expirySeconds > 0 {
		expiry = time.Duration(expirySeconds) * time.Second
	}
	return &AuthService{game: game, jwtKey: key, expiry: expiry}
}

// Login authenticates a player by name and password and returns a token.
func (a *AuthService) Login(name, password string) (string, gamedb.DBRef, error) {
	player := a.game.lookupPlayer(name)
	if player == gamedb.Nothing {
		return "", gamedb.Nothing, errBadCredentials
	}
	if !CheckPassword(a.game.DB, player, password) {
		return "", gamedb.Nothing, errBadCredentials
	}
	token, err := a.issue(player)
	return token, player, err
}

// CreatePlayer registers a new player and returns a token for them.
func (a *AuthService) CreatePlayer(name, password string) (string, gamedb.DBRef, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "#*;=,\"") {
		return "", gamedb.Nothing, fmt.Errorf("invalid player name")
	}
	if a.game.lookupPlayer(name) != gamedb.Nothing {
		return "", gamedb.Nothing, fmt.Errorf("name already taken")
	}
	player, err := a.game.DB.Create(gamedb.KindPlayer, name, gamedb.Nothing, a.game.StartingRoom())
	if err != nil {
		return "", gamedb.Nothing, err
	}
	if err := SetPassword(a.game.DB, player, password); err != nil {
		a.game.DB.Destroy(player)
		return "", gamedb.Nothing, err
	}
	a.game.DB.AddPennies(player, a.game.Conf.StartingMoney)
	a.game.SaveObject(player)

	token, err := a.issue(player)
	return token, player, err
}

func (a *AuthService) issue(player gamedb.DBRef) (string, error) {
	now := time.Now()
	claims := Claims{
		PlayerRef:  player,
		PlayerName: a.game.DB.Name(player),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("#%d", player),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			Issuer:    "webmush",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtKey)
}

// ValidateToken parses and validates a token string.
func (a *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if a.game.DB.Resolve(claims.PlayerRef) == gamedb.Nothing {
		return nil, fmt.Errorf("player no longer exists")
	}
	return claims, nil
}

// RefreshToken reissues a valid token with a fresh expiry.
func (a *AuthService) RefreshToken(tokenStr string) (string, error) {
	claims, err := a.ValidateToken(tokenStr)
	if err != nil {
		return "", err
	}
	return a.issue(claims.PlayerRef)
}

// GenerateJWTSecret returns a random hex secret suitable for the
// jwt_secret config key.
func GenerateJWTSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
