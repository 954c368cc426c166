package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing authorization token")
)

// Claims holds the JWT payload. Tokens are issued by the game server; Games
// lists the games whose state the bearer may query.
type Claims struct {
	UserID string   `json:"user_id"`
	Games  []string `json:"games,omitempty"`
	Admin  bool     `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// CanAccess reports whether the bearer may read or adjudicate gameID.
func (c *Claims) CanAccess(gameID string) bool {
	return c != nil && (c.Admin || slices.Contains(c.Games, gameID))
}

// JWTManager validates tokens and, for tools and tests, issues them.
type JWTManager struct {
	secret []byte
	expiry time.Duration
}

// NewJWTManager creates a JWTManager with the given secret.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		expiry: 15 * time.Minute,
	}
}

// Issue signs a short-lived token for userID scoped to games.
func (m *JWTManager) Issue(userID string, games ...string) (string, error) {
	return m.sign(&Claims{UserID: userID, Games: games})
}

// IssueAdmin signs a short-lived token valid for every game.
func (m *JWTManager) IssueAdmin(userID string) (string, error) {
	return m.sign(&Claims{UserID: userID, Admin: true})
}

func (m *JWTManager) sign(claims *Claims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		IssuedAt:  jwt.NewNumericDate(now),
		Subject:   claims.UserID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT string, returning the claims.
func (m *JWTManager) ValidateToken(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
