package middleware

import (
	"net/http"
	"strings"
	"time"

	"agriloan/internal/domain/actor"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const actorKey = "actor"

// Claims carry the caller identity. Credentials are verified upstream; this
// service only decodes the signed token it is handed.
type Claims struct {
	Role       string `json:"role"`
	DistrictID string `json:"district_id,omitempty"`
	jwt.RegisteredClaims
}

type TokenVerifier struct {
	key []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{key: []byte(secret)}
}

// Issue signs an HS256 token for a. Used by tooling and tests.
func (v *TokenVerifier) Issue(a actor.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:       string(a.Role),
		DistrictID: a.DistrictID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return tok.SignedString(v.key)
}

func (v *TokenVerifier) Verify(raw string) (actor.Actor, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return actor.Actor{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return actor.Actor{}, jwt.ErrTokenInvalidClaims
	}
	role := actor.Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return actor.Actor{}, jwt.ErrTokenInvalidClaims
	}
	return actor.Actor{ID: claims.Subject, Role: role, DistrictID: claims.DistrictID}, nil
}

// AuthMiddleware resolves the bearer token into an actor.Actor on the context.
func AuthMiddleware(v *TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}
			a, err := v.Verify(strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}
			SetActor(c, a)
			return next(c)
		}
	}
}

func SetActor(c echo.Context, a actor.Actor) { c.Set(actorKey, a) }

func ActorFrom(c echo.Context) (actor.Actor, bool) {
	a, ok := c.Get(actorKey).(actor.Actor)
	return a, ok
}
