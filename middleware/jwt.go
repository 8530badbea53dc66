package middleware

import (
	"fmt"
	"strings"
	"time"

	"certportal/apperror"
	"certportal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const actorKey = "actor"

// TokenCookie is the cookie login sets alongside the bearer token.
const TokenCookie = "token"

type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *JWTManager) TTL() time.Duration { return m.ttl }

// Issue generates a JWT token for the user
func (m *JWTManager) Issue(u *models.User) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"userId": u.ID,
		"role":   u.Role,
		"email":  u.Email,
		"iat":    now.Unix(),
		"exp":    now.Add(m.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse validates tokenString and returns the identity it carries.
func (m *JWTManager) Parse(tokenString string) (models.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Actor{}, apperror.Unauthorized("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Actor{}, apperror.Unauthorized("Invalid token payload")
	}
	userID, _ := claims["userId"].(string)
	role, _ := claims["role"].(string)
	if userID == "" || role == "" {
		return models.Actor{}, apperror.Unauthorized("Invalid token payload")
	}
	return models.Actor{UserID: userID, Role: role}, nil
}

// Middleware checks for a valid JWT in the Authorization header or the
// token cookie and stores the actor in the request context.
func (m *JWTManager) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(TokenCookie)
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return Fail(c, apperror.Unauthorized("Invalid Authorization header format"))
			}
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if tokenString == "" {
			return Fail(c, apperror.Unauthorized("Missing or invalid Authorization header"))
		}

		actor, err := m.Parse(tokenString)
		if err != nil {
			return Fail(c, err)
		}
		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// ActorFrom returns the identity set by Middleware, or the zero Actor.
func ActorFrom(c *fiber.Ctx) models.Actor {
	actor, _ := c.Locals(actorKey).(models.Actor)
	return actor
}
