// Package middleware provides request-scoped logging, tracing, metrics, identity and rate
// limiting for the HTTP layer.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"longform/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Token issuer and audience accepted by ParseIdentity.
const (
	TokenIssuer   = "longform-api"
	TokenAudience = "longform-client"
)

const currentUserLocal = "currentUser"

// Claims are the bearer token claims: sub carries the e-mail address.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var (
	ErrMissingToken = errors.New("authorization required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// IssueToken signs an HS256 bearer token for user.
func IssueToken(secret string, user models.CurrentUser, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: user.Name,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   models.NormalizeEmail(user.Email),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseIdentity validates tokenString and returns the identity it carries.
func ParseIdentity(secret, tokenString string) (*models.CurrentUser, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	email := models.NormalizeEmail(claims.Subject)
	if email == "" {
		return nil, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = models.RoleReader
	}

	return &models.CurrentUser{Email: email, Name: claims.Name, Role: role}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// SetCurrentUser stores the verified identity for later handlers and tags the request
// context so service logs carry the caller's e-mail.
func SetCurrentUser(c *fiber.Ctx, user *models.CurrentUser) {
	c.Locals(currentUserLocal, user)
	if user != nil {
		c.SetUserContext(context.WithValue(c.UserContext(), UserEmailKey, user.Email))
	}
}

// CurrentUser returns the verified identity of the request, or nil for anonymous callers.
func CurrentUser(c *fiber.Ctx) *models.CurrentUser {
	user, _ := c.Locals(currentUserLocal).(*models.CurrentUser)
	return user
}

// Authenticate resolves the bearer token, if any. With required set, a missing token is
// rejected; a present but invalid token is always rejected.
func Authenticate(secret string, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := BearerToken(c)
		if tokenString == "" {
			if c.Get(fiber.HeaderAuthorization) != "" {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid authorization header format"))
			}
			if required {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Authorization required"))
			}
			return c.Next()
		}

		user, err := ParseIdentity(secret, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		SetCurrentUser(c, user)
		return c.Next()
	}
}

// AdminRequired rejects callers whose verified role is not admin. Mount after Authenticate.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if !user.IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}
