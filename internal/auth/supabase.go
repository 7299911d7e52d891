package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/nutriplan/nutriplan/internal/config"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/samber/lo"
)

// Claims is the caller identity carried by a validated access token
type Claims struct {
	UserID  string
	Email   string
	Role    string
	IsAdmin bool
}

// Provider validates bearer tokens issued by the identity provider
type Provider interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

type supabaseAuth struct {
	secret     []byte
	adminRoles map[string]struct{}
}

// NewSupabaseAuth validates HS256 access tokens signed with the project JWT secret
func NewSupabaseAuth(cfg *config.Configuration) Provider {
	return &supabaseAuth{
		secret:     []byte(cfg.Auth.Secret),
		adminRoles: parseRoles(cfg.Auth.AdminRoles),
	}
}

func parseRoles(raw string) map[string]struct{} {
	roles := lo.FilterMap(strings.Split(raw, ","), func(r string, _ int) (string, bool) {
		r = strings.TrimSpace(r)
		return r, r != ""
	})
	return lo.SliceToMap(roles, func(r string) (string, struct{}) { return r, struct{}{} })
}

func (s *supabaseAuth) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ierr.NewError("auth secret not configured").
			WithHint("Authentication is not configured").
			Mark(ierr.ErrUnauthorized)
	}

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.NewError("unexpected signing method").
				WithHint("Unexpected signing method").
				WithReportableDetails(map[string]interface{}{
					"signing_method": token.Method.Alg(),
				}).
				Mark(ierr.ErrUnauthorized)
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Token parse error").
			Mark(ierr.ErrUnauthorized)
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return nil, ierr.NewError("invalid token claims").
			WithHint("Invalid token claims").
			Mark(ierr.ErrUnauthorized)
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return nil, ierr.NewError("token missing user ID").
			WithHint("Token missing user ID").
			Mark(ierr.ErrUnauthorized)
	}

	email, _ := claims["email"].(string)

	// app_metadata is only writable server side, so it wins over the top level role
	role, _ := claims["role"].(string)
	if appMetadata, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if r, ok := appMetadata["role"].(string); ok && r != "" {
			role = r
		}
	}
	_, isAdmin := s.adminRoles[role]

	return &Claims{
		UserID:  userID,
		Email:   strings.ToLower(email),
		Role:    role,
		IsAdmin: isAdmin,
	}, nil
}

// GenerateToken signs a short lived HS256 token for the given identity. It is
// used by operational tooling and tests that need to call the API.
func GenerateToken(secret, userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":          userID,
		"email":        email,
		"app_metadata": map[string]interface{}{"role": role},
		"iat":          now.Unix(),
		"exp":          now.Add(ttl).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to sign token").
			Mark(ierr.ErrSystem)
	}
	return signed, nil
}
