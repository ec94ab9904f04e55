package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrMissingCredential = errors.New("authentication token required")
	ErrInvalidCredential = errors.New("invalid authentication token")
	ErrForbidden         = errors.New("access to project denied")
)

// Identity is what a verified credential resolves to.
type Identity struct {
	UserID   int64
	Username string
}

type IAuthService interface {
	Authenticate(ctx context.Context, token, projectID string) (Identity, error)
}

type authService struct {
	secret []byte
	db     *sql.DB
}

func NewAuthService(secret string, db *sql.DB) IAuthService {
	return &authService{secret: []byte(secret), db: db}
}

const (
	userQ = `SELECT id, username FROM users WHERE username = $1 AND is_active = true`

	accessQ = `
	  SELECT EXISTS (
	    SELECT 1 FROM projects p
	     WHERE p.id = $1
	       AND (p.owner_id = $2
	            OR p.is_public
	            OR EXISTS (SELECT 1 FROM project_members m
	                        WHERE m.project_id = p.id AND m.user_id = $2)))`
)

// Authenticate verifies an HS256 access token whose subject is a username,
// then checks that the user may open the project.
func (svc *authService) Authenticate(ctx context.Context, token, projectID string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingCredential
	}
	username, err := svc.subject(token)
	if err != nil {
		zap.L().Debug("auth.token_rejected", zap.Error(err))
		return Identity{}, ErrInvalidCredential
	}

	var id Identity
	err = svc.db.QueryRowContext(ctx, userQ, username).Scan(&id.UserID, &id.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrInvalidCredential
	}
	if err != nil {
		return Identity{}, fmt.Errorf("load user: %w", err)
	}

	pid, err := strconv.ParseInt(projectID, 10, 64)
	if err != nil {
		return Identity{}, ErrForbidden
	}
	var allowed bool
	if err := svc.db.QueryRowContext(ctx, accessQ, pid, id.UserID).Scan(&allowed); err != nil {
		return Identity{}, fmt.Errorf("check project access: %w", err)
	}
	if !allowed {
		return Identity{}, ErrForbidden
	}
	return id, nil
}

func (svc *authService) subject(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return svc.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
