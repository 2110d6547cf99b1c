package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/KevinKickass/airmedia-bridge/internal/config"
	"go.uber.org/zap"
)

type Permission string

const (
	PermOperator   Permission = "operator"
	PermTechnician Permission = "technician"
	PermAdmin      Permission = "admin"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService authenticates the API operators listed in the config.
type AuthService struct {
	users          map[string]config.UserConfig
	jwtHandler     *JWTHandler
	passwordHasher *PasswordHasher
	logger         *zap.Logger
}

func NewAuthService(cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}

	users := make(map[string]config.UserConfig, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Username] = u
	}

	if !cfg.IsProductionReady() {
		logger.Warn("JWT secret is not production ready", zap.String("env", cfg.JWTSecretEnv))
	}

	return &AuthService{
		users:          users,
		jwtHandler:     NewJWTHandler(cfg.GetJWTSecret(), cfg.AccessTokenTTL),
		passwordHasher: NewPasswordHasher(),
		logger:         logger,
	}
}

// TokenTTL is the lifetime of the tokens LoginUser hands out.
func (a *AuthService) TokenTTL() int {
	return int(a.jwtHandler.TTL().Seconds())
}

// LoginUser checks username and password and returns an access token.
func (a *AuthService) LoginUser(ctx context.Context, username, password, ipAddress string) (string, error) {
	user, ok := a.users[username]
	if !ok {
		a.logger.Info("Login failed", zap.String("username", username), zap.String("ip", ipAddress), zap.String("reason", "unknown user"))
		return "", ErrInvalidCredentials
	}

	valid, err := a.passwordHasher.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		a.logger.Error("Stored password hash is unusable", zap.String("username", username), zap.Error(err))
		return "", ErrInvalidCredentials
	}
	if !valid {
		a.logger.Info("Login failed", zap.String("username", username), zap.String("ip", ipAddress), zap.String("reason", "invalid password"))
		return "", ErrInvalidCredentials
	}

	token, err := a.jwtHandler.GenerateAccessToken(user.Username, user.Role)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	a.logger.Info("Login succeeded", zap.String("username", username), zap.String("ip", ipAddress))
	return token, nil
}

// ValidateToken returns the permissions granted by an access token.
func (a *AuthService) ValidateToken(token string) ([]Permission, error) {
	claims, err := a.jwtHandler.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return roleToPermissions(claims.Role), nil
}

func roleToPermissions(role string) []Permission {
	switch role {
	case "admin":
		return []Permission{PermOperator, PermTechnician, PermAdmin}
	case "technician":
		return []Permission{PermOperator, PermTechnician}
	default:
		return []Permission{PermOperator}
	}
}
