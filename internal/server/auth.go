package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/gravitas-games/craftd/internal/config"
	"github.com/gravitas-games/craftd/internal/pkg/logger"
	"github.com/gravitas-games/craftd/pkg/models"
)

var (
	ErrMissingToken  = errors.New("missing authentication token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrNotActivated  = errors.New("user not activated")
	ErrBanned        = errors.New("user is banned")
	ErrBlacklisted   = errors.New("token is blacklisted")
	errNoKeySource   = errors.New("jwt: neither public_key_file nor public_key_url configured")
	errKeyNotECDSA   = errors.New("public key is not ECDSA")
	errPEMNotDecoded = errors.New("failed to decode PEM block")
)

// Blacklist reports revoked users.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, userID string) (bool, error)
}

// RedisBlacklist checks for a key prefix+userID written by the login server.
type RedisBlacklist struct {
	client *redis.Client
	prefix string
}

// NewRedisBlacklist creates a blacklist backed by client.
func NewRedisBlacklist(client *redis.Client, prefix string) *RedisBlacklist {
	return &RedisBlacklist{client: client, prefix: prefix}
}

// IsBlacklisted implements Blacklist.
func (b *RedisBlacklist) IsBlacklisted(ctx context.Context, userID string) (bool, error) {
	n, err := b.client.Exists(ctx, b.prefix+userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// JWTValidator handles JWT token validation
type JWTValidator struct {
	config    *config.Config
	publicKey *ecdsa.PublicKey
	keyMu     sync.RWMutex
	blacklist Blacklist
	client    *http.Client
	log       *logger.Logger
}

// Claims represents JWT token claims from the login server
type Claims struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	UserType    string `json:"user_type"`
	AuthMethod  string `json:"auth_method"`
	Permissions int64  `json:"permissions"`
	Activated   int64  `json:"activated"`
	jwt.RegisteredClaims
}

// NewJWTValidator creates a validator and loads the public key from
// jwt.public_key_file, or from jwt.public_key_url when no file is set.
// blacklist may be nil.
func NewJWTValidator(cfg *config.Config, blacklist Blacklist, l *logger.Logger) (*JWTValidator, error) {
	v := newValidator(cfg, blacklist, l)
	if err := v.RefreshPublicKey(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load public key: %w", err)
	}
	v.log.Info("JWT validator initialized")
	return v, nil
}

// NewJWTValidatorWithKey creates a validator with a fixed key.
func NewJWTValidatorWithKey(cfg *config.Config, key *ecdsa.PublicKey, blacklist Blacklist, l *logger.Logger) *JWTValidator {
	v := newValidator(cfg, blacklist, l)
	v.publicKey = key
	return v
}

func newValidator(cfg *config.Config, blacklist Blacklist, l *logger.Logger) *JWTValidator {
	if l == nil {
		l = logger.Nop()
	}
	return &JWTValidator{
		config:    cfg,
		blacklist: blacklist,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       l.Named("auth"),
	}
}

// RefreshPublicKey reloads the public key from its configured source
func (v *JWTValidator) RefreshPublicKey(ctx context.Context) error {
	var (
		keyData []byte
		err     error
	)
	switch {
	case v.config.JWT.PublicKeyFile != "":
		keyData, err = os.ReadFile(v.config.JWT.PublicKeyFile)
	case v.config.JWT.PublicKeyURL != "":
		keyData, err = v.fetchPublicKey(ctx)
	default:
		return errNoKeySource
	}
	if err != nil {
		return err
	}

	key, err := parsePublicKey(keyData)
	if err != nil {
		return err
	}

	v.keyMu.Lock()
	v.publicKey = key
	v.keyMu.Unlock()

	v.log.Info("public key refreshed")
	return nil
}

func (v *JWTValidator) fetchPublicKey(ctx context.Context) ([]byte, error) {
	url := v.config.JWT.PublicKeyURL
	v.log.Info("fetching public key", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch public key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("public key endpoint returned status %d", resp.StatusCode)
	}

	keyData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	return keyData, nil
}

func parsePublicKey(keyData []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errPEMNotDecoded
	}

	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	ecdsaKey, ok := pubKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, errKeyNotECDSA
	}
	return ecdsaKey, nil
}

// Run refreshes a URL-sourced key periodically until ctx is done. Keys read
// from a file are loaded once.
func (v *JWTValidator) Run(ctx context.Context) {
	if v.config.JWT.PublicKeyURL == "" || v.config.JWT.PublicKeyFile != "" {
		return
	}
	refreshInterval := time.Duration(v.config.JWT.PublicKeyRefreshHrs) * time.Hour
	if refreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := v.RefreshPublicKey(ctx); err != nil {
				v.log.Error("failed to refresh public key", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// ValidateToken validates a JWT token and returns player information
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*models.Player, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		v.keyMu.RLock()
		defer v.keyMu.RUnlock()
		if v.publicKey == nil {
			return nil, errNoKeySource
		}
		return v.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	if claims.Issuer != v.config.JWT.Issuer {
		return nil, fmt.Errorf("%w: expected issuer %s, got %s", ErrInvalidToken, v.config.JWT.Issuer, claims.Issuer)
	}

	switch claims.Activated {
	case 0:
		return nil, ErrNotActivated
	case -1:
		return nil, ErrBanned
	}

	userID := strconv.FormatInt(claims.UserID, 10)
	if v.blacklist != nil {
		listed, err := v.blacklist.IsBlacklisted(ctx, userID)
		if err != nil {
			// Redis being down must not lock everyone out.
			v.log.Warn("failed to check blacklist", zap.String("user", userID), zap.Error(err))
		} else if listed {
			return nil, ErrBlacklisted
		}
	}

	return &models.Player{
		ID:          userID,
		Username:    claims.Username,
		Email:       claims.Email,
		Permissions: claims.Permissions,
		Activated:   claims.Activated,
		AuthMethod:  claims.AuthMethod,
	}, nil
}

// extractTokenFromHeader extracts the JWT from the Sec-WebSocket-Protocol
// header ("access_token, <token>"), the Authorization header or the token
// query parameter, in that order.
func extractTokenFromHeader(r *http.Request) string {
	if protocols := r.Header.Get("Sec-WebSocket-Protocol"); protocols != "" {
		parts := strings.Split(protocols, ",")
		if len(parts) == 2 && strings.TrimSpace(parts[0]) == accessTokenProtocol {
			return strings.TrimSpace(parts[1])
		}
	}

	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return token
	}

	return r.URL.Query().Get("token")
}
