// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long issued tokens live; 0 means no exp claim.
	tokenTTL time.Duration
)

// ParseTokenExpireTime turns a TOKEN_EXPIRE_TIME value into a TTL.
// "never", "0" and "" mean tokens do not expire.
func ParseTokenExpireTime(v string) (time.Duration, error) {
	if v == "never" || v == "0" || v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// Init generates a fresh ed25519 key pair at runtime and sets the token
// expiration. Tokens signed before a restart stop verifying.
func Init(expire string) error {
	ttl, err := ParseTokenExpireTime(expire)
	if err != nil {
		return err
	}
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	tokenTTL = ttl
	return nil
}

// InitFromPath reads ed25519 private/public keys from file and sets the token expiration.
func InitFromPath(privatePath, publicPath, expire string) error {
	ttl, err := ParseTokenExpireTime(expire)
	if err != nil {
		return err
	}
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("key files must hold raw ed25519 keys")
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	tokenTTL = ttl
	return nil
}

// RoleOperator is the "role" claim of tournament organizers. Only they may
// change allocations, credentials and lobby status or see unpublished rooms.
const RoleOperator = "operator"

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID   uuid.UUID
	Operator bool
}

// CreateJWT creates a signed JWT token with "sub" = userID.
func CreateJWT(userID uuid.UUID) (string, error) {
	return signToken(userID, "")
}

// CreateOperatorJWT is CreateJWT with the operator role claim.
func CreateOperatorJWT(userID uuid.UUID) (string, error) {
	return signToken(userID, RoleOperator)
}

func signToken(userID uuid.UUID, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": time.Now().Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// ParseJWT verifies a JWT string and returns the identity it carries.
func ParseJWT(tokenString string) (Identity, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return Identity{}, fmt.Errorf("invalid token")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("missing sub in jwt")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid user id format in token: %w", err)
	}
	role, _ := claims["role"].(string)
	return Identity{UserID: userID, Operator: role == RoleOperator}, nil
}

// AuthenticateJWT verifies a JWT string and returns the user id in "sub".
func AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	id, err := ParseJWT(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	return id.UserID, nil
}
