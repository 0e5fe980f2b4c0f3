package authentication

// keystring.go keeps the CLI's credentials in the OS keyring.
import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"conventionhub/internal/shared"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zalando/go-keyring"
)

const (
	serviceName = "notifyctl"
	tokenKey    = "auth_tokens"
)

var ErrNotLoggedIn = errors.New("not logged in, run `notifyctl auth login` first")

type StoredCredentials struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Expired reports whether the token is past its exp claim
func (c *StoredCredentials) Expired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.Unix() >= c.ExpiresAt
}

// FromToken reads the identity out of an access token. The signature is not
// checked here, the server does that on every request.
func FromToken(accessToken string) (*StoredCredentials, error) {
	claims := &shared.AuthClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}

	creds := &StoredCredentials{AccessToken: accessToken, UserID: claims.UserID, Role: claims.Role}
	if creds.UserID == "" {
		creds.UserID = claims.Subject
	}
	if creds.UserID == "" {
		return nil, errors.New("token carries no user id")
	}
	if claims.ExpiresAt != nil {
		creds.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return creds, nil
}

func StoreTokens(creds *StoredCredentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, tokenKey, string(data))
}

func GetTokens() (*StoredCredentials, error) {
	value, err := keyring.Get(serviceName, tokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, err
	}

	var creds StoredCredentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func DeleteTokens() error {
	err := keyring.Delete(serviceName, tokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
