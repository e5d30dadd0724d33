package httpapi

import (
	"errors"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"kasirpos/internal/domain"
)

// AuthManager issues and verifies the HS256 access tokens the API uses.
// Credential checks live in the service layer; this only deals in tokens.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
}

type posClaims struct {
	jwtlib.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// Issue signs a token for the given account. The subject is the numeric
// user id; username and role ride along as custom claims.
func (a *AuthManager) Issue(account domain.UserAccount) (domain.LoginResponse, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	claims := posClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "kasirpos",
		},
		Username: account.Username,
		Role:     string(account.Role),
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: signed,
		Username:    account.Username,
		Role:        string(account.Role),
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID < 1 {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return domain.Actor{}, errors.New("invalid token role")
	}
	username := strings.TrimSpace(claims.Username)
	if username == "" {
		return domain.Actor{}, errors.New("invalid token username")
	}
	return domain.Actor{UserID: userID, Username: username, Role: role}, nil
}
