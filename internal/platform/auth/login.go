package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// User is an account allowed to sign in.
type User struct {
	Username     string
	Role         string
	PasswordHash []byte
}

// DefaultAccounts are the built-in clinic logins, keyed by username with
// the plain password as value. The username doubles as the role.
var DefaultAccounts = map[string]string{
	RoleAdmin:  "admin123",
	RoleDoctor: "doctor123",
	RoleStaff:  "staff123",
}

// Authenticator checks credentials against a fixed set of bcrypt-hashed
// accounts and issues signed tokens.
type Authenticator struct {
	users map[string]User
	cfg   JWTConfig
	ttl   time.Duration
	now   func() time.Time
	dummy []byte
}

// NewAuthenticator hashes the given accounts at the given bcrypt cost.
func NewAuthenticator(accounts map[string]string, cost int, cfg JWTConfig, ttl time.Duration) (*Authenticator, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	a := &Authenticator{
		users: make(map[string]User, len(accounts)),
		cfg:   cfg,
		ttl:   ttl,
		now:   time.Now,
	}
	for username, password := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", username, err)
		}
		a.users[username] = User{Username: username, Role: username, PasswordHash: hash}
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("unused"), cost)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	a.dummy = dummy
	return a, nil
}

// Authenticate returns the matching user, or false when the username is
// unknown or the password does not match.
func (a *Authenticator) Authenticate(username, password string) (User, bool) {
	u, ok := a.users[username]
	if !ok {
		// Compare anyway so unknown usernames take as long as bad passwords.
		_ = bcrypt.CompareHashAndPassword(a.dummy, []byte(password))
		return User{}, false
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return User{}, false
	}
	return u, true
}

// IssueToken signs an HS256 token carrying the user's role.
func (a *Authenticator) IssueToken(u User) (string, error) {
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			Issuer:    a.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		Roles: []string{u.Role},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.SigningKey)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    string `json:"user,omitempty"`
	Role    string `json:"role,omitempty"`
	Token   string `json:"token,omitempty"`
}

// LoginHandler serves POST /api/auth/login.
func (a *Authenticator) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, loginResponse{Message: "Invalid request body"})
	}
	u, ok := a.Authenticate(strings.TrimSpace(req.Username), req.Password)
	if !ok {
		return c.JSON(http.StatusUnauthorized, loginResponse{Message: "Invalid username or password"})
	}
	token, err := a.IssueToken(u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, loginResponse{Message: "Login failed"})
	}
	return c.JSON(http.StatusOK, loginResponse{
		Success: true,
		Message: "Login successful",
		User:    u.Username,
		Role:    u.Role,
		Token:   token,
	})
}

func (a *Authenticator) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", a.LoginHandler)
}
