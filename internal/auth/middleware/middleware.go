package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-cat/internal/rbac"
)

type AuthService struct {
	hmac []byte
	ttl  time.Duration
	now  func() time.Time
}

func NewAuthService(secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &AuthService{hmac: []byte(secret), ttl: ttl, now: time.Now}
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // "student", "proctor" or "admin"
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(sub, role string) (string, error) {
	now := a.now()
	claims := &Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "mindengage-cat",
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

var errNoSubject = errors.New("token has no subject")

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Sub == "" {
		return nil, errNoSubject
	}
	return c, nil
}

// Credentials decides who may log in.
type Credentials struct {
	AdminUser     string
	AdminPassHash string // bcrypt
	// ProctorHashes maps proctor usernames to bcrypt hashes.
	ProctorHashes map[string]string
	// OpenStudents lets any student in with username == password
	// (offline kiosks only).
	OpenStudents bool
}

// POST /auth/login  { "username": "...", "password": "...", "role": "student|proctor|admin" }
func LoginHandler(a *AuthService, creds Credentials) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		if !creds.valid(req.Username, req.Password, req.Role) {
			writeErr(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		tok, err := a.IssueJWT(req.Username, req.Role)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "issue token")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": tok,
			"token_type":   "Bearer",
			"expires_in":   int(a.ttl.Seconds()),
		})
	}
}

func (c Credentials) valid(user, pass, role string) bool {
	if user == "" {
		return false
	}
	switch role {
	case "admin":
		return user == c.AdminUser && checkHash(c.AdminPassHash, pass)
	case "proctor":
		h, ok := c.ProctorHashes[user]
		return ok && checkHash(h, pass)
	case "student":
		return c.OpenStudents && user == pass
	}
	return false
}

func checkHash(hash, pass string) bool {
	return hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil
}

// JWTMiddleware authenticates the bearer token and puts its subject and
// role into the request context for rbac.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				writeErr(w, http.StatusUnauthorized, "missing bearer")
				return
			}
			claims, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "bad token")
				return
			}
			ctx := rbac.WithRole(rbac.WithSubject(r.Context(), claims.Sub), claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": "Unauthorized"})
}
