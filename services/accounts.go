package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"furnistore/apperr"
	"furnistore/database"
	"furnistore/models"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    primitive.ObjectID
	Role      string
	Token     string
	ExpiresAt time.Time
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

type Accounts struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewAccounts(users UserStore, secret string, ttl time.Duration) *Accounts {
	return &Accounts{users: users, secret: []byte(secret), ttl: ttl, cost: bcrypt.DefaultCost, now: time.Now}
}

// Register creates a customer account. Admin accounts are only created from
// the command line.
func (s *Accounts) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	return s.create(ctx, in, models.RoleCustomer)
}

func (s *Accounts) CreateAdmin(ctx context.Context, in RegisterInput) (models.User, error) {
	return s.create(ctx, in, models.RoleAdmin)
}

func (s *Accounts) create(ctx context.Context, in RegisterInput, role string) (models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := check(in); err != nil {
		return models.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return models.User{}, err
	}
	user := models.User{
		Name:      strings.TrimSpace(in.Name),
		Email:     in.Email,
		Password:  string(hash),
		Role:      role,
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, database.ErrDuplicateKey) {
			return models.User{}, apperr.Conflict("auth.email_taken", "Email already registered")
		}
		return models.User{}, err
	}
	return user, nil
}

func invalidCredentials() error {
	return apperr.Unauthorized("auth.invalid_credentials", "Invalid email or password")
}

func (s *Accounts) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	if err := check(in); err != nil {
		return LoginResult{}, err
	}
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if errors.Is(err, database.ErrNotFound) {
		return LoginResult{}, invalidCredentials()
	}
	if err != nil {
		return LoginResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return LoginResult{}, invalidCredentials()
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		UserID: user.ID.Hex(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        primitive.NewObjectID().Hex(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout revokes the caller's token until it would have expired.
func (s *Accounts) Logout(ctx context.Context, p Principal) error {
	return s.users.Blacklist(ctx, p.Token, p.ExpiresAt)
}

func (s *Accounts) Authenticate(ctx context.Context, token string) (Principal, error) {
	invalid := apperr.Unauthorized("auth.invalid_token", "Invalid or expired token")

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.ExpiresAt == nil {
		return Principal{}, invalid
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return Principal{}, invalid
	}

	revoked, err := s.users.IsBlacklisted(ctx, token)
	if err != nil {
		return Principal{}, err
	}
	if revoked {
		return Principal{}, apperr.Unauthorized("auth.token_blacklisted", "Token has been revoked")
	}
	return Principal{UserID: userID, Role: claims.Role, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}
