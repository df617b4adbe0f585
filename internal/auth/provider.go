package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tokenBlacklistPrefix = "auth:token:blacklist:"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	errUnauthorized       = errors.New("unauthorized")
)

// Session — результат успешного входа.
type Session struct {
	User  User
	Token string
}

// Provider — фасад идентификации. Ошибки провайдера возвращаются вызывающему
// с исходным текстом.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, email, password string) (Session, error)
	SignInWithGoogle(ctx context.Context, idToken string) (Session, error)
	LogOut(ctx context.Context, token string) error
}

// GoogleTokenVerifier — проверка ID-токена Google (см. GoogleVerifier).
type GoogleTokenVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (GoogleIdentity, error)
}

type provider struct {
	repo          UserRepository
	google        GoogleTokenVerifier
	rdb           *redis.Client
	jwtSecret     []byte
	jwtTTLSeconds int64
}

func NewProvider(repo UserRepository, google GoogleTokenVerifier, rdb *redis.Client, jwtSecret []byte, jwtTTLSeconds int64) Provider {
	return &provider{
		repo:          repo,
		google:        google,
		rdb:           rdb,
		jwtSecret:     jwtSecret,
		jwtTTLSeconds: jwtTTLSeconds,
	}
}

func (p *provider) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := p.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if user.PasswordHash == "" {
		// Аккаунт создан через Google, пароля нет
		return Session{}, ErrInvalidCredentials
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	return p.newSession(user)
}

func (p *provider) SignUp(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidateEmail(email); err != nil {
		return Session{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return Session{}, err
	}

	if _, err := p.repo.GetUserByEmail(ctx, email); err == nil {
		return Session{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return Session{}, err
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return Session{}, err
	}

	user := User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    time.Now(),
	}
	if err := p.repo.CreateUser(ctx, user); err != nil {
		return Session{}, err
	}

	return p.newSession(user)
}

func (p *provider) SignInWithGoogle(ctx context.Context, idToken string) (Session, error) {
	if p.google == nil {
		return Session{}, errors.New("google sign-in is not configured")
	}

	identity, err := p.google.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Session{}, err
	}

	user, err := p.repo.GetUserByGoogleSub(ctx, identity.Sub)
	if errors.Is(err, ErrUserNotFound) {
		user = User{
			ID:          uuid.New(),
			Email:       strings.ToLower(identity.Email),
			DisplayName: SanitizeString(identity.Name),
			GoogleSub:   identity.Sub,
			CreatedAt:   time.Now(),
		}
		if err := p.repo.CreateUser(ctx, user); err != nil {
			return Session{}, err
		}
	} else if err != nil {
		return Session{}, err
	}

	return p.newSession(user)
}

// LogOut отзывает токен: jti попадает в черный список Redis до истечения срока.
func (p *provider) LogOut(ctx context.Context, token string) error {
	claims, err := ParseToken(token, p.jwtSecret)
	if err != nil {
		return errUnauthorized
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return errUnauthorized
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}

	if p.rdb == nil {
		return nil
	}
	key := tokenBlacklistPrefix + claims.ID
	return p.rdb.Set(ctx, key, "revoked", ttl).Err()
}

func (p *provider) newSession(user User) (Session, error) {
	claims := BuildClaims(user, p.jwtTTLSeconds)
	token, err := SignToken(claims, p.jwtSecret)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token}, nil
}

// Authorizer проверяет токен запроса: подпись, срок и черный список.
type Authorizer struct {
	repo      UserRepository
	rdb       *redis.Client
	jwtSecret []byte
}

func NewAuthorizer(repo UserRepository, rdb *redis.Client, jwtSecret []byte) *Authorizer {
	return &Authorizer{
		repo:      repo,
		rdb:       rdb,
		jwtSecret: jwtSecret,
	}
}

func (a *Authorizer) Authorize(ctx context.Context, token string) (Identity, error) {
	claims, err := ParseToken(token, a.jwtSecret)
	if err != nil {
		return Identity{}, errUnauthorized
	}
	if claims.ID == "" || claims.UserID == uuid.Nil {
		return Identity{}, errUnauthorized
	}

	if a.rdb != nil {
		key := tokenBlacklistPrefix + claims.ID
		exists, redisErr := a.rdb.Exists(ctx, key).Result()
		if redisErr != nil {
			return Identity{}, redisErr
		}
		if exists > 0 {
			return Identity{}, errUnauthorized
		}
	}

	return Identity{
		UserID: claims.UserID.String(),
		Email:  claims.Email,
	}, nil
}
