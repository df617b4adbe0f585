package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// User — учетная запись в Postgres. Для аккаунтов Google пароль пуст,
// заполнен GoogleSub.
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	GoogleSub    string    `json:"-" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity — проверенная идентичность запроса.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}
