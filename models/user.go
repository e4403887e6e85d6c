package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/gananathtech/inventory_backend/utils"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;uniqueIndex" json:"username" binding:"required"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type SignIn struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func CreateUser(ctx context.Context, db *gorm.DB, username string, password string) (*User, error) {
	if err := utils.ValidateUnique[User](ctx, db, "username", username, 0); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := User{Username: username, Password: string(hashed)}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, utils.NewPersistenceError("create user", err)
	}
	return &user, nil
}

// Authenticate checks credentials and returns a signed token.
func Authenticate(ctx context.Context, db *gorm.DB, input *SignIn) (string, error) {
	var user User
	err := db.WithContext(ctx).Where("username = ?", input.Username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", utils.NewValidationError("username", "invalid username or password")
	}
	if err != nil {
		return "", utils.NewPersistenceError("get user", err)
	}
	if err := utils.ComparePassword(user.Password, input.Password); err != nil {
		return "", utils.NewValidationError("password", "invalid username or password")
	}
	return utils.JwtGenerate(user.ID, user.Username)
}
