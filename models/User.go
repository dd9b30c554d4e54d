package models

import "time"

type User struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	Username          string       `gorm:"not null" json:"username"`
	Email             string       `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash      string       `gorm:"not null" json:"-"`
	FavoriteSuperhero string       `json:"favorite_superhero"`
	Credits           int          `gorm:"not null;default:0" json:"credits"`
	Album             []AlbumEntry `gorm:"foreignKey:UserID" json:"album,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// LoginInput is the body of POST /api/users/login
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterInput is the body of POST /api/users/register
type RegisterInput struct {
	Username          string `json:"username" validate:"required,min=3,max=50"`
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,min=6,max=72"`
	FavoriteSuperhero string `json:"favorite_superhero" validate:"max=100"`
}

// UpdateUserInput - nil fields are left unchanged
type UpdateUserInput struct {
	Username          *string `json:"username" validate:"omitempty,min=3,max=50"`
	Email             *string `json:"email" validate:"omitempty,email"`
	Password          *string `json:"password" validate:"omitempty,min=6,max=72"`
	FavoriteSuperhero *string `json:"favorite_superhero" validate:"omitempty,max=100"`
}

type BuyCreditsInput struct {
	Amount int `json:"amount" validate:"required,gte=1,lte=99"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token  string `json:"token"`
	UserID uint   `json:"userId"`
}
