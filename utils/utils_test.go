package utils

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := NewToken(42, "secret", time.Hour)
	require.NoError(t, err)

	userID, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestParseTokenRejects(t *testing.T) {
	token, err := NewToken(42, "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewToken(42, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("not-a-token", "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAsAppError(t *testing.T) {
	conflict := Conflict("Email already exists")
	wrapped := errors.Join(errors.New("context"), conflict)

	assert.Equal(t, http.StatusConflict, StatusOf(wrapped))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))

	internal := Internal("db failed", errors.New("connection reset"))
	assert.Equal(t, "db failed: connection reset", internal.Error())
	assert.EqualError(t, errors.Unwrap(internal), "connection reset")
}

type sampleInput struct {
	Email  string `json:"email" validate:"required,email"`
	Amount int    `json:"amount" validate:"gte=1,lte=99"`
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	err := ValidateStruct(sampleInput{Email: "nope", Amount: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'email'")
	assert.Contains(t, err.Error(), "'amount'")

	assert.NoError(t, ValidateStruct(sampleInput{Email: "a@b.co", Amount: 5}))
}
