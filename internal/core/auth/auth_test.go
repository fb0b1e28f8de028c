package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthenticate(t *testing.T) {
	a := NewAuthenticator("master-token")

	testCases := []struct {
		name   string
		header string
		ok     bool
	}{
		{"valid", "Bearer master-token", true},
		{"valid with trailing space", "Bearer master-token  ", true},
		{"missing header", "", false},
		{"wrong token", "Bearer other", false},
		{"token prefix only", "Bearer master", false},
		{"lowercase scheme", "bearer master-token", false},
		{"basic scheme", "Basic master-token", false},
		{"no space after scheme", "Bearermaster-token", false},
		{"empty token", "Bearer    ", false},
		{"raw token", "master-token", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := a.Authenticate(tc.header)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnauthorized)
			}
		})
	}
}

func TestEmptyMasterTokenRejectsAll(t *testing.T) {
	a := NewAuthenticator("  ")

	assert.False(t, a.Configured())
	assert.ErrorIs(t, a.Authenticate("Bearer "), ErrUnauthorized)
	assert.ErrorIs(t, a.Authenticate("Bearer anything"), ErrUnauthorized)
}
