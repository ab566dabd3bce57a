package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.cost = bcrypt.MinCost
	return r
}

func validSignup() Signup {
	return Signup{
		Name:        "Ada",
		Email:       "ada@example.com",
		Password:    "s3cret",
		AgreedTerms: true,
		DataConsent: true,
	}
}

func TestRegisterValidation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(s *Signup)
	}{
		{"missing_name", func(s *Signup) { s.Name = "  " }},
		{"missing_email", func(s *Signup) { s.Email = "" }},
		{"missing_password", func(s *Signup) { s.Password = "" }},
		{"terms_not_agreed", func(s *Signup) { s.AgreedTerms = false }},
		{"no_data_consent", func(s *Signup) { s.DataConsent = false }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRegistry()
			s := validSignup()
			tc.mutate(&s)
			_, err := r.Register(s)
			assert.ErrorIs(t, err, ErrIncompleteSignup)
			_, ok := r.Registered()
			assert.False(t, ok)
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Login("ada@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrNoAccount)

	u, err := r.Register(validSignup())
	require.NoError(t, err)
	assert.Equal(t, User{Name: "Ada", Email: "ada@example.com"}, u)

	got, err := r.Login(" ada@example.com ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = r.Login("ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = r.Login("bob@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = r.Login("", "s3cret")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestRegisterReplacesPreviousAccount(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Register(validSignup())
	require.NoError(t, err)

	second := validSignup()
	second.Name = "Grace"
	second.Email = "grace@example.com"
	_, err = r.Register(second)
	require.NoError(t, err)

	_, err = r.Login("ada@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	u, ok := r.Registered()
	require.True(t, ok)
	assert.Equal(t, "Grace", u.Name)
}
