package account

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrIncompleteSignup   = errors.New("please complete the form and agree to Terms & Conditions and Data Consent")
	ErrMissingCredentials = errors.New("enter email & password")
	ErrNoAccount          = errors.New("no account found, please create an account first")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Signup is the registration form.
type Signup struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AgreedTerms bool   `json:"agreed_terms"`
	DataConsent bool   `json:"data_consent"`
}

type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Registry holds the single registered account of a demo device. A new
// signup replaces the previous one. Nothing is persisted.
type Registry struct {
	mu   sync.RWMutex
	user *User
	hash []byte
	cost int
}

func NewRegistry() *Registry {
	return &Registry{cost: bcrypt.DefaultCost}
}

func (r *Registry) Register(s Signup) (User, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	if s.Name == "" || s.Email == "" || s.Password == "" || !s.AgreedTerms || !s.DataConsent {
		return User{}, ErrIncompleteSignup
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), r.cost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u := User{Name: s.Name, Email: s.Email}
	r.mu.Lock()
	r.user = &u
	r.hash = hash
	r.mu.Unlock()
	return u, nil
}

func (r *Registry) Login(email, password string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return User{}, ErrMissingCredentials
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.user == nil {
		return User{}, ErrNoAccount
	}
	if r.user.Email != email {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(r.hash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return *r.user, nil
}

// Registered reports the current account, if any.
func (r *Registry) Registered() (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.user == nil {
		return User{}, false
	}
	return *r.user, true
}
