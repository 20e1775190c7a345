// Package identity issues user identities: it stores credentials, checks
// them on login, and signs the bearer tokens callers present afterwards.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mini-social/storage"
)

const AccountsCollection = "accounts"

const minPasswordLength = 6

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password must have at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Credentials struct {
	Email       string
	Password    string
	DisplayName string
	PhotoURL    string
}

type Provider interface {
	// CreateIdentity registers the credentials and returns the new user id.
	CreateIdentity(ctx context.Context, c Credentials) (string, error)
	// Authenticate returns the user id owning email if password matches.
	Authenticate(ctx context.Context, email string, password string) (string, error)
}

type account struct {
	UserId       string `bson:"userId"`
	Email        string `bson:"email"`
	PasswordHash []byte `bson:"passwordHash"`
	DisplayName  string `bson:"displayName"`
	PhotoURL     string `bson:"photoURL"`
}

// StoreProvider keeps accounts in the document store, keyed by the
// normalized email so that registering an email twice fails atomically.
type StoreProvider struct {
	store storage.Store
	cost  int
}

func NewStoreProvider(store storage.Store, cost int) *StoreProvider {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &StoreProvider{store: store, cost: cost}
}

func (sp *StoreProvider) CreateIdentity(ctx context.Context, c Credentials) (string, error) {
	email := normalizeEmail(c.Email)
	if !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}
	if len(c.Password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), sp.cost)
	if err != nil {
		return "", err
	}
	acc := account{
		UserId:       uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  c.DisplayName,
		PhotoURL:     c.PhotoURL,
	}
	err = sp.store.Create(ctx, AccountsCollection, email, acc)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return "", ErrEmailTaken
	}
	if err != nil {
		return "", err
	}
	return acc.UserId, nil
}

func (sp *StoreProvider) Authenticate(ctx context.Context, email string, password string) (string, error) {
	var acc account
	err := sp.store.Get(ctx, AccountsCollection, normalizeEmail(email), &acc)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return acc.UserId, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
