package memsource

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/swingsense/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type user struct {
	ID           string
	Email        string
	PasswordHash string // never leaves the store
	Verified     bool
	DateJoined   time.Time
	LastLogin    time.Time
}

// userStore keys users by normalised email.
type userStore struct {
	lock  sync.RWMutex
	users map[string]*user
}

func newUserStore() *userStore {
	return &userStore{users: make(map[string]*user)}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (us *userStore) create(email, password string, verified bool, now time.Time) (*user, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, apperrors.Wrapf(err, "hash password")
	}

	us.lock.Lock()
	defer us.lock.Unlock()

	key := normaliseEmail(email)
	if _, ok := us.users[key]; ok {
		return nil, apperrors.ErrUserExists
	}
	u := &user{
		ID:           uuid.New().String(),
		Email:        key,
		PasswordHash: hash,
		Verified:     verified,
		DateJoined:   now,
	}
	us.users[key] = u
	return u, nil
}

func (us *userStore) getByEmail(email string) (*user, error) {
	us.lock.RLock()
	defer us.lock.RUnlock()

	u, ok := us.users[normaliseEmail(email)]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (us *userStore) setVerified(email string, verified bool) error {
	us.lock.Lock()
	defer us.lock.Unlock()

	u, ok := us.users[normaliseEmail(email)]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.Verified = verified
	return nil
}

func (us *userStore) setLastLogin(email string, at time.Time) {
	us.lock.Lock()
	defer us.lock.Unlock()

	if u, ok := us.users[normaliseEmail(email)]; ok {
		u.LastLogin = at
	}
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
