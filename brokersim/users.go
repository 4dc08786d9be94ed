package brokersim

import (
	"fmt"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"brokergate/internal/errors"
)

// AccountHolder is a demo brokerage customer. Passwords are only ever
// held as bcrypt hashes, even in a simulator.
type AccountHolder struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
}

// AccountHolders is an in-memory credential store for the simulator.
type AccountHolders struct {
	mu      sync.RWMutex
	byName  map[string]*AccountHolder
	defName string
}

// NewAccountHolders seeds the store with the default demo holder. The
// plaintext password is hashed on the way in and discarded.
func NewAccountHolders(defaultUsername, defaultPassword string) (*AccountHolders, error) {
	holders := &AccountHolders{
		byName:  make(map[string]*AccountHolder),
		defName: defaultUsername,
	}
	if err := holders.Add(defaultUsername, "Demo Holder", defaultPassword); err != nil {
		return nil, errors.Wrapf(err, "[NewAccountHolders] seeding %q", defaultUsername)
	}
	return holders, nil
}

// Add registers a holder. The password must meet the strength rules.
func (h *AccountHolders) Add(username, name, password string) error {
	if username == "" {
		return errors.New("[AccountHolders Add] username is required")
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return errors.Wrapf(err, "[AccountHolders Add] hashing password")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.byName[username] = &AccountHolder{
		ID:           "holder-" + username,
		Username:     username,
		Name:         name,
		PasswordHash: hash,
	}
	return nil
}

// Authenticate checks a username/password pair against the stored hash.
func (h *AccountHolders) Authenticate(username, password string) (*AccountHolder, error) {
	h.mu.RLock()
	holder, exists := h.byName[username]
	h.mu.RUnlock()
	if !exists || !CheckPasswordHash(password, holder.PasswordHash) {
		return nil, errors.ErrUnauthenticated
	}
	return holder, nil
}

// Default returns the auto-approve holder used when the authorization
// request carries no credentials.
func (h *AccountHolders) Default() *AccountHolder {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byName[h.defName]
}

// ValidatePasswordStrength checks if a password meets the rules:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
