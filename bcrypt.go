package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinVerificationCode is the smallest code we generate
	MinVerificationCode = 10000
	// MaxVerificationCode is the largest code we generate
	MaxVerificationCode = 99999
)

// GenerateVerificationCode returns a uniformly random five digit code
func GenerateVerificationCode() (string, error) {
	span := big.NewInt(MaxVerificationCode - MinVerificationCode + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
	}
	return fmt.Sprintf("%d", n.Int64()+MinVerificationCode), nil
}

// HashCode will generate a bcrypt hash of a verification code
func HashCode(code string, cost int) (string, error) {
	if code == "" {
		return "", goerrors.New("verification code must not be empty", goerrors.CategoryBadInput)
	}
	if cost == 0 {
		cost = defaultCodeHashCost()
	}
	h, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash verification code")
	}
	return string(h), nil
}

// CompareCodeAndHash will validate the submitted code matches the hash
func CompareCodeAndHash(code, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrCodeMismatch
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare verification code")
	}
	return nil
}
