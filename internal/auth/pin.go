package auth

import (
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"

	"golang.org/x/crypto/bcrypt"
)

const PinLength = 6

func ValidatePIN(pin string) error {
	if len(pin) != PinLength {
		return apperr.Validation("PIN must be exactly %d digits", PinLength)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return apperr.Validation("PIN must be exactly %d digits", PinLength)
		}
	}
	return nil
}

func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPIN(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
