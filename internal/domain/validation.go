package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrAmountTooPrecise   = errors.New("amount has too many fractional digits")
	ErrAmountTooLarge     = errors.New("amount exceeds maximum allowed")
	ErrDescriptionTooLong = errors.New("description too long")
)

// Validation constants
const (
	// AmountScale is the number of fractional digits of every amount.
	AmountScale = 8
	// AmountPrecision is the total number of digits an amount may have.
	AmountPrecision = 20

	MaxAccountTypeLength = 64
	MaxUserIDLength      = 255
	MaxDescriptionLength = 1024

	DefaultPageSize = 50
	MaxPageSize     = 1000
)

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

	// amountLimit is 10^(precision-scale): the first integer part that no longer fits.
	amountLimit = decimal.New(1, AmountPrecision-AmountScale)
)

// ValidateCurrency validates a three-letter upper-case currency code.
func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return fmt.Errorf("%w: %q must be three upper-case letters", ErrInvalidCurrency, currency)
	}

	return nil
}

// ValidateAmount checks that amount is positive and fits NUMERIC(20,8) exactly.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if !amount.Equal(amount.Truncate(AmountScale)) {
		return fmt.Errorf("%w: at most %d allowed", ErrAmountTooPrecise, AmountScale)
	}

	if amount.GreaterThanOrEqual(amountLimit) {
		return fmt.Errorf("%w: must be below %s", ErrAmountTooLarge, amountLimit)
	}

	return nil
}

// ValidateAccountType validates the free-form account category.
func ValidateAccountType(accountType string) error {
	accountType = strings.TrimSpace(accountType)

	if accountType == "" {
		return fmt.Errorf("%w: cannot be empty", ErrInvalidAccountType)
	}

	if len(accountType) > MaxAccountTypeLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidAccountType, MaxAccountTypeLength)
	}

	return nil
}

// ValidateUserID validates the owning user identifier.
func ValidateUserID(userID string) error {
	userID = strings.TrimSpace(userID)

	if userID == "" {
		return fmt.Errorf("%w: cannot be empty", ErrInvalidUserID)
	}

	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, MaxUserIDLength)
	}

	return nil
}

// ValidateDescription validates the free-text transaction description.
func ValidateDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrDescriptionTooLong, MaxDescriptionLength)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
