// Package payment authorizes card charges for purchases and deposits.
package payment

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cryptocard-ledger/internal/util"
)

var (
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvcPattern    = regexp.MustCompile(`^\d{3,4}$`)
)

// Instrument is the card a user pays with. It is never persisted.
type Instrument struct {
	Holder     string `json:"holder"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVC        string `json:"cvc"`
}

// Number returns the card number without spaces.
func (i Instrument) Number() string {
	return strings.ReplaceAll(i.CardNumber, " ", "")
}

// Last4 returns the last four digits for logging.
func (i Instrument) Last4() string {
	n := i.Number()
	if len(n) < 4 {
		return n
	}
	return n[len(n)-4:]
}

// Validate checks the instrument's shape. It says nothing about whether the
// card will be accepted.
func (i Instrument) Validate() error {
	if strings.TrimSpace(i.Holder) == "" {
		return util.NewValidationError("payment.holder", "is required")
	}
	n := i.Number()
	if len(n) < 16 || len(n) > 19 {
		return util.NewValidationError("payment.card_number", "must have 16 to 19 digits")
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return util.NewValidationError("payment.card_number", "must contain only digits")
		}
	}
	if !expiryPattern.MatchString(i.Expiry) {
		return util.NewValidationError("payment.expiry", "must be MM/YY")
	}
	if !cvcPattern.MatchString(i.CVC) {
		return util.NewValidationError("payment.cvc", "must have 3 or 4 digits")
	}
	return nil
}

// Authorization is the provider's answer to a charge request.
type Authorization struct {
	Reference string `json:"reference"`
	Approved  bool   `json:"approved"`
	Reason    string `json:"reason,omitempty"`
}

// Authorizer charges an instrument. A decline is reported as an error wrapping
// util.ErrPaymentDeclined.
type Authorizer interface {
	Authorize(ctx context.Context, amount decimal.Decimal, instrument Instrument) (Authorization, error)
}

// StaticAuthorizer approves every well-formed request. It backs local
// development when no provider is configured.
type StaticAuthorizer struct{}

func (StaticAuthorizer) Authorize(ctx context.Context, amount decimal.Decimal, instrument Instrument) (Authorization, error) {
	if err := instrument.Validate(); err != nil {
		return Authorization{}, err
	}
	return Authorization{Reference: uuid.NewString(), Approved: true}, nil
}
