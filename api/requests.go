package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"fundsledger/domain/entities"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

type depositRequest struct {
	Amount           decimal.Decimal   `json:"amount"`
	FundType         entities.FundType `json:"fund_type"`
	PaymentMethodRef string            `json:"payment_method_ref"`
	Description      string            `json:"description"`
	Annotations      map[string]string `json:"annotations"`
}

type withdrawRequest struct {
	Amount              decimal.Decimal   `json:"amount"`
	WithdrawalMethodRef string            `json:"withdrawal_method_ref"`
	Description         string            `json:"description"`
	Annotations         map[string]string `json:"annotations"`
}

type transferRequest struct {
	FromUserID  string            `json:"from_user_id"`
	ToUserID    string            `json:"to_user_id"`
	Amount      decimal.Decimal   `json:"amount"`
	FundType    entities.FundType `json:"fund_type"`
	Description string            `json:"description"`
	Annotations map[string]string `json:"annotations"`
}

type placeBetRequest struct {
	Amount       decimal.Decimal     `json:"amount"`
	PlatformID   string              `json:"platform_id"`
	BetID        string              `json:"bet_id"`
	FundPriority []entities.FundType `json:"fund_priority"`
	Odds         *decimal.Decimal    `json:"odds"`
	Annotations  map[string]string   `json:"annotations"`
}

type betWinningsRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	PlatformID string          `json:"platform_id"`
}

type promoRequirementsRequest struct {
	WageringMultiplier *decimal.Decimal `json:"wagering_multiplier"`
	MinOdds            *decimal.Decimal `json:"min_odds"`
	EligiblePlatforms  []string         `json:"eligible_platforms"`
	MaxWinnings        *decimal.Decimal `json:"max_winnings"`
}

type grantPromoRequest struct {
	Amount        decimal.Decimal           `json:"amount"`
	Source        string                    `json:"source"`
	ExpiresInDays *int                      `json:"expires_in_days"`
	Requirements  *promoRequirementsRequest `json:"requirements"`
	Annotations   map[string]string         `json:"annotations"`
}

type fundsLockRequest struct {
	FundType entities.FundType `json:"fund_type"`
	Amount   decimal.Decimal   `json:"amount"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched
// when allowEmpty is set.
func decodeBody(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
