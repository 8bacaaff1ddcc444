package entities

import (
	"fmt"
	"strings"
)

// FundType identifies one of the balance buckets a user holds
type FundType string

const (
	FundTypeCash     FundType = "cash"
	FundTypeSendable FundType = "sendable"
	FundTypePromo    FundType = "promo"
)

// AllFundTypes lists every fund type in display order
var AllFundTypes = []FundType{FundTypeCash, FundTypeSendable, FundTypePromo}

// DefaultBetPriority is the order bet placement draws from when the caller does not supply one
var DefaultBetPriority = []FundType{FundTypePromo, FundTypeSendable, FundTypeCash}

// ParseFundType converts user input into a FundType, rejecting anything outside the closed set
func ParseFundType(value string) (FundType, error) {
	ft := FundType(strings.ToLower(strings.TrimSpace(value)))
	if !ft.Valid() {
		return "", fmt.Errorf("unknown fund type %q", value)
	}
	return ft, nil
}

// Valid reports whether the fund type is one of the known values
func (f FundType) Valid() bool {
	switch f {
	case FundTypeCash, FundTypeSendable, FundTypePromo:
		return true
	}
	return false
}

// Rules returns the capability policy for the fund type
func (f FundType) Rules() FundRules {
	return RulesFor(f)
}

// String returns the string representation of the fund type
func (f FundType) String() string {
	return string(f)
}
