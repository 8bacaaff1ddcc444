package entities

// FundRules describes what a fund type may be used for
type FundRules struct {
	Withdrawable   bool `json:"withdrawable"`
	Transferable   bool `json:"transferable"`
	Convertible    bool `json:"convertible"`
	UsableForBets  bool `json:"usable_for_bets"`
	UsableForGames bool `json:"usable_for_games"`
	Expirable      bool `json:"expirable"`
}

var fundRules = map[FundType]FundRules{
	FundTypeCash: {
		Withdrawable:   true,
		Transferable:   true,
		UsableForBets:  true,
		UsableForGames: true,
	},
	FundTypeSendable: {
		Transferable:   true,
		UsableForBets:  true,
		UsableForGames: true,
	},
	FundTypePromo: {
		Convertible:    true,
		UsableForBets:  true,
		UsableForGames: true,
		Expirable:      true,
	},
}

// RulesFor returns the policy for a fund type. Unknown types get the zero policy,
// which permits nothing.
func RulesFor(ft FundType) FundRules {
	return fundRules[ft]
}

// IsDepositable reports whether a plain deposit may credit the fund type.
// Promo funds only enter through a grant.
func IsDepositable(ft FundType) bool {
	return ft == FundTypeCash || ft == FundTypeSendable
}
