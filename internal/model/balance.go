package model

import "github.com/shopspring/decimal"

// Balance is a token holding.
type Balance struct {
	Address Address         `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

// Allowance is the amount Spender may move out of Owner's balance.
type Allowance struct {
	Owner   Address         `json:"owner"`
	Spender Address         `json:"spender"`
	Amount  decimal.Decimal `json:"amount"`
}
