package client

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/model"
)

var errStop = errors.New("stop")

func mustAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := model.ParseAmount(s)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", s, err)
	}
	return d
}

func asAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}
