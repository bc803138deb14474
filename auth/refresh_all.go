package auth

import (
	"context"

	"github.com/habedi/gotok/pkg/pool"
)

// RefreshResult is the outcome of TokenData for one account.
type RefreshResult struct {
	Account *Account
	Token   *TokenData
	Err     error
}

// RefreshAll runs TokenData for every account with up to workers goroutines.
// Results are returned in the order of accounts.
func RefreshAll(ctx context.Context, accounts []*Account, workers int) []RefreshResult {
	results := pool.Run[*Account, *TokenData](ctx, accounts, workers, func(ctx context.Context, a *Account) (*TokenData, error) {
		return a.TokenData(ctx, "")
	})

	out := make([]RefreshResult, len(results))
	for i, r := range results {
		out[i] = RefreshResult{Account: accounts[r.Index], Token: r.Value, Err: r.Err}
	}
	return out
}
