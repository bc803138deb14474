package auth_test

import (
	"math"
	"testing"
	"time"

	"github.com/habedi/gotok/auth"
	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	now := testEpoch
	at := func(d time.Duration) int64 { return now.Add(d).UnixMilli() }
	leeway := 3 * time.Second

	tests := []struct {
		name   string
		data   *auth.TokenData
		leeway time.Duration
		want   bool
	}{
		{"nil data", nil, leeway, true},
		{"empty data", &auth.TokenData{}, leeway, true},
		{"no expires_time", &auth.TokenData{AccessToken: "A", ExpiresIn: "3600"}, leeway, true},
		{"an hour out", &auth.TokenData{AccessToken: "A", ExpiresTime: at(time.Hour)}, leeway, false},
		{"inside leeway", &auth.TokenData{AccessToken: "A", ExpiresTime: at(2 * time.Second)}, leeway, true},
		{"exactly at leeway boundary", &auth.TokenData{AccessToken: "A", ExpiresTime: at(leeway)}, leeway, false},
		{"one ms past boundary", &auth.TokenData{AccessToken: "A", ExpiresTime: at(leeway - time.Millisecond)}, leeway, true},
		{"zero leeway at expiry", &auth.TokenData{AccessToken: "A", ExpiresTime: at(0)}, 0, false},
		{"already past", &auth.TokenData{AccessToken: "A", ExpiresTime: at(-time.Minute)}, 0, true},
		{"saturated far future", &auth.TokenData{AccessToken: "A", ExpiresTime: math.MaxInt64}, leeway, false},
		{"saturated far past", &auth.TokenData{AccessToken: "A", ExpiresTime: math.MinInt64}, leeway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.IsExpired(tt.data, tt.leeway, now))
		})
	}
}

func TestIsExpired_MatchesStrictComparison(t *testing.T) {
	leeway := 3 * time.Second
	for offset := -5000; offset <= 5000; offset += 250 {
		data := &auth.TokenData{AccessToken: "A", ExpiresTime: testEpoch.UnixMilli() + int64(offset)}
		want := testEpoch.UnixMilli() > data.ExpiresTime-leeway.Milliseconds()
		assert.Equal(t, want, auth.IsExpired(data, leeway, testEpoch), "offset %dms", offset)
	}
}
