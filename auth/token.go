package auth

import (
	"encoding/json"
	"maps"
	"math"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// TokenData is the cached token record. ExpiresTime is always derived from
// ExpiresIn when the record is stored; a value read from a provider is ignored.
// JSON members without a dedicated field are kept in Extra and written back as-is.
type TokenData struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    json.Number // seconds
	ExpiresTime  int64       // epoch milliseconds
	TokenType    string
	Scope        string
	IDToken      string
	Extra        map[string]json.RawMessage
}

type tokenFields struct {
	AccessToken  string      `json:"access_token,omitempty"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresIn    json.Number `json:"expires_in,omitempty"`
	ExpiresTime  int64       `json:"expires_time,omitempty"`
	TokenType    string      `json:"token_type,omitempty"`
	Scope        string      `json:"scope,omitempty"`
	IDToken      string      `json:"id_token,omitempty"`
}

var knownFields = []string{
	"access_token", "refresh_token", "expires_in", "expires_time", "token_type", "scope", "id_token",
}

func (t TokenData) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(tokenFields{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
		ExpiresTime:  t.ExpiresTime,
		TokenType:    t.TokenType,
		Scope:        t.Scope,
		IDToken:      t.IDToken,
	})
	if err != nil || len(t.Extra) == 0 {
		return known, err
	}

	merged := make(map[string]json.RawMessage, len(t.Extra)+len(knownFields))
	maps.Copy(merged, t.Extra)
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	// Dedicated fields win over a stale duplicate in Extra.
	for _, name := range knownFields {
		delete(merged, name)
	}
	maps.Copy(merged, knownMap)
	return json.Marshal(merged)
}

func (t *TokenData) UnmarshalJSON(data []byte) error {
	var fields tokenFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, name := range knownFields {
		delete(all, name)
	}
	if len(all) == 0 {
		all = nil
	}

	*t = TokenData{
		AccessToken:  fields.AccessToken,
		RefreshToken: fields.RefreshToken,
		ExpiresIn:    fields.ExpiresIn,
		ExpiresTime:  fields.ExpiresTime,
		TokenType:    fields.TokenType,
		Scope:        fields.Scope,
		IDToken:      fields.IDToken,
		Extra:        all,
	}
	return nil
}

// Clone returns a deep copy of t.
func (t *TokenData) Clone() *TokenData {
	if t == nil {
		return nil
	}
	c := *t
	if t.Extra != nil {
		c.Extra = maps.Clone(t.Extra)
	}
	return &c
}

// IsEmpty reports whether t carries no data at all.
func (t *TokenData) IsEmpty() bool {
	return t == nil || (t.AccessToken == "" && t.RefreshToken == "" && t.ExpiresIn == "" &&
		t.ExpiresTime == 0 && t.TokenType == "" && t.Scope == "" && t.IDToken == "" && len(t.Extra) == 0)
}

// Overlay returns a copy of t with every non-empty field of u applied on top.
// ExpiresTime is not copied; it is recomputed on store.
func (t *TokenData) Overlay(u *TokenData) *TokenData {
	out := t.Clone()
	if out == nil {
		out = &TokenData{}
	}
	if u == nil {
		return out
	}
	if u.AccessToken != "" {
		out.AccessToken = u.AccessToken
	}
	if u.RefreshToken != "" {
		out.RefreshToken = u.RefreshToken
	}
	if u.ExpiresIn != "" {
		out.ExpiresIn = u.ExpiresIn
	}
	if u.TokenType != "" {
		out.TokenType = u.TokenType
	}
	if u.Scope != "" {
		out.Scope = u.Scope
	}
	if u.IDToken != "" {
		out.IDToken = u.IDToken
	}
	if len(u.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage, len(u.Extra))
		}
		maps.Copy(out.Extra, u.Extra)
	}
	return out
}

// Expiry returns the absolute expiry, or the zero time when none is recorded.
func (t *TokenData) Expiry() time.Time {
	if t == nil || t.ExpiresTime == 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.ExpiresTime)
}

// OAuth2Token converts t for use with golang.org/x/oauth2.
func (t *TokenData) OAuth2Token() *oauth2.Token {
	if t == nil {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry(),
	}
	extra := map[string]any{}
	if t.Scope != "" {
		extra["scope"] = t.Scope
	}
	if t.IDToken != "" {
		extra["id_token"] = t.IDToken
	}
	if len(extra) == 0 {
		return tok
	}
	return tok.WithExtra(extra)
}

// expiresTime computes the absolute expiry in epoch milliseconds from
// expires_in seconds. An absent expires_in yields zero. Results beyond the
// int64 range saturate, so a huge expires_in stays far in the future.
func expiresTime(expiresIn json.Number, now time.Time) (int64, error) {
	if expiresIn == "" {
		return 0, nil
	}
	seconds, err := strconv.ParseFloat(string(expiresIn), 64)
	if err != nil {
		return 0, &NumericError{Field: "expires_in", Value: string(expiresIn), Err: err}
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, &NumericError{Field: "expires_in", Value: string(expiresIn)}
	}
	return addMillis(now.UnixMilli(), math.Round(seconds*1000)), nil
}

// addMillis returns base+ms saturated to the int64 range.
func addMillis(base int64, ms float64) int64 {
	switch {
	case ms >= 0x1p63:
		return math.MaxInt64
	case ms < -0x1p63:
		return math.MinInt64
	}
	delta := int64(ms)
	if delta > 0 && base > math.MaxInt64-delta {
		return math.MaxInt64
	}
	if delta < 0 && base < math.MinInt64-delta {
		return math.MinInt64
	}
	return base + delta
}
