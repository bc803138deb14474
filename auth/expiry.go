package auth

import "time"

// IsExpired reports whether data must be treated as expired at now.
// Missing data, or data without an expiry, is always expired. Otherwise the
// token is expired strictly after ExpiresTime - leeway; equality is still valid.
func IsExpired(data *TokenData, leeway time.Duration, now time.Time) bool {
	if data.IsEmpty() || data.ExpiresTime == 0 {
		return true
	}
	return now.UnixMilli()+leeway.Milliseconds() > data.ExpiresTime
}
