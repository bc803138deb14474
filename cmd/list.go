package cmd

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/habedi/gotok/auth"
	"github.com/habedi/gotok/client"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored token records and whether they are still valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := settingsFrom(cmd.Context())
			store, err := s.openStorage()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := store.Close(); cerr != nil {
					log.Warn().Err(cerr).Msg("Failed to close token storage")
				}
			}()

			keys, err := store.Keys()
			if err != nil {
				return fmt.Errorf("failed to list stored keys: %w", err)
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tokens stored.")
				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Key", "Subject", "Expires", "State", "Refresh Token"})
			table.SetAlignment(tablewriter.ALIGN_LEFT)       // Align all columns to the left
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT) // Align headers to the left
			table.SetAutoWrapText(false)
			table.SetRowLine(false)

			now := time.Now()
			for _, key := range keys {
				row, ok, err := describeEntry(store, key, s.Leeway, now)
				if err != nil {
					return err
				}
				if ok {
					table.Append(row)
				}
			}
			table.Render()
			return nil
		},
	}
}

// describeEntry renders one table row. ok is false when the key vanished
// between listing and reading.
func describeEntry(store auth.Storage, key string, leeway time.Duration, now time.Time) ([]string, bool, error) {
	raw, found, err := store.GetItem(key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	if !found {
		return nil, false, nil
	}

	data, err := client.Parse[auth.TokenData](raw)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Stored token data is corrupt")
		return []string{key, "-", "-", "corrupt", "-"}, true, nil
	}

	state := "valid"
	if auth.IsExpired(&data, leeway, now) {
		state = "expired"
	}
	refresh := "no"
	if data.RefreshToken != "" {
		refresh = "yes"
	}
	return []string{key, tokenSubject(&data), formatExpiry(data.Expiry()), state, refresh}, true, nil
}

// tokenSubject returns the "sub" claim of the id token, or of the access
// token, when either is a JWT. Signatures are not checked.
func tokenSubject(data *auth.TokenData) string {
	for _, raw := range []string{data.IDToken, data.AccessToken} {
		if raw == "" {
			continue
		}
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
			continue
		}
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			return sub
		}
	}
	return "-"
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never recorded"
	}
	return t.UTC().Format(time.RFC3339)
}
