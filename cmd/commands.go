package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/habedi/gotok/auth"
	"github.com/habedi/gotok/pkg/hasher"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// withAccount opens the configured account for the duration of fn.
func withAccount(cmd *cobra.Command, needsProvider bool, fn func(ctx context.Context, a *auth.Account) error) error {
	s := settingsFrom(cmd.Context())
	a, store, err := s.openAccount(needsProvider)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close token storage")
		}
	}()
	return fn(cmd.Context(), a)
}

func addKeyFlag(cmd *cobra.Command, key *string) {
	cmd.Flags().StringVarP(key, "key", "k", "", "Storage key to use instead of the account id")
}

// resolvedKey is the key a command acted on, for messages.
func resolvedKey(a *auth.Account, key string) string {
	if key != "" {
		return key
	}
	id, _ := a.ID()
	return id
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func signinCmd() *cobra.Command {
	var key, credential string

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Exchange a sign-in credential for tokens and store them",
		Long:  "Exchange an authorization code (or password, with --grant password) for tokens and store them. The credential is prompted for when --code is not given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccount(cmd, true, func(ctx context.Context, a *auth.Account) error {
				if credential == "" {
					var err error
					credential, err = readCredential(cmd, "Credential: ")
					if err != nil {
						return err
					}
				}
				data, err := a.SignIn(ctx, credential, key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in. Tokens stored under %q (expires %s).\n",
					resolvedKey(a, key), formatExpiry(data.Expiry()))
				return nil
			})
		},
	}

	addKeyFlag(cmd, &key)
	cmd.Flags().StringVarP(&credential, "code", "c", "", "Authorization code or password")
	return cmd
}

func tokenCmd() *cobra.Command {
	var key, algo string
	var asJSON, fingerprint bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fingerprint && !hasher.IsValidHashAlgo(algo) {
				return fmt.Errorf("%w: unsupported hash algorithm: %s", auth.ErrInvalidArgument, algo)
			}
			return withAccount(cmd, true, func(ctx context.Context, a *auth.Account) error {
				data, err := a.TokenData(ctx, key)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, data)
				}
				if data.AccessToken == "" {
					return fmt.Errorf("%w: no access token cached", auth.ErrNoToken)
				}
				if fingerprint {
					sum, err := hasher.GenerateHash(data.AccessToken, algo)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), sum)
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), data.AccessToken)
				return err
			})
		},
	}

	addKeyFlag(cmd, &key)
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Print the whole token record as JSON")
	cmd.Flags().BoolVarP(&fingerprint, "fingerprint", "f", false, "Print a hash of the access token instead of the token")
	cmd.Flags().StringVarP(&algo, "algo", "a", "sha256", "Hash algorithm for --fingerprint [md5, sha1, sha256, sha512]")
	return cmd
}

func accountCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "account",
		Short: "Fetch the account info from the identity provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccount(cmd, true, func(ctx context.Context, a *auth.Account) error {
				info, err := a.AccountInfo(ctx, key)
				if err != nil {
					return err
				}
				return printJSON(cmd, info)
			})
		},
	}

	addKeyFlag(cmd, &key)
	return cmd
}

func revokeCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke the cached refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccount(cmd, true, func(ctx context.Context, a *auth.Account) error {
				data, err := a.RevokeRefreshToken(ctx, key)
				if err != nil {
					return err
				}
				if data.RefreshToken != "" {
					fmt.Fprintln(cmd.OutOrStdout(), "Refresh token revoked. The provider issued a new one.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Refresh token revoked.")
				}
				return nil
			})
		},
	}

	addKeyFlag(cmd, &key)
	return cmd
}

func removeCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete the stored tokens without contacting the provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccount(cmd, false, func(ctx context.Context, a *auth.Account) error {
				if _, err := a.Remove(ctx, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed tokens stored under %q.\n", resolvedKey(a, key))
				return nil
			})
		},
	}

	addKeyFlag(cmd, &key)
	return cmd
}

func signoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the account's stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccount(cmd, false, func(ctx context.Context, a *auth.Account) error {
				id, err := a.ID()
				if err != nil {
					return err
				}
				if err := a.SignOut(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed out of %s.\n", id)
				return nil
			})
		},
	}
}
