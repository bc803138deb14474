package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/habedi/gotok/auth"
	"github.com/habedi/gotok/client"
	"github.com/habedi/gotok/db"
	"github.com/habedi/gotok/pkg/validation"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "GOTOK"

// Storage backends selectable with --store.
const (
	storeMemory = "memory"
	storeSQLite = "sqlite"
	storeFile   = "file"
)

var defaultFilePath = filepath.Join(os.Getenv("HOME"), ".gotok/tokens.json")

// settings is the resolved CLI configuration. Priority is flag, then
// GOTOK_* environment variable, then default.
type settings struct {
	Store       string
	StorePath   string
	Audience    string
	Label       string
	TokenURL    string
	AccountURL  string
	RevokeURL   string
	ClientID    string
	Grant       string
	Retries     int
	RetryDelay  time.Duration
	Leeway      time.Duration
	RequestMode string
}

// cliOptions binds the persistent flags of the root command into its own viper instance.
type cliOptions struct {
	v *viper.Viper
}

func (o *cliOptions) bind(rootCmd *cobra.Command) {
	o.v = viper.New()

	flags := rootCmd.PersistentFlags()
	flags.String("store", storeSQLite, "Token storage backend [memory, sqlite, file]; memory lasts for a single invocation")
	flags.String("store-path", "", "Path of the sqlite database or JSON file (defaults under ~/.gotok)")
	flags.String("audience", "", "Audience (API identifier) the tokens are issued for")
	flags.String("label", auth.DefaultLabel, "Account label")
	flags.String("token-url", "", "Token endpoint of the identity provider")
	flags.String("account-url", "", "Account info endpoint of the identity provider")
	flags.String("revoke-url", "", "Revocation endpoint of the identity provider")
	flags.String("client-id", "", "OAuth2 client id sent with provider requests")
	flags.String("grant", client.GrantAuthorizationCode, "Sign-in grant [authorization_code, password]")
	flags.Int("retries", auth.DefaultRetries, "Attempts per provider request")
	flags.Duration("retry-delay", auth.DefaultRetryDelay, "Wait between failed attempts")
	flags.Duration("leeway", auth.DefaultLeeway, "Treat tokens as expired this long before their expiry")
	flags.String("request-mode", string(auth.DefaultRequestMode), "Identifier sent to the provider [id, label]")

	_ = o.v.BindPFlags(flags)

	o.v.SetEnvPrefix(envPrefix)
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.v.AutomaticEnv()
}

func (o *cliOptions) load() (settings, error) {
	s := settings{
		Store:       strings.ToLower(o.v.GetString("store")),
		StorePath:   o.v.GetString("store-path"),
		Audience:    o.v.GetString("audience"),
		Label:       o.v.GetString("label"),
		TokenURL:    o.v.GetString("token-url"),
		AccountURL:  o.v.GetString("account-url"),
		RevokeURL:   o.v.GetString("revoke-url"),
		ClientID:    o.v.GetString("client-id"),
		Grant:       o.v.GetString("grant"),
		Retries:     o.v.GetInt("retries"),
		RetryDelay:  o.v.GetDuration("retry-delay"),
		Leeway:      o.v.GetDuration("leeway"),
		RequestMode: o.v.GetString("request-mode"),
	}

	if err := validation.ValidateOneOf("store", s.Store, storeMemory, storeSQLite, storeFile); err != nil {
		return settings{}, err
	}
	if s.StorePath == "" {
		switch s.Store {
		case storeSQLite:
			s.StorePath = db.Path
		case storeFile:
			s.StorePath = defaultFilePath
		}
	}
	return s, nil
}

func (s settings) provider() *client.HTTPProvider {
	return &client.HTTPProvider{
		TokenURL:    s.TokenURL,
		AccountURL:  s.AccountURL,
		RevokeURL:   s.RevokeURL,
		ClientID:    s.ClientID,
		Audience:    s.Audience,
		SignInGrant: s.Grant,
	}
}

// storage is an auth.Storage that also enumerates keys and must be closed.
type storage interface {
	auth.Storage
	auth.Lister
	Close() error
}

type nopCloser struct {
	auth.Storage
	auth.Lister
}

func (nopCloser) Close() error { return nil }

func (s settings) openStorage() (storage, error) {
	switch s.Store {
	case storeMemory:
		m := db.NewMemoryStore()
		return nopCloser{Storage: m, Lister: m}, nil
	case storeFile:
		f, err := db.NewFileStore(s.StorePath)
		if err != nil {
			return nil, err
		}
		return nopCloser{Storage: f, Lister: f}, nil
	default:
		return db.OpenSQLite(s.StorePath)
	}
}

// openAccount opens the configured storage and builds an account over it.
// Provider endpoints are validated only when the command talks to the provider.
func (s settings) openAccount(needsProvider bool) (*auth.Account, storage, error) {
	p := s.provider()
	if needsProvider {
		if err := p.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", auth.ErrConfig, err)
		}
	}

	store, err := s.openStorage()
	if err != nil {
		return nil, nil, err
	}

	a, err := auth.New(auth.Config{Provider: p, Audience: s.Audience, Label: s.Label}, store,
		auth.WithRetries(s.Retries),
		auth.WithRetryDelay(s.RetryDelay),
		auth.WithLeeway(s.Leeway),
		auth.WithRequestMode(auth.RequestMode(s.RequestMode)),
	)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return a, store, nil
}

type settingsKey struct{}

func withSettings(ctx context.Context, s settings) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, settingsKey{}, s)
}

func settingsFrom(ctx context.Context) settings {
	s, _ := ctx.Value(settingsKey{}).(settings)
	return s
}
