package cmd

import (
	"context"
	"os"

	"github.com/habedi/gotok/pkg/clierr"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func Execute(ctx context.Context) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	rootCmd := createRootCmd()
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cliErr := toCLIError(err)
		log.Error().Err(err).Str("type", string(cliErr.Type)).Msg("Command execution failed.")
		rootCmd.PrintErrln("Error:", cliErr.Detail())
		os.Exit(1)
	}
}

func createRootCmd() *cobra.Command {
	var opts cliOptions

	rootCmd := &cobra.Command{
		Use:           "gotok",
		Short:         "Acquire, cache, refresh and revoke OAuth2 tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return clierr.New(clierr.Validation, "Invalid configuration", err)
			}
			cmd.SetContext(withSettings(cmd.Context(), cfg))
			return nil
		},
	}

	opts.bind(rootCmd)

	rootCmd.AddCommand(
		signinCmd(),
		tokenCmd(),
		accountCmd(),
		revokeCmd(),
		removeCmd(),
		signoutCmd(),
		listCmd(),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}
