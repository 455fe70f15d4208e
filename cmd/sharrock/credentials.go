package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/axilent/sharrock"
)

var (
	tokenSubject string
	tokenPerms   []string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a bearer token with the configured auth.jwt_secret",
	Long: `Sign an HS256 bearer token for the secured example services.

Examples:
  sharrock token --config sharrock.yaml --subject bob
  sharrock call tokenwhoami --app sharrock_secure_example --token "$(sharrock token -c sharrock.yaml)"`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print the bcrypt hash to put under auth.users",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd, hashPasswordCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "sharrock", "token subject")
	tokenCmd.Flags().StringSliceVar(&tokenPerms, "perm", []string{whoamiPermission}, "granted permissions")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime, zero for no expiry")
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}

	var token string
	if tokenTTL > 0 {
		token, err = sharrock.SignTokenExpiring([]byte(cfg.Auth.JWTSecret), tokenSubject, time.Now().Add(tokenTTL), tokenPerms...)
	} else {
		token, err = sharrock.SignToken([]byte(cfg.Auth.JWTSecret), tokenSubject, tokenPerms...)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
