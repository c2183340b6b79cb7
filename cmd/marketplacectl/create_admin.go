package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/service"
)

type createAdminOptions struct {
	email    string
	name     string
	password string
}

func newCreateAdminCmd(root *rootOptions) *cobra.Command {
	opts := &createAdminOptions{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator account. Admins cannot self-register through
the API, so the first admin is created with this command.

Example:
  marketplacectl create-admin --email ops@example.com --name Ops --password 's3cret-pass'`,
		Args: cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, log, err := root.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			svc := service.NewAuthService(
				store.Users,
				auth.NewBcryptHasher(cfg.BcryptCost),
				auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL),
				event.NewEmitter(nil, log),
				log,
				service.AuthOptions{},
			)
			user, err := svc.CreateAdmin(cmd.Context(), opts.email, opts.password, opts.name)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&opts.name, "name", "", "admin display name (required)")
	cmd.Flags().StringVar(&opts.password, "password", "", "admin password, at least 8 characters (required)")
	return cmd
}

func (o *createAdminOptions) validate() error {
	var errs []error
	if o.email == "" {
		errs = append(errs, errors.New("--email is required"))
	}
	if o.name == "" {
		errs = append(errs, errors.New("--name is required"))
	}
	if len(o.password) < 8 {
		errs = append(errs, errors.New("--password must be at least 8 characters"))
	}
	return errors.Join(errs...)
}
