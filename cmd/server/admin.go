package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/shop-auth-api/internal/auth"
	"github.com/iliyamo/shop-auth-api/internal/model"
	"github.com/iliyamo/shop-auth-api/internal/repository"
	"github.com/iliyamo/shop-auth-api/internal/utils"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative tasks against the identity store",
	}
	cmd.AddCommand(newAdminCreateCmd())
	return cmd
}

type createOpts struct {
	name     string
	email    string
	password string
	roles    string
}

// newAdminCreateCmd bootstraps an identity, typically the first admin, since
// roles can only be granted by an existing admin over HTTP.
func newAdminCreateCmd() *cobra.Command {
	opts := &createOpts{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an identity with the given roles",
		Example: `  shop-auth-api admin create --name Ops --email ops@example.com --password 'S3cret!pass'
  shop-auth-api admin create --email mod@example.com --password 'S3cret!pass' --roles moderator,user`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.name, "name", "Administrator", "Display name")
	cmd.Flags().StringVar(&opts.email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password (required)")
	cmd.Flags().StringVar(&opts.roles, "roles", auth.RoleAdmin, "Comma separated roles")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runAdminCreate(cmd *cobra.Command, opts *createOpts) error {
	email := strings.ToLower(strings.TrimSpace(opts.email))
	if !auth.ValidateEmail(email) {
		return errors.New("invalid email format")
	}
	if ok, reason := auth.ValidatePassword(opts.password); !ok {
		return errors.New(reason)
	}
	roles := auth.Dedupe(auth.Filter(splitRoles(opts.roles)))
	if len(roles) == 0 {
		return fmt.Errorf("no valid role in %q (allowed: %s)", opts.roles, strings.Join(auth.AllowedRoles, ", "))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	cfg, log, db, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(context.Background()) }()

	hash, err := auth.NewHasher(cfg.Auth.BcryptCost, 1).Hash(ctx, opts.password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	u := &model.Identity{
		UserID:       utils.NewID(utils.UserPrefix),
		UserName:     strings.TrimSpace(opts.name),
		UserEmail:    email,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repository.NewIdentityRepo(db.Database).Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fmt.Errorf("an identity with email %s already exists", email)
		}
		return err
	}
	log.WithField("user_id", u.UserID).WithField("roles", roles).Info("identity created")
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) roles=%s\n", u.UserID, email, strings.Join(roles, ","))
	return nil
}
