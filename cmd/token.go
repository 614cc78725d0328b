package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/chorus/internal/auth"
	"github.com/desertthunder/chorus/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) issuer(cmd *cli.Command) (*auth.Issuer, error) {
	config := r.loadConfig(cmd)
	return auth.NewIssuer(config.Auth.Secret,
		time.Duration(config.Auth.TokenTTLDays)*24*time.Hour)
}

// TokenMint issues a credential for the given identity and prints it.
//
// The embedded access token goes out as-is; this is an operator debugging
// tool, not a login path.
func (r *Runner) TokenMint(ctx context.Context, cmd *cli.Command) error {
	issuer, err := r.issuer(cmd)
	if err != nil {
		return fmt.Errorf("failed to configure credential issuer: %w", err)
	}

	credential, err := issuer.Issue(auth.Identity{
		UserID:       cmd.String("user"),
		Email:        cmd.String("email"),
		DisplayName:  cmd.String("name"),
		AccessToken:  cmd.String("access-token"),
		RefreshToken: cmd.String("refresh-token"),
	})
	if err != nil {
		return fmt.Errorf("failed to issue credential: %w", err)
	}

	r.logger.Info("credential issued", "user", cmd.String("user"), "ttl", issuer.TTL())
	return r.writePlain("%s\n", credential)
}

// TokenInspect verifies a credential and prints the identity it carries.
// Verification applies the same signature and expiry checks as the server.
func (r *Runner) TokenInspect(ctx context.Context, cmd *cli.Command) error {
	credential := cmd.StringArg("credential")
	if credential == "" {
		return fmt.Errorf("%w: credential argument is required", shared.ErrMissingArgument)
	}

	issuer, err := r.issuer(cmd)
	if err != nil {
		return fmt.Errorf("failed to configure credential issuer: %w", err)
	}

	identity, err := issuer.Verify(credential)
	if err != nil {
		return fmt.Errorf("credential rejected: %w", err)
	}

	return r.writeJSON(map[string]any{
		"userId":          identity.UserID,
		"email":           identity.Email,
		"displayName":     identity.DisplayName,
		"hasAccessToken":  identity.AccessToken != "",
		"hasRefreshToken": identity.RefreshToken != "",
	}, cmd.Bool("pretty"))
}
