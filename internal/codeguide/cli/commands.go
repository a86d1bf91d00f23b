package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/service"
)

func (c *CLI) users(ctx context.Context, svc *service.CredentialService, _ []string) error {
	users, err := svc.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(c.Stdout, "no users")
		return nil
	}

	tw := tabwriter.NewWriter(c.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (c *CLI) register(ctx context.Context, svc *service.CredentialService, _ []string) error {
	r := c.reader()

	username, err := prompt(r, c.Stderr, "Username")
	if err != nil {
		return err
	}
	email, err := prompt(r, c.Stderr, "Email")
	if err != nil {
		return err
	}
	password, err := promptPassword(c.Stderr, "Password")
	if err != nil {
		return err
	}
	confirm, err := promptPassword(c.Stderr, "Confirm password")
	if err != nil {
		return err
	}

	u, err := svc.Register(ctx, username, email, password, confirm)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Stdout, "registered %s <%s> (%s)\n", u.Username, u.Email, u.ID)
	return nil
}

func (c *CLI) session(ctx context.Context, svc *service.CredentialService, _ []string) error {
	u, sess, err := svc.CurrentUser(ctx)
	if errors.Is(err, service.ErrNoSession) {
		fmt.Fprintln(c.Stdout, "no active session")
		return nil
	}
	if err != nil {
		return err
	}

	expires := "never"
	if sess.ExpiresAt != nil {
		expires = sess.ExpiresAt.Format(time.RFC3339)
	}
	fmt.Fprintf(c.Stdout, "%s <%s>\nsince:   %s\nexpires: %s\n",
		u.Username, u.Email, sess.IssuedAt.Format(time.RFC3339), expires)
	return nil
}

func (c *CLI) logout(ctx context.Context, svc *service.CredentialService, _ []string) error {
	if err := svc.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.Stdout, "logged out")
	return nil
}

func (c *CLI) clear(ctx context.Context, svc *service.CredentialService, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	fs.SetOutput(c.Stderr)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if !*yes {
		answer, err := prompt(c.reader(), c.Stderr, "Delete all users and the session? [y/N]")
		if err != nil {
			return err
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			fmt.Fprintln(c.Stdout, "aborted")
			return nil
		}
	}

	if err := svc.ClearAllData(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.Stdout, "local storage cleared")
	return nil
}
