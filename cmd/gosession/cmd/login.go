package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/route"
)

var (
	loginCreds   credentialFlags
	loginRoutes  []string
	keepSignedIn bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and show the session and route-guard decisions",
	Long: `login signs in, confirms the identity with the service, and evaluates the
route guard for every --route given as path[:role,role...]. The session is
signed out again on exit unless --keep is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := parseRoutes(loginRoutes)
		if err != nil {
			return err
		}
		email, pw, err := loginCreds.resolve()
		if err != nil {
			return err
		}

		client, closeClient, err := newClient()
		if err != nil {
			return err
		}
		defer closeClient()

		ctx := cmd.Context()
		if err := client.Login(ctx, email, pw); err != nil {
			var apiErr *goSession.APIError
			if errors.As(err, &apiErr) {
				pterm.Error.Println(apiErr.Message)
				return errors.New("login failed")
			}
			return err
		}

		profile, err := client.Me(ctx)
		if err != nil {
			return fmt.Errorf("failed to confirm identity: %w", err)
		}

		sess := client.Session()
		pterm.DefaultSection.Println("Session")
		pterm.Info.Printf("User: %s (%s)\n", profile.User.Email, profile.User.ID)
		pterm.Info.Printf("Roles: %s\n", strings.Join(sess.Roles, ", "))

		if len(targets) > 0 {
			pterm.DefaultSection.Println("Route Guard")
			table := pterm.TableData{{"PATH", "REQUIRED ROLES", "DECISION", "REDIRECT"}}
			for _, t := range targets {
				d := client.Authorize(t)
				table = append(table, []string{
					t.Path,
					strings.Join(t.RequiredRoles, ", "),
					d.State.String(),
					d.Redirect,
				})
			}
			_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		}

		if keepSignedIn {
			return nil
		}
		client.Logout(ctx)
		pterm.Success.Println("Signed out")
		return nil
	},
}

func init() {
	loginCreds.bind(loginCmd)
	loginCmd.Flags().StringArrayVar(&loginRoutes, "route", nil, "route to evaluate, as path[:role,role...] (repeatable)")
	loginCmd.Flags().BoolVar(&keepSignedIn, "keep", false, "do not revoke the session on exit")
}

func parseRoutes(specs []string) ([]route.Target, error) {
	targets := make([]route.Target, 0, len(specs))
	for _, s := range specs {
		path, roles, _ := strings.Cut(s, ":")
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("invalid --route %q: path must start with /", s)
		}
		t := route.Target{Path: path}
		if roles != "" {
			for _, r := range strings.Split(roles, ",") {
				if r = strings.TrimSpace(r); r != "" {
					t.RequiredRoles = append(t.RequiredRoles, r)
				}
			}
		}
		targets = append(targets, t)
	}
	return targets, nil
}
