package cmd

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

var registerCreds credentialFlags

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, pw, err := registerCreds.resolve()
		if err != nil {
			return err
		}

		client, closeClient, err := newClient()
		if err != nil {
			return err
		}
		defer closeClient()

		profile, err := client.Register(cmd.Context(), email, pw)
		if err != nil {
			var apiErr *goSession.APIError
			if errors.As(err, &apiErr) {
				pterm.Error.Println(apiErr.Message)
				return errors.New("registration failed")
			}
			return err
		}

		pterm.Success.Printf("Registered %s\n", profile.User.Email)
		pterm.Info.Printf("User ID: %s\n", profile.User.ID)
		return nil
	},
}

func init() {
	registerCreds.bind(registerCmd)
}
