package cmd

import (
	"errors"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email (prompted when empty)")
	cmd.Flags().StringVar(&f.password, "password", "", "account password (prompted when empty)")
}

// resolve prompts for whatever was not given on the command line.
func (f *credentialFlags) resolve() (string, string, error) {
	email := strings.TrimSpace(f.email)
	if email == "" {
		v, err := pterm.DefaultInteractiveTextInput.Show("Email")
		if err != nil {
			return "", "", err
		}
		email = strings.TrimSpace(v)
	}
	pw := f.password
	if pw == "" {
		v, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
		if err != nil {
			return "", "", err
		}
		pw = v
	}
	if email == "" || pw == "" {
		return "", "", errors.New("email and password are required")
	}
	return email, pw, nil
}
