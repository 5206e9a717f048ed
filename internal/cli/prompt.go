package cli

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// Prompter asks the user for whatever a command was not given as flags.
// Fields already holding a value are not asked again.
type Prompter interface {
	Credentials(email, password *string) error
	Code(code *string) error
	NewPassword(password, confirm *string) error
}

type huhPrompter struct{}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

func (huhPrompter) Credentials(email, password *string) error {
	var fields []huh.Field
	if *email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Value(email).
			Validate(required("email")))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password).
			Validate(required("password")))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...).Title("Sign in to billing admin")).Run()
}

func (huhPrompter) Code(code *string) error {
	if *code != "" {
		return nil
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("One-time code").
				Description("Enter the code sent to you").
				CharLimit(12).
				Value(code).
				Validate(required("code")),
		),
	).Run()
}

func (huhPrompter) NewPassword(password, confirm *string) error {
	if *password != "" && *confirm != "" {
		return nil
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("New password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(required("password")),
			huh.NewInput().
				Title("Confirm new password").
				EchoMode(huh.EchoModePassword).
				Value(confirm).
				Validate(func(s string) error {
					if s != *password {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		),
	).Run()
}
