package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newSecretCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage API credentials",
	}

	cmd.AddCommand(newSecretSetCmd(app), newSecretDeleteCmd(app))

	return cmd
}

func newSecretSetCmd(app *app) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:       "set <todoist|openai>",
		Short:     "Store a credential in pass or the secrets directory",
		Long:      "Store a credential in pass or the secrets directory. Without --value the credential is read from stdin.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: secretNames(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretKey(app, args[0])
			if err != nil {
				return err
			}

			if value == "" {
				data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxStdinBytes))
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				value = strings.TrimSpace(string(data))
			}
			if value == "" {
				return errors.New("secret value is empty")
			}

			if err := app.secretStore.Put(cmd.Context(), key, value); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Stored %s credential.\n", args[0])
			return err
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "Credential value (default: read from stdin)")

	return cmd
}

func newSecretDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:       "delete <todoist|openai>",
		Short:     "Remove a stored credential",
		Args:      cobra.ExactArgs(1),
		ValidArgs: secretNames(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretKey(app, args[0])
			if err != nil {
				return err
			}

			if err := app.secretStore.Delete(cmd.Context(), key); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s credential.\n", args[0])
			return err
		},
	}
}

func secretKeys(app *app) map[string]string {
	return map[string]string{
		"todoist": app.cfg.Tracker.TokenKey,
		"openai":  app.cfg.Model.KeyKey,
	}
}

func secretNames(app *app) []string {
	names := make([]string, 0, 2)
	for name := range secretKeys(app) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func secretKey(app *app, name string) (string, error) {
	key, ok := secretKeys(app)[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown credential %q, use one of: %s", name, strings.Join(secretNames(app), ", "))
	}
	return key, nil
}
