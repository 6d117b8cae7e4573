package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/storycast/internal/store"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage child account profiles",
	}
	cmd.AddCommand(userGetCmd())
	cmd.AddCommand(userSetCmd())
	return cmd
}

func withUserStore(cmd *cobra.Command, fn func(store.UserStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	users, closeUsers, err := openUserStore(cmd.Context(), cfg.Database.StoreConfig())
	if err != nil {
		return err
	}
	defer closeUsers()
	return fn(users)
}

func userGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <identity>",
		Short: "Show a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserStore(cmd, func(users store.UserStore) error {
				u, err := users.GetUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, _ := json.MarshalIndent(u, "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	}
}

func userSetCmd() *cobra.Command {
	var (
		yearOfBirth int
		voice       string
	)
	cmd := &cobra.Command{
		Use:   "set <identity>",
		Short: "Create or update a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.ValidateUserID(args[0]); err != nil {
				return err
			}
			if err := store.ValidateYearOfBirth(yearOfBirth, time.Now()); err != nil {
				return err
			}
			return withUserStore(cmd, func(users store.UserStore) error {
				u := &store.UserProfile{Identity: args[0], YearOfBirth: yearOfBirth, PreferredVoice: voice}
				if err := users.UpsertUser(cmd.Context(), u); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s.\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&yearOfBirth, "year-of-birth", 0, "child's year of birth (0 = unknown)")
	cmd.Flags().StringVar(&voice, "voice", "", "preferred product voice ID")
	return cmd
}
