package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/goodtune/fleethours/internal/storage"
	"github.com/goodtune/fleethours/internal/storage/redis"
	"github.com/spf13/cobra"
)

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "Manage display names for targets and locations",
	Long: `Display names are stored in Redis and used to label report rows (targets)
and report sections (locations). KIND is either "target" or "location".`,
}

var namesSetCmd = &cobra.Command{
	Use:   "set KIND ID NAME",
	Short: "Set a display name",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNameStore(args[0], func(store *redis.Store, kind storage.NameKind) error {
			if args[2] == "" {
				return fmt.Errorf("name must not be empty")
			}
			if err := store.Names().SetName(cmd.Context(), kind, args[1], args[2]); err != nil {
				return err
			}
			_, _ = color.New(color.FgGreen).Printf("✅ %s %s = %q\n", kind, args[1], args[2])
			return nil
		})
	},
}

var namesGetCmd = &cobra.Command{
	Use:   "get KIND ID...",
	Short: "Show display names",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNameStore(args[0], func(store *redis.Store, kind storage.NameKind) error {
			names, err := store.Names().GetNames(cmd.Context(), kind, args[1:])
			if err != nil {
				return err
			}
			missing := color.New(color.FgYellow)
			for _, id := range args[1:] {
				if name, ok := names[id]; ok {
					fmt.Printf("%s\t%s\n", id, name)
				} else {
					_, _ = missing.Printf("%s\t(no name)\n", id)
				}
			}
			return nil
		})
	},
}

var namesDeleteCmd = &cobra.Command{
	Use:   "delete KIND ID",
	Short: "Remove a display name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNameStore(args[0], func(store *redis.Store, kind storage.NameKind) error {
			err := store.Names().DeleteName(cmd.Context(), kind, args[1])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no %s name set for %s", kind, args[1])
			}
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %s name for %s\n", kind, args[1])
			return nil
		})
	},
}

var namesListCmd = &cobra.Command{
	Use:   "list KIND",
	Short: "List all display names of a kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNameStore(args[0], func(store *redis.Store, kind storage.NameKind) error {
			names, err := store.Names().ListNames(cmd.Context(), kind)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(names))
			for id := range names {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Printf("%s\t%s\n", id, names[id])
			}
			if len(ids) == 0 {
				_, _ = color.New(color.FgYellow).Printf("No %s names set\n", kind)
			}
			return nil
		})
	},
}

func init() {
	namesCmd.AddCommand(namesSetCmd, namesGetCmd, namesDeleteCmd, namesListCmd)
	rootCmd.AddCommand(namesCmd)
}

// withNameStore opens Redis for a single name command
func withNameStore(kindArg string, fn func(*redis.Store, storage.NameKind) error) error {
	kind, err := storage.ParseNameKind(kindArg)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	return fn(store, kind)
}
