package main

import (
	"fmt"

	"github.com/SergeiKhy/timewatch-admin/internal/repository"
	"github.com/SergeiKhy/timewatch-admin/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCreateAdminCmd() *cobra.Command {
	var username, password, nickname string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create or reset an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			auth := service.NewAuthService(repository.NewUserRepository(a.mongo), a.logger)
			user, err := auth.CreateAdmin(ctx, username, password, nickname)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "admin %q is ready\n", user.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 8 characters")
	cmd.Flags().StringVar(&nickname, "nickname", "", "display name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// newBackfillCmd заполняет normalizedDomain у старых записей и печатает конфликты
func newBackfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-domains",
		Short: "Fill normalizedDomain for legacy mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			cacheRepo, closeCache := a.cache(ctx)
			defer closeCache()

			mappings := service.NewMappingService(repository.NewMappingRepository(a.mongo), cacheRepo, a.logger)
			fixed, conflicts, err := mappings.Backfill(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "normalized %d mapping(s)\n", fixed)
			for _, m := range conflicts {
				fmt.Fprintf(out, "conflict: %s %q domain=%q\n", m.ID.Hex(), m.Name, m.Domain)
			}
			if len(conflicts) > 0 {
				a.logger.Warn("Backfill left conflicting mappings", zap.Int("conflicts", len(conflicts)))
				return fmt.Errorf("%d mapping(s) need manual review", len(conflicts))
			}

			if err := a.mongo.EnsureIndexes(ctx); err != nil {
				return err
			}
			return nil
		},
	}
}
