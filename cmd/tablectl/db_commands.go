package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/yeremiapane/qr-restaurant/database"
	"github.com/yeremiapane/qr-restaurant/services"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := database.Migrate(db); err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), map[string]string{"status": "migrated", "driver": opts.cfg.DBDriver},
				func(w io.Writer) { fmt.Fprintf(w, "schema migrated (%s)\n", opts.cfg.DBDriver) })
		},
	}
}

type seedSummary struct {
	RestaurantID uint   `json:"restaurant_id"`
	Restaurant   string `json:"restaurant"`
	Tables       []uint `json:"tables"`
	MenuItems    int    `json:"menu_items"`
	AdminEmail   string `json:"admin_email"`
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var seedOpts database.SeedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Migrate and write a demo restaurant, tables, menu and admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := database.Migrate(db); err != nil {
				return err
			}
			res, err := database.Seed(db, seedOpts)
			if err != nil {
				return err
			}

			out := seedSummary{
				RestaurantID: res.Restaurant.ID,
				Restaurant:   res.Restaurant.Name,
				MenuItems:    len(res.Menu),
				AdminEmail:   res.Admin.Email,
			}
			for _, t := range res.Tables {
				out.Tables = append(out.Tables, t.ID)
			}
			return opts.emit(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "restaurant %d %q\n", out.RestaurantID, out.Restaurant)
				fmt.Fprintf(w, "tables:     %d\n", len(out.Tables))
				fmt.Fprintf(w, "menu items: %d\n", out.MenuItems)
				fmt.Fprintf(w, "admin:      %s\n", out.AdminEmail)
			})
		},
	}

	cmd.Flags().StringVar(&seedOpts.RestaurantName, "restaurant", "", "restaurant name (default \"QR Bistro\")")
	cmd.Flags().IntVar(&seedOpts.TableCount, "tables", 10, "number of tables")
	cmd.Flags().StringVar(&seedOpts.AdminEmail, "admin-email", "", "admin login (default admin@example.com)")
	cmd.Flags().StringVar(&seedOpts.AdminPassword, "admin-password", "", "admin password")
	return cmd
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire every active session past its expiry time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			ids, err := services.NewSessionRegistry(db, opts.cfg.SessionTimeout).SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []string{}
			}
			return opts.emit(cmd.OutOrStdout(), map[string]interface{}{"expired": ids}, func(w io.Writer) {
				fmt.Fprintf(w, "expired %d session(s)\n", len(ids))
				for _, id := range ids {
					fmt.Fprintln(w, "  "+id)
				}
			})
		},
	}
}
