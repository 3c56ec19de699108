package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/services"
	"github.com/yeremiapane/qr-restaurant/sessionstore"
)

// kiosk mode: a table tablet that remembers its session in a local directory
// instead of browser storage.

const defaultDeviceDir = ".tablectl-device"

func deviceStore(opts *rootOptions, dir string) *sessionstore.Store {
	return sessionstore.NewStore(
		[]sessionstore.Backend{sessionstore.NewFileBackend(dir), sessionstore.NewMemoryBackend()},
		sessionstore.WithTimeout(opts.cfg.SessionTimeout),
	)
}

func newScanCommand(opts *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "scan <restaurant-id> <table-id>",
		Short: "Scan a table QR code as a kiosk device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			restaurantID, tableID, err := parseIDs(args[0], args[1])
			if err != nil {
				return err
			}
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			scanner := services.NewScanCoordinator(services.NewSessionRegistry(db, opts.cfg.SessionTimeout))
			res, err := scanner.HandleScan(cmd.Context(), deviceStore(opts, dir), restaurantID, tableID)
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), res, func(w io.Writer) { printScan(w, res) })
		},
	}
	cmd.Flags().StringVar(&dir, "device-dir", defaultDeviceDir, "directory holding the kiosk's remembered session")
	return cmd
}

func printScan(w io.Writer, res *services.ScanResult) {
	fmt.Fprintf(w, "action: %s\n", res.Action)
	switch res.Action {
	case services.ActionRedirect:
		fmt.Fprintf(w, "session: %s\n", res.SessionID)
	case services.ActionShowConflict:
		c := res.ConflictSession
		fmt.Fprintf(w, "open session %s at table %d for %s (%.2f)\n", c.SessionID, c.TableID, c.CustomerName, c.TotalAmount)
	default:
		for _, o := range res.Options {
			if o.Kind == services.OptionNew {
				fmt.Fprintln(w, "  - new session")
				continue
			}
			fmt.Fprintf(w, "  - join %s (%s, %d orders, %.2f)\n", o.SessionID, o.CustomerName, o.OrderCount, o.TotalAmount)
		}
	}
	if res.Retryable {
		fmt.Fprintln(w, "backend unreachable, try again")
	}
}

func newStartCommand(opts *rootOptions) *cobra.Command {
	var (
		dir  string
		in   services.CreateSessionInput
		join string
	)

	cmd := &cobra.Command{
		Use:   "start <restaurant-id> <table-id>",
		Short: "Open a session at a table (or join one) and remember it on the kiosk",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tableID, err := parseIDs(args[0], args[1])
			if err != nil {
				return err
			}
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			scanner := services.NewScanCoordinator(services.NewSessionRegistry(db, opts.cfg.SessionTimeout))
			store := deviceStore(opts, dir)

			var sess *models.TableSession
			if join != "" {
				sess, err = scanner.JoinSession(cmd.Context(), store, join, tableID)
			} else {
				in.TableID = tableID
				sess, err = scanner.StartSession(cmd.Context(), store, in)
			}
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), sess, func(w io.Writer) {
				fmt.Fprintf(w, "session %s remembered in %s\n", sess.ID, dir)
			})
		},
	}
	cmd.Flags().StringVar(&dir, "device-dir", defaultDeviceDir, "directory holding the kiosk's remembered session")
	cmd.Flags().StringVar(&in.CustomerName, "name", "", "customer name")
	cmd.Flags().StringVar(&in.CustomerPhone, "phone", "", "customer phone")
	cmd.Flags().StringVar(&in.CustomerEmail, "email", "", "customer email")
	cmd.Flags().StringVar(&join, "join", "", "join this active session instead of opening a new one")
	return cmd
}

func newForgetCommand(opts *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Clear the session remembered by the kiosk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cleared := deviceStore(opts, dir).Clear()
			return opts.emit(cmd.OutOrStdout(), map[string]bool{"cleared": cleared}, func(w io.Writer) {
				if cleared {
					fmt.Fprintln(w, "device session cleared")
				} else {
					fmt.Fprintln(w, "could not clear device session")
				}
			})
		},
	}
	cmd.Flags().StringVar(&dir, "device-dir", defaultDeviceDir, "directory holding the kiosk's remembered session")
	return cmd
}
