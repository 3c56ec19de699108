package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/yeremiapane/qr-restaurant/services"
)

func newQRCommand(opts *rootOptions) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "qr <restaurant-id> <table-id>",
		Short: "Print the scan URL and QR image URL for a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			restaurantID, tableID, err := parseIDs(args[0], args[1])
			if err != nil {
				return err
			}
			if baseURL == "" {
				baseURL = opts.cfg.PublicBaseURL
			}
			qr := services.BuildTableQR(baseURL, restaurantID, tableID)
			return opts.emit(cmd.OutOrStdout(), qr, func(w io.Writer) {
				fmt.Fprintf(w, "table %d (restaurant %d)\n", qr.TableID, qr.RestaurantID)
				fmt.Fprintf(w, "scan:  %s\n", qr.ScanURL)
				fmt.Fprintf(w, "image: %s\n", qr.ImageURL)
			})
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "public base URL (default PUBLIC_BASE_URL)")
	return cmd
}

func parseIDs(restaurant, table string) (uint, uint, error) {
	rid, err := strconv.ParseUint(restaurant, 10, 64)
	if err != nil || rid == 0 {
		return 0, 0, fmt.Errorf("invalid restaurant id %q", restaurant)
	}
	tid, err := strconv.ParseUint(table, 10, 64)
	if err != nil || tid == 0 {
		return 0, 0, fmt.Errorf("invalid table id %q", table)
	}
	return uint(rid), uint(tid), nil
}
