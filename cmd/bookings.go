package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teemow/calendarassist/internal/calendar"
	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/logging"
	"github.com/teemow/calendarassist/internal/session"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func newBookingsCmd() *cobra.Command {
	var (
		cfg          appConfig
		userID       string
		connectionID string
		partition    string
		limit        int
		output       string
	)

	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Print bookings for an existing calendar connection",
		Long: `Run the event query once and print the resulting bookings.

The user id and connected-account handle are the values the HTTP API keeps
in the calendar_user_id and calendar_connection_id cookies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyEnv(cmd, appEnvBindings); err != nil {
				return err
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			p, err := calendar.ParsePartition(partition)
			if err != nil {
				return err
			}
			if output != outputTable && output != outputJSON {
				return fmt.Errorf("unknown output format %q (want %s or %s)", output, outputTable, outputJSON)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.UpstreamTimeout)
			defer cancel()

			bookings, err := runBookings(ctx, cfg, calendar.Query{Partition: p, Limit: limit}, session.Linkage{
				UserID:       userID,
				ConnectionID: connectionID,
			})
			if err != nil {
				return err
			}
			return writeBookings(cmd.OutOrStdout(), output, bookings)
		},
	}

	addAppFlags(cmd, &cfg)
	cmd.Flags().StringVar(&userID, "user-id", "", "User id of the connection")
	cmd.Flags().StringVar(&connectionID, "connection-id", "", "Connected-account handle")
	cmd.Flags().StringVar(&partition, "partition", string(calendar.PartitionFuture), "Which bookings to list: future or past")
	cmd.Flags().IntVar(&limit, "limit", calendar.DefaultLimit, fmt.Sprintf("Number of bookings (1-%d)", calendar.MaxLimit))
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table or json")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("connection-id")

	return cmd
}

func runBookings(ctx context.Context, cfg appConfig, q calendar.Query, link session.Linkage) ([]calendar.Booking, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.NewLogger(os.Stderr, cfg.Debug, cfg.LogFormat)

	svc, err := newServices(cfg, observability{
		logger:  logger,
		metrics: &instrumentation.Metrics{},
		audit:   instrumentation.NewAuditLoggerWithConfig(logger, instrumentation.AuditLoggingConfig{Enabled: cfg.Debug}),
	})
	if err != nil {
		return nil, err
	}
	return svc.bookings.ListBookings(ctx, q, link)
}

// writeBookings prints bookings as a table or as the JSON the HTTP API returns.
func writeBookings(w io.Writer, format string, bookings []calendar.Booking) error {
	if bookings == nil {
		bookings = []calendar.Booking{}
	}

	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Bookings []calendar.Booking `json:"bookings"`
		}{bookings})
	}

	if len(bookings) == 0 {
		_, err := fmt.Fprintln(w, "No bookings found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tDURATION\tTITLE\tATTENDEES")
	for _, b := range bookings {
		attendees := "-"
		if len(b.Attendees) > 0 {
			attendees = strings.Join(b.Attendees, ", ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Time, b.Duration, b.Title, attendees)
	}
	return tw.Flush()
}
