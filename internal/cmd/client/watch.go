package clientcmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/serhalp/queue-and-eh/pkg/client"
)

// NewWatchCommand streams an event's live feed to stdout, one JSON line
// per push, reconnecting automatically.
func NewWatchCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <event-id>",
		Short: "Follow an event's live question and presence feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			country, _ := cmd.Flags().GetString("country")
			countryName, _ := cmd.Flags().GetString("country-name")
			filter, _ := cmd.Flags().GetString("filter")
			if userID == "" {
				userID = "cli-" + uuid.NewString()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stream, err := newClient(baseURL).Subscribe(ctx, args[0], client.StreamOptions{
				UserID:      userID,
				Country:     country,
				CountryName: countryName,
				Filter:      filter,
			})
			if err != nil {
				return err
			}
			defer stream.Close()

			for {
				select {
				case <-ctx.Done():
					return nil
				case upd, ok := <-stream.Updates():
					if !ok {
						return stream.Err()
					}
					var err error
					switch upd.Kind {
					case client.UpdateQuestions:
						err = printJSON(map[string]any{"questions": upd.Questions, "timestamp": upd.Timestamp})
					case client.UpdatePresence:
						err = printJSON(map[string]any{"presence": upd.Presence, "timestamp": upd.Timestamp})
					}
					if err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().String("user", "", "Viewer id (generated when empty)")
	cmd.Flags().String("country", "", "Viewer country code")
	cmd.Flags().String("country-name", "", "Viewer country name")
	cmd.Flags().String("filter", "", "CEL filter over questions, e.g. votes >= 2")
	return cmd
}
