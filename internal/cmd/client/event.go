package clientcmd

import (
	"errors"

	"github.com/spf13/cobra"
)

// NewEventCommand groups event operations.
func NewEventCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "event", Short: "Event operations"}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new Q&A event",
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			description, _ := cmd.Flags().GetString("description")
			if title == "" {
				return errors.New("--title is required")
			}
			ev, err := newClient(baseURL).CreateEvent(cmd.Context(), title, description)
			if err != nil {
				return err
			}
			return printJSON(ev)
		},
	}
	createCmd.Flags().String("title", "", "Event title")
	createCmd.Flags().String("description", "", "Event description")
	cmd.AddCommand(createCmd)

	getCmd := &cobra.Command{
		Use:   "get <event-id>",
		Short: "Fetch event metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := newClient(baseURL).GetEvent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(ev)
		},
	}
	cmd.AddCommand(getCmd)

	return cmd
}
