package clientcmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/serhalp/queue-and-eh/pkg/client"
)

// NewQuestionCommand groups question operations.
func NewQuestionCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "question", Short: "Question operations"}

	listCmd := &cobra.Command{
		Use:   "list <event-id>",
		Short: "List questions sorted by votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qs, err := newClient(baseURL).Questions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(qs)
		},
	}
	cmd.AddCommand(listCmd)

	addCmd := &cobra.Command{
		Use:   "add <event-id>",
		Short: "Submit a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, _ := cmd.Flags().GetString("text")
			author, _ := cmd.Flags().GetString("author")
			if text == "" || author == "" {
				return errors.New("--text and --author are required")
			}
			q, err := newClient(baseURL).PostQuestion(cmd.Context(), args[0], text, author)
			if err != nil {
				return err
			}
			return printJSON(q)
		},
	}
	addCmd.Flags().String("text", "", "Question text")
	addCmd.Flags().String("author", "", "Author id")
	cmd.AddCommand(addCmd)

	voteCmd := &cobra.Command{
		Use:   "vote <event-id>",
		Short: "Vote or unvote on a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			questionID, _ := cmd.Flags().GetString("question")
			userID, _ := cmd.Flags().GetString("user")
			action, _ := cmd.Flags().GetString("action")
			if questionID == "" || userID == "" {
				return errors.New("--question and --user are required")
			}
			if action != client.ActionVote && action != client.ActionUnvote {
				return errors.New("--action must be vote or unvote")
			}
			q, err := newClient(baseURL).Vote(cmd.Context(), args[0], questionID, userID, action)
			if err != nil {
				return err
			}
			return printJSON(q)
		},
	}
	voteCmd.Flags().String("question", "", "Question id")
	voteCmd.Flags().String("user", "", "Voting user id")
	voteCmd.Flags().String("action", client.ActionVote, "vote|unvote")
	cmd.AddCommand(voteCmd)

	return cmd
}
