package clientcmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/serhalp/queue-and-eh/pkg/client"
)

// BaseURLFunc resolves the server address at command run time, so flags and
// environment are read after parsing.
type BaseURLFunc func() string

// NewRoot constructs the client command groups.
func NewRoot(baseURL BaseURLFunc) []*cobra.Command {
	return []*cobra.Command{
		NewEventCommand(baseURL),
		NewQuestionCommand(baseURL),
		NewWatchCommand(baseURL),
	}
}

func newClient(baseURL BaseURLFunc) *client.Client {
	return client.New(baseURL())
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
