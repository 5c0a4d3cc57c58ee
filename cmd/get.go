package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Zerofisher/megatable/internal/app"
	"github.com/Zerofisher/megatable/internal/config"
	"github.com/Zerofisher/megatable/pkg/query"
)

var getCmd = &cobra.Command{
	Use:     "get <id>",
	Short:   "Print one full record",
	GroupID: "query",
	Args:    cobra.ExactArgs(1),
	RunE:    runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	settings, _, err := setup(config.Settings{})
	if err != nil {
		return err
	}
	client, err := app.OpenStore(settings)
	if err != nil {
		return err
	}
	svc, err := app.NewQueryService(client, settings)
	if err != nil {
		return err
	}

	detail, err := svc.GetDetail(cmd.Context(), args[0])
	if errors.Is(err, query.ErrNotFound) {
		return fmt.Errorf("no record with id %q", args[0])
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(detail.Record)
}
