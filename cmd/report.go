package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zerofisher/megatable/internal/app"
	"github.com/Zerofisher/megatable/internal/config"
	"github.com/Zerofisher/megatable/internal/report"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	Short:   "Generate an overview report of the stored records",
	Long:    `Generate a report with the record count and the department and status breakdowns.`,
	GroupID: "query",
	Args:    cobra.NoArgs,
	RunE:    runReport,
}

var (
	reportFormat string
	reportOutput string
)

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "markdown", "Output format: markdown, json")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Output file (default: stdout)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
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

	data, err := report.Generate(cmd.Context(), svc, client.Endpoint())
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	// Output
	out := os.Stdout
	if reportOutput != "" && reportOutput != "-" {
		out, err = os.Create(reportOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer out.Close()
	}

	switch reportFormat {
	case "markdown", "md":
		return report.WriteMarkdown(out, data)
	case "json":
		return report.WriteJSON(out, data)
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}
