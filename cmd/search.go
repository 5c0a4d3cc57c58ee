package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Zerofisher/megatable/internal/app"
	"github.com/Zerofisher/megatable/internal/config"
	"github.com/Zerofisher/megatable/pkg/query"
)

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search records by name or email",
	Long: `Search records whose name or email contains term, one page at a time.

Without a term every record matches. The next page's cursor is printed at the
end; pass it back with --cursor, or use --all to walk every page.`,
	Example: `  megatable search ali
  megatable search ali --cursor 01HZX3... --limit 100
  megatable search --all --json > dump.ndjson`,
	GroupID: "query",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runSearch,
}

var (
	searchCursor        string
	searchLimit         int
	searchAll           bool
	searchJSON          bool
	searchCaseSensitive bool
)

func init() {
	searchCmd.Flags().StringVar(&searchCursor, "cursor", "", "Return records with id greater than cursor")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", query.DefaultLimit, "Page size")
	searchCmd.Flags().BoolVar(&searchAll, "all", false, "Follow cursors until the last page")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print one JSON summary per line")
	searchCmd.Flags().BoolVar(&searchCaseSensitive, "case-sensitive", false, "Match term case-sensitively")
}

func runSearch(cmd *cobra.Command, args []string) error {
	settings, _, err := setup(config.Settings{
		Server: config.ServerSettings{CaseSensitive: searchCaseSensitive},
	})
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

	req := query.SearchRequest{Cursor: searchCursor, Limit: searchLimit}
	if len(args) > 0 {
		req.Term = args[0]
	}

	var (
		tw    *tabwriter.Writer
		enc   *json.Encoder
		total int
		last  *query.Page
	)
	if searchJSON {
		enc = json.NewEncoder(os.Stdout)
	} else {
		tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
	}

	printPage := func(page *query.Page) error {
		for _, s := range page.Rows {
			if enc != nil {
				if err := enc.Encode(s); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Email, s.Role)
		}
		total += page.Count
		last = page
		return nil
	}

	if searchAll {
		err = query.Each(cmd.Context(), svc, req, printPage)
	} else {
		var page *query.Page
		page, err = svc.Search(cmd.Context(), req)
		if err == nil {
			err = printPage(page)
		}
	}
	if tw != nil {
		tw.Flush()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%d records", total)
	if last != nil {
		fmt.Fprintf(os.Stderr, " in %v", last.Latency.Round(time.Millisecond))
		if last.HasMore && last.NextCursor != nil {
			fmt.Fprintf(os.Stderr, ", next cursor: %s", *last.NextCursor)
		}
	}
	fmt.Fprintln(os.Stderr)
	return nil
}
