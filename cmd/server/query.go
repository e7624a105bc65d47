package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hnproxy/internal/app"
	"hnproxy/internal/logger"
	"hnproxy/internal/stories"
)

var (
	flagPage     int
	flagPageSize int
	flagJSON     bool
)

var newestCmd = &cobra.Command{
	Use:   "newest [search]",
	Short: "Print a page of the newest stories",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(func(e *stories.Engine, q stories.Query) stories.Page {
			q.Search = strings.Join(args, " ")
			return e.Newest(cmd.Context(), q)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the newest stories by title, text and author",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(func(e *stories.Engine, q stories.Query) stories.Page {
			q.Query = strings.Join(args, " ")
			return e.Search(cmd.Context(), q)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{newestCmd, searchCmd} {
		c.Flags().IntVar(&flagPage, "page", 1, "page number")
		c.Flags().IntVar(&flagPageSize, "page-size", 20, "stories per page (max 100)")
		c.Flags().BoolVar(&flagJSON, "json", false, "print the page as JSON")
	}
}

func runQuery(run func(*stories.Engine, stories.Query) stories.Page) error {
	if flagPage < 1 || flagPageSize < 1 {
		return fmt.Errorf("page and page-size must be positive")
	}
	cfg, err := setup()
	if err != nil {
		return err
	}
	srv, err := app.NewServer(cfg, logger.Log)
	if err != nil {
		return err
	}

	q := stories.Query{Page: flagPage, PageSize: min(flagPageSize, cfg.Query.MaxPageSize)}
	page := run(srv.Engine(), q)

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, it := range page.Stories {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", it.ID, time.Unix(it.Time, 0).Format("2006-01-02 15:04"), it.By, it.Title)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\npage %d of %d (%d stories)\n", page.Page, page.TotalPages, page.TotalCount)
	return nil
}
