package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/vedsharma/apitester/internal/format"
	"github.com/vedsharma/apitester/internal/model"
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "View the backend's request history",
		Run:   runHistoryList,
	}
	historyCmd.Flags().IntP("limit", "n", 10, "Number of requests to show (0 for all)")

	showCmd := &cobra.Command{
		Use:   "show <id or index>",
		Short: "Show full details of a history entry",
		Args:  cobra.ExactArgs(1),
		Run:   runHistoryShow,
	}

	replayCmd := &cobra.Command{
		Use:   "replay <id or index>",
		Short: "Load a history entry into the editor and send it again",
		Args:  cobra.ExactArgs(1),
		Run:   runHistoryReplay,
	}
	replayCmd.Flags().StringVar(&tabName, "tab", "body", "Response view: body, headers or raw")

	historyCmd.AddCommand(showCmd, replayCmd)
	rootCmd.AddCommand(historyCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadHistory opens the app and fetches the history log or exits
func loadHistory(cmd *cobra.Command) (*app, []model.HistoryEntry) {
	a := mustOpenApp()
	if err := a.session.RefreshHistory(commandContext(cmd)); err != nil {
		a.Close()
		format.Fatal(fmt.Sprintf("Failed to load history: %v", err))
	}
	return a, a.session.Snapshot().History
}

func runHistoryList(cmd *cobra.Command, args []string) {
	a, entries := loadHistory(cmd)
	defer a.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	format.Default().HistoryList(entries, limit)
}

func runHistoryShow(cmd *cobra.Command, args []string) {
	a, entries := loadHistory(cmd)
	defer a.Close()

	i, ok := findHistoryEntry(entries, args[0])
	if !ok {
		a.Close()
		format.Fatal(fmt.Sprintf("Request not found: %s", args[0]))
	}
	format.Default().HistoryDetail(entries[i])
}

func runHistoryReplay(cmd *cobra.Command, args []string) {
	tab, err := format.ParseTab(tabName)
	if err != nil {
		format.Fatal(err.Error())
	}

	a, entries := loadHistory(cmd)
	defer a.Close()

	i, ok := findHistoryEntry(entries, args[0])
	if !ok {
		a.Close()
		format.Fatal(fmt.Sprintf("Request not found: %s", args[0]))
	}
	if err := a.session.LoadHistoryEntry(i); err != nil {
		a.Close()
		format.Fatal(err.Error())
	}

	view := a.session.Snapshot()
	format.Default().Composer(view.Method, view.URL, view.HeadersText, view.BodyText)
	fmt.Println()

	resp, ok := send(commandContext(cmd), a.session)
	if !ok {
		a.Close()
		os.Exit(1)
	}
	format.Default().Response(resp, tab)
}

// findHistoryEntry resolves a 1-based index, falling back to an entry id
func findHistoryEntry(entries []model.HistoryEntry, identifier string) (int, bool) {
	if index, err := strconv.Atoi(identifier); err == nil {
		if index > 0 && index <= len(entries) {
			return index - 1, true
		}
	}

	for i, e := range entries {
		if string(e.ID) == identifier {
			return i, true
		}
	}
	return 0, false
}
