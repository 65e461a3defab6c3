package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vedsharma/apitester/internal/format"
	"github.com/vedsharma/apitester/internal/model"
	"github.com/vedsharma/apitester/internal/session"
)

var addFlags requestFlags

func init() {
	collectionCmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"col"},
		Short:   "Manage request collections",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all collections, newest first",
		Run:   runCollectionList,
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new collection",
		Args:  cobra.ExactArgs(1),
		Run:   runCollectionCreate,
	}

	showCmd := &cobra.Command{
		Use:   "show <name or id>",
		Short: "Show requests in a collection",
		Args:  cobra.ExactArgs(1),
		Run:   runCollectionShow,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name or id>",
		Short: "Delete a collection",
		Args:  cobra.ExactArgs(1),
		Run:   runCollectionDelete,
	}

	addCmd := &cobra.Command{
		Use:   "add <collection> <method> <url>",
		Short: "Save a request to a collection without sending it",
		Long: `Save a request to a collection without sending it.

Example:
  apitester collection add my-api GET https://api.example.com/users -H "Accept: application/json"`,
		Args: cobra.ExactArgs(3),
		Run:  runCollectionAdd,
	}
	addRequestFlags(addCmd, &addFlags)

	runCmd := &cobra.Command{
		Use:   "run <name or id>",
		Short: "Send every request in a collection",
		Args:  cobra.ExactArgs(1),
		Run:   runCollectionRun,
	}
	runCmd.Flags().StringVar(&tabName, "tab", "body", "Response view: body, headers or raw")

	collectionCmd.AddCommand(listCmd, createCmd, showCmd, deleteCmd, addCmd, runCmd)
	rootCmd.AddCommand(collectionCmd)
}

func runCollectionList(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()

	format.Default().CollectionList(a.session.Collections(), "")
}

func runCollectionCreate(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()

	col, err := a.session.CreateCollection(args[0])
	if err != nil {
		a.Close()
		format.Fatal(fmt.Sprintf("Failed to create collection: %v", err))
	}
	format.PrintSuccess(fmt.Sprintf("Collection '%s' created (%s)", col.Name, col.ID))
}

// mustFindCollection resolves a collection by id or name or exits
func mustFindCollection(a *app, ref string) model.Collection {
	col, ok := a.session.FindCollection(ref)
	if !ok {
		a.Close()
		format.Fatal(fmt.Sprintf("Collection '%s' not found", ref))
	}
	return col
}

func runCollectionShow(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()

	format.Default().CollectionItems(mustFindCollection(a, args[0]))
}

func runCollectionDelete(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()

	col := mustFindCollection(a, args[0])
	if err := a.session.DeleteCollection(col.ID); err != nil {
		a.Close()
		format.Fatal(fmt.Sprintf("Failed to delete collection: %v", err))
	}
	format.PrintSuccess(fmt.Sprintf("Collection '%s' deleted", col.Name))
}

func runCollectionAdd(cmd *cobra.Command, args []string) {
	method, err := model.ParseMethod(args[1])
	if err != nil {
		format.Fatal(err.Error())
	}

	a := mustOpenApp()
	defer a.Close()

	col := mustFindCollection(a, args[0])
	if err := compose(a.session, method, args[2], addFlags); err != nil {
		a.Close()
		format.Fatal(err.Error())
	}
	warnIfSensitiveBody(a.session.Snapshot().BodyText, addFlags.redact)

	a.session.SelectCollection(col.ID)
	if _, err := a.session.SaveToCollection(addFlags.redact); err != nil {
		a.Close()
		format.Fatal(session.SaveMessage(err))
	}
	format.PrintSuccess(fmt.Sprintf("Request added to collection '%s'", col.Name))
}

func runCollectionRun(cmd *cobra.Command, args []string) {
	tab, err := format.ParseTab(tabName)
	if err != nil {
		format.Fatal(err.Error())
	}

	a := mustOpenApp()
	defer a.Close()

	col := mustFindCollection(a, args[0])
	if len(col.Items) == 0 {
		a.Close()
		format.Fatal(fmt.Sprintf("Collection '%s' is empty", col.Name))
	}

	out := format.Default()
	fmt.Printf("Running %d requests from collection '%s'\n\n", len(col.Items), col.Name)

	failed := 0
	for i := range col.Items {
		if err := a.session.LoadSavedRequest(col.ID, i); err != nil {
			format.PrintError(err.Error())
			failed++
			continue
		}

		view := a.session.Snapshot()
		fmt.Printf("[%d/%d] %s %s\n", i+1, len(col.Items), view.Method, view.URL)

		resp, ok := send(commandContext(cmd), a.session)
		if !ok {
			failed++
			fmt.Println()
			continue
		}
		out.Response(resp, tab)
		fmt.Println()
	}

	if failed > 0 {
		a.Close()
		format.PrintError(fmt.Sprintf("%d of %d requests in '%s' failed", failed, len(col.Items), col.Name))
		os.Exit(1)
	}
	format.PrintSuccess(fmt.Sprintf("Completed running collection '%s'", col.Name))
}
