package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vedsharma/apitester/internal/format"
	httpclient "github.com/vedsharma/apitester/internal/http"
	"github.com/vedsharma/apitester/internal/session"
)

const shellHelp = `Commands:
  method <GET|POST|PUT|PATCH|DELETE>   set the request method
  url <url>                            set the target URL
  headers [json]                       set headers; without json, read lines until "."
  body [json]                          set the body; without json, read lines until "."
  show                                 show the editor and the last response
  send                                 send the request through the proxy
  tab <body|headers|raw>               choose the response view
  history                              list the backend history
  refresh                              reload the backend history
  load <n>                             load history entry n into the editor
  collections                          list collections (* marks the selection)
  new <name>                           create a collection and select it
  select <name|id>                     select a collection
  save [--redact]                      save the editor into the selected collection
  items [name|id]                      list requests in a collection
  open <name|id> <n>                   load request n of a collection into the editor
  delete <name|id>                     delete a collection
  help                                 show this help
  quit                                 leave the shell`

func init() {
	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive editing session",
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			if err := runShell(commandContext(cmd), cmd.InOrStdin(), cmd.OutOrStdout(), a.session); err != nil {
				format.PrintError(err.Error())
			}
		},
	}
	rootCmd.AddCommand(shellCmd)
}

type shell struct {
	ctx     context.Context
	sess    *session.Controller
	scanner *bufio.Scanner
	w       io.Writer
	out     *format.Printer
	tab     format.Tab
}

// runShell reads commands from in until EOF or quit
func runShell(ctx context.Context, in io.Reader, w io.Writer, sess *session.Controller) error {
	s := &shell{
		ctx:     ctx,
		sess:    sess,
		scanner: bufio.NewScanner(in),
		w:       w,
		out:     format.NewPrinter(w),
		tab:     format.TabBody,
	}
	s.scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	if err := sess.RefreshHistory(ctx); err != nil {
		s.out.Notice(fmt.Sprintf("History unavailable: %v", err))
	}
	fmt.Fprintln(w, `apitester shell. Type "help" for commands.`)

	for {
		fmt.Fprint(w, "> ")
		if !s.scanner.Scan() {
			fmt.Fprintln(w)
			return s.scanner.Err()
		}

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		name, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		if name == "quit" || name == "exit" {
			return nil
		}
		s.dispatch(name, rest)
	}
}

func (s *shell) dispatch(name, rest string) {
	switch name {
	case "help":
		fmt.Fprintln(s.w, shellHelp)
	case "method":
		if err := s.sess.SetMethod(rest); err != nil {
			s.out.Error(err.Error())
		}
	case "url":
		s.sess.SetURL(rest)
	case "headers":
		s.sess.SetHeadersText(s.readText(rest))
	case "body":
		s.sess.SetBodyText(s.readText(rest))
	case "show":
		s.show()
	case "send":
		s.send()
	case "tab":
		tab, err := format.ParseTab(rest)
		if err != nil {
			s.out.Error(err.Error())
			return
		}
		s.tab = tab
	case "history":
		s.history()
	case "refresh":
		if err := s.sess.RefreshHistory(s.ctx); err != nil {
			s.out.Notice(fmt.Sprintf("History unavailable: %v", err))
			return
		}
		s.history()
	case "load":
		n, ok := s.index(rest)
		if !ok {
			return
		}
		if err := s.sess.LoadHistoryEntry(n); err != nil {
			s.out.Error(err.Error())
			return
		}
		s.show()
	case "collections":
		view := s.sess.Snapshot()
		s.out.CollectionList(view.Collections, view.SelectedID)
	case "new":
		col, err := s.sess.CreateCollection(rest)
		if err != nil {
			s.out.Error(fmt.Sprintf("Failed to create collection: %v", err))
			return
		}
		s.out.Success(fmt.Sprintf("Collection '%s' created and selected", col.Name))
	case "select":
		s.selectCollection(rest)
	case "save":
		s.save(rest == "--redact")
	case "items":
		s.items(rest)
	case "open":
		s.open(rest)
	case "delete":
		col, ok := s.sess.FindCollection(rest)
		if !ok {
			s.out.Error(fmt.Sprintf("Collection '%s' not found", rest))
			return
		}
		if err := s.sess.DeleteCollection(col.ID); err != nil {
			s.out.Error(fmt.Sprintf("Failed to delete collection: %v", err))
			return
		}
		s.out.Success(fmt.Sprintf("Collection '%s' deleted", col.Name))
	default:
		s.out.Error(fmt.Sprintf("Unknown command %q. Type \"help\" for commands.", name))
	}
}

// readText returns inline text, or reads lines up to a lone "."
func (s *shell) readText(inline string) string {
	if inline != "" {
		return inline
	}

	fmt.Fprintln(s.w, `Enter JSON, end with a line containing only "."`)
	var lines []string
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if strings.TrimSpace(line) == "." {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (s *shell) index(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		s.out.Error(fmt.Sprintf("Expected a positive number, got %q", arg))
		return 0, false
	}
	return n - 1, true
}

func (s *shell) show() {
	view := s.sess.Snapshot()
	s.out.Composer(view.Method, view.URL, view.HeadersText, view.BodyText)
	fmt.Fprintln(s.w)

	if view.State == session.Sending {
		fmt.Fprintln(s.w, "Sending...")
	}
	if view.Banner != "" {
		s.out.Banner(view.Banner)
	}
	if view.FieldError != "" {
		s.out.Error(view.FieldError)
	}
	if view.Response != nil {
		s.out.Response(view.Response, s.tab)
	}
}

func (s *shell) send() {
	resp, err := s.sess.Send(s.ctx)
	if err != nil {
		var eErr *httpclient.ExecutionError
		if errors.As(err, &eErr) {
			s.out.Banner(httpclient.ReachabilityMessage)
			return
		}
		s.out.Error(session.SendMessage(err))
		return
	}
	s.out.Response(resp, s.tab)
}

func (s *shell) history() {
	view := s.sess.Snapshot()
	if view.HistoryLoading {
		fmt.Fprintln(s.w, "(refreshing history...)")
	}
	s.out.HistoryList(view.History, 0)
}

func (s *shell) selectCollection(ref string) {
	col, ok := s.sess.FindCollection(ref)
	if !ok {
		s.sess.SelectCollection("")
		s.out.Notice("No such collection; selection cleared.")
		return
	}
	s.sess.SelectCollection(col.ID)
	s.out.Success(fmt.Sprintf("Selected '%s'", col.Name))
}

func (s *shell) save(redact bool) {
	item, err := s.sess.SaveToCollection(redact)
	if err != nil {
		s.out.Notice(session.SaveMessage(err))
		return
	}
	col, _ := s.sess.SelectedCollection()
	s.out.Success(fmt.Sprintf("Saved %s %s to '%s'", item.Method, item.URL, col.Name))
}

func (s *shell) items(ref string) {
	if ref == "" {
		col, ok := s.sess.SelectedCollection()
		if !ok {
			s.out.Notice("Select a collection first.")
			return
		}
		s.out.CollectionItems(col)
		return
	}

	col, ok := s.sess.FindCollection(ref)
	if !ok {
		s.out.Error(fmt.Sprintf("Collection '%s' not found", ref))
		return
	}
	s.out.CollectionItems(col)
}

func (s *shell) open(args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		s.out.Error("Usage: open <name|id> <n>")
		return
	}

	ref := strings.Join(fields[:len(fields)-1], " ")
	n, ok := s.index(fields[len(fields)-1])
	if !ok {
		return
	}

	col, found := s.sess.FindCollection(ref)
	if !found {
		s.out.Error(fmt.Sprintf("Collection '%s' not found", ref))
		return
	}
	if err := s.sess.LoadSavedRequest(col.ID, n); err != nil {
		s.out.Error(err.Error())
		return
	}
	s.show()
}
