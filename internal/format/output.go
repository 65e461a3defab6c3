package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/fatih/color"
	"github.com/vedsharma/apitester/internal/codec"
	"github.com/vedsharma/apitester/internal/model"
)

// sanitizeOutput removes or escapes potentially dangerous control characters
// that could manipulate terminal display or execute commands
func sanitizeOutput(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			result.WriteRune(r)
		case r == '\x1b':
			// Keep ANSI sequences visible instead of interpreted
			result.WriteString("\\x1b")
		case unicode.IsControl(r) && r < 0x20:
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		case r == 0x7F:
			result.WriteString("\\x7f")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

var (
	successColor   = color.New(color.FgGreen, color.Bold)
	redirectColor  = color.New(color.FgYellow, color.Bold)
	clientErrColor = color.New(color.FgRed, color.Bold)
	serverErrColor = color.New(color.FgRed, color.Bold, color.BgWhite)
	noticeColor    = color.New(color.FgYellow)
	headerKeyColor = color.New(color.FgCyan)
	methodColor    = color.New(color.FgMagenta, color.Bold)
	urlColor       = color.New(color.FgBlue)
	dimColor       = color.New(color.Faint)
)

// Tab selects which view of a response is printed
type Tab string

const (
	TabBody    Tab = "body"
	TabHeaders Tab = "headers"
	TabRaw     Tab = "raw"
)

// ParseTab validates a tab name; empty means body
func ParseTab(s string) (Tab, error) {
	switch Tab(strings.ToLower(strings.TrimSpace(s))) {
	case "", TabBody:
		return TabBody, nil
	case TabHeaders:
		return TabHeaders, nil
	case TabRaw:
		return TabRaw, nil
	}
	return "", fmt.Errorf("unknown tab %q (expected body, headers or raw)", s)
}

// Printer writes coloured output to a single writer
type Printer struct {
	out io.Writer
}

// NewPrinter creates a printer for w
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w}
}

var std = NewPrinter(color.Output)

// Stderr is the printer used for diagnostics that must not mix with response output
var Stderr = NewPrinter(color.Error)

// Default returns the stdout printer
func Default() *Printer {
	return std
}

// PrintSuccess prints a success message on stdout
func PrintSuccess(msg string) { std.Success(msg) }

// PrintError prints an error message on stderr
func PrintError(msg string) { Stderr.Error(msg) }

// Fatal prints an error message and exits with status 1
func Fatal(msg string) {
	PrintError(msg)
	os.Exit(1)
}

func (p *Printer) Success(msg string) {
	successColor.Fprintf(p.out, "✓ %s\n", sanitizeOutput(msg))
}

func (p *Printer) Error(msg string) {
	clientErrColor.Fprintf(p.out, "✗ %s\n", sanitizeOutput(msg))
}

// Notice prints an informational message that needs the user's attention
func (p *Printer) Notice(msg string) {
	noticeColor.Fprintf(p.out, "! %s\n", sanitizeOutput(msg))
}

// Banner prints the top-level failure banner shown when the proxy could not be reached
func (p *Printer) Banner(msg string) {
	line := strings.Repeat("=", len(msg)+4)
	clientErrColor.Fprintln(p.out, line)
	clientErrColor.Fprintf(p.out, "  %s\n", sanitizeOutput(msg))
	clientErrColor.Fprintln(p.out, line)
}

func getStatusColor(code int) *color.Color {
	switch {
	case code == 0:
		return dimColor
	case code >= 200 && code < 300:
		return successColor
	case code >= 300 && code < 400:
		return redirectColor
	case code >= 400 && code < 500:
		return clientErrColor
	default:
		return serverErrColor
	}
}

// Response prints the envelope summary followed by the chosen tab
func (p *Printer) Response(resp *model.Response, tab Tab) {
	if resp == nil {
		dimColor.Fprintln(p.out, "(no response)")
		return
	}

	statusColor := getStatusColor(resp.Status)
	statusColor.Fprintf(p.out, "Status: %d %s\n", resp.Status, sanitizeOutput(resp.StatusText))
	dimColor.Fprintf(p.out, "Time: %d ms\n", resp.TimeTaken)
	dimColor.Fprintf(p.out, "Size: %.2f KB\n", float64(resp.Size)/1024)
	if resp.ErrorMessage != "" {
		noticeColor.Fprintf(p.out, "Note: %s\n", sanitizeOutput(resp.ErrorMessage))
	}
	fmt.Fprintln(p.out)

	switch tab {
	case TabHeaders:
		p.headers(resp.Headers)
	case TabRaw:
		p.raw(resp.Raw)
	default:
		p.body(resp.Data)
	}
}

func (p *Printer) headers(headers map[string]string) {
	if len(headers) == 0 {
		dimColor.Fprintln(p.out, "(no headers)")
		return
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		headerKeyColor.Fprintf(p.out, "%s: ", sanitizeOutput(key))
		fmt.Fprintln(p.out, sanitizeOutput(headers[key]))
	}
}

func (p *Printer) body(data any) {
	if data == nil {
		dimColor.Fprintln(p.out, "(empty body)")
		return
	}
	fmt.Fprintln(p.out, sanitizeOutput(codec.Format(data)))
}

func (p *Printer) raw(raw json.RawMessage) {
	if len(raw) == 0 {
		dimColor.Fprintln(p.out, "(empty reply)")
		return
	}
	fmt.Fprintln(p.out, sanitizeOutput(prettyJSON(raw)))
}

func prettyJSON(b []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return string(b)
	}
	return out.String()
}

// HistoryList prints history entries in log order, at most limit of them
// when limit is positive
func (p *Printer) HistoryList(entries []model.HistoryEntry, limit int) {
	if len(entries) == 0 {
		dimColor.Fprintln(p.out, "No requests in history")
		return
	}

	count := len(entries)
	if limit > 0 && limit < count {
		count = limit
	}

	for i := 0; i < count; i++ {
		e := entries[i]
		dimColor.Fprintf(p.out, "[%d] ", i+1)
		methodColor.Fprintf(p.out, "%-7s ", displayMethod(e.Method))

		url := e.URL
		if len(url) > 60 {
			url = url[:57] + "..."
		}
		urlColor.Fprintf(p.out, "%-60s ", sanitizeOutput(url))

		if e.Status != nil {
			getStatusColor(*e.Status).Fprintf(p.out, "%d", *e.Status)
		} else {
			dimColor.Fprint(p.out, "-")
		}
		fmt.Fprintln(p.out)
	}

	if limit > 0 && len(entries) > limit {
		dimColor.Fprintf(p.out, "\n... and %d more requests\n", len(entries)-limit)
	}
}

// HistoryDetail prints one history entry in full
func (p *Printer) HistoryDetail(e model.HistoryEntry) {
	methodColor.Fprintf(p.out, "%s ", displayMethod(e.Method))
	urlColor.Fprintln(p.out, sanitizeOutput(e.URL))
	dimColor.Fprintf(p.out, "ID: %s\n", sanitizeOutput(string(e.ID)))
	if e.Timestamp != "" {
		dimColor.Fprintf(p.out, "Time: %s\n", sanitizeOutput(e.Timestamp))
	}
	if e.Status != nil {
		fmt.Fprint(p.out, "Status: ")
		getStatusColor(*e.Status).Fprintf(p.out, "%d\n", *e.Status)
	}
	p.section("Headers", e.Headers)
	p.section("Body", e.Body)
}

func (p *Printer) section(title string, v any) {
	if v == nil {
		return
	}
	fmt.Fprintf(p.out, "\n%s:\n", title)
	fmt.Fprintln(p.out, sanitizeOutput(codec.Format(v)))
}

func displayMethod(m string) string {
	if m == "" {
		return string(model.MethodGet)
	}
	return sanitizeOutput(strings.ToUpper(m))
}

// CollectionList prints collections in store order, marking the selected one
func (p *Printer) CollectionList(collections []model.Collection, selectedID string) {
	if len(collections) == 0 {
		dimColor.Fprintln(p.out, "No collections found")
		return
	}

	fmt.Fprintln(p.out, "Collections:")
	for _, col := range collections {
		marker := " "
		if col.ID == selectedID && selectedID != "" {
			marker = "*"
		}
		fmt.Fprintf(p.out, "%s ", marker)
		headerKeyColor.Fprintf(p.out, "%s ", sanitizeOutput(col.Name))
		dimColor.Fprintf(p.out, "(%d requests) %s\n", len(col.Items), col.ID)
	}
}

// CollectionItems prints the saved requests of one collection, newest first
func (p *Printer) CollectionItems(col model.Collection) {
	if len(col.Items) == 0 {
		dimColor.Fprintf(p.out, "Collection '%s' is empty\n", sanitizeOutput(col.Name))
		return
	}

	headerKeyColor.Fprintf(p.out, "Collection: %s\n", sanitizeOutput(col.Name))
	fmt.Fprintln(p.out, strings.Repeat("-", 40))

	for i, item := range col.Items {
		dimColor.Fprintf(p.out, "[%d] ", i+1)
		methodColor.Fprintf(p.out, "%s ", displayMethod(item.Method))
		urlColor.Fprint(p.out, sanitizeOutput(item.URL))
		if !item.SavedAt.IsZero() {
			dimColor.Fprintf(p.out, "  (saved %s)", item.SavedAt.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(p.out)
	}
}

// Composer prints the editor state of a session
func (p *Printer) Composer(method model.Method, url, headersText, bodyText string) {
	methodColor.Fprintf(p.out, "%s ", method)
	if url == "" {
		dimColor.Fprintln(p.out, "(no URL)")
	} else {
		urlColor.Fprintln(p.out, sanitizeOutput(url))
	}

	fmt.Fprintln(p.out, "\nHeaders:")
	fmt.Fprintln(p.out, sanitizeOutput(headersText))

	if method.AllowsBody() {
		fmt.Fprintln(p.out, "\nBody:")
		fmt.Fprintln(p.out, sanitizeOutput(bodyText))
	} else {
		dimColor.Fprintf(p.out, "\nBody: (not sent with %s)\n", method)
	}
}
