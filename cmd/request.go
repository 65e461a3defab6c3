package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vedsharma/apitester/internal/codec"
	"github.com/vedsharma/apitester/internal/format"
	httpclient "github.com/vedsharma/apitester/internal/http"
	"github.com/vedsharma/apitester/internal/model"
	"github.com/vedsharma/apitester/internal/session"
)

// requestFlags are the editor contents given on the command line
type requestFlags struct {
	headers     []string
	headersJSON string
	data        string
	redact      bool
}

var (
	reqFlags requestFlags
	tabName  string
	saveTo   string
)

func init() {
	for _, m := range model.Methods {
		method := m
		c := &cobra.Command{
			Use:   strings.ToLower(string(method)) + " <url>",
			Short: fmt.Sprintf("Send a %s request through the proxy", method),
			Args:  cobra.ExactArgs(1),
			Run:   runRequest(method),
		}
		addRequestFlags(c, &reqFlags)
		c.Flags().StringVar(&tabName, "tab", "body", "Response view: body, headers or raw")
		c.Flags().StringVar(&saveTo, "save", "", "Save the request to this collection (name or id)")
		rootCmd.AddCommand(c)
	}
}

func addRequestFlags(c *cobra.Command, f *requestFlags) {
	c.Flags().StringArrayVarP(&f.headers, "header", "H", []string{}, "Add header \"Key: Value\" (can be used multiple times)")
	c.Flags().StringVar(&f.headersJSON, "headers", "", "Headers as a JSON object")
	c.Flags().StringVarP(&f.data, "data", "d", "", "Request body (JSON string or @filename)")
	c.Flags().BoolVar(&f.redact, "redact", false, "Redact sensitive header values when saving to a collection")
}

func runRequest(method model.Method) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		tab, err := format.ParseTab(tabName)
		if err != nil {
			format.Fatal(err.Error())
		}

		a := mustOpenApp()
		defer a.Close()

		if err := compose(a.session, method, args[0], reqFlags); err != nil {
			format.Fatal(err.Error())
		}

		if saveTo != "" {
			warnIfSensitiveBody(a.session.Snapshot().BodyText, reqFlags.redact)
		}

		resp, ok := send(cmd.Context(), a.session)
		if !ok {
			a.Close()
			os.Exit(1)
		}
		format.Default().Response(resp, tab)

		if saveTo != "" {
			saveToCollection(a.session, saveTo, reqFlags.redact)
		}
	}
}

// compose loads the command-line request into the session editor
func compose(sess *session.Controller, method model.Method, url string, f requestFlags) error {
	if err := sess.SetMethod(string(method)); err != nil {
		return err
	}
	sess.SetURL(url)

	switch {
	case f.headersJSON != "" && len(f.headers) > 0:
		return errors.New("use either --headers or -H, not both")
	case f.headersJSON != "":
		sess.SetHeadersText(f.headersJSON)
	case len(f.headers) > 0:
		sess.SetHeadersText(codec.Format(parseHeaders(f.headers)))
	}

	body := f.data
	if strings.HasPrefix(body, "@") {
		content, err := readBodyFromFile(strings.TrimPrefix(body, "@"))
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		body = content
	}
	sess.SetBodyText(body)
	return nil
}

// send runs one send and prints the failure, if any. It reports whether a
// response is available.
func send(ctx context.Context, sess *session.Controller) (*model.Response, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := sess.Send(ctx)
	if err == nil {
		return resp, true
	}

	var eErr *httpclient.ExecutionError
	if errors.As(err, &eErr) {
		slog.Debug("proxy call failed", "error", err)
		format.Stderr.Banner(httpclient.ReachabilityMessage)
	} else {
		format.PrintError(session.SendMessage(err))
	}
	return nil, false
}

func saveToCollection(sess *session.Controller, ref string, redact bool) {
	col, ok := sess.FindCollection(ref)
	if !ok {
		if len(sess.Collections()) == 0 {
			format.PrintError(session.SaveMessage(model.ErrNoCollections))
		} else {
			format.PrintError(fmt.Sprintf("Collection '%s' not found", ref))
		}
		return
	}
	sess.SelectCollection(col.ID)

	if _, err := sess.SaveToCollection(redact); err != nil {
		format.PrintError(session.SaveMessage(err))
		return
	}
	format.PrintSuccess(fmt.Sprintf("Saved to collection '%s'", col.Name))
}

func parseHeaders(headerStrings []string) map[string]any {
	result := make(map[string]any)
	for _, h := range headerStrings {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// readBodyFromFile reads file content with path validation to prevent directory traversal
func readBodyFromFile(filename string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	if !withinDir(cleanPath, wd) {
		return "", fmt.Errorf("access denied: file must be within current directory")
	}

	// The symlink target must also stay inside the working directory
	realPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		realPath = cleanPath
	} else if !withinDir(realPath, wd) {
		return "", fmt.Errorf("access denied: symlink target must be within current directory")
	}

	content, err := os.ReadFile(realPath)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func withinDir(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

// sensitiveBodyPatterns contains patterns that suggest sensitive data in request bodies
var sensitiveBodyPatterns = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey",
	"private_key", "privatekey",
	"credit_card", "creditcard", "card_number",
	"ssn", "social_security",
	"access_token", "refresh_token",
	"client_secret", "auth",
}

// warnIfSensitiveBody warns before a body that looks sensitive is written to
// a collection. Redaction covers headers only, so the body is stored as is.
func warnIfSensitiveBody(body string, redact bool) bool {
	if body == "" {
		return false
	}

	lowerBody := strings.ToLower(body)
	for _, pattern := range sensitiveBodyPatterns {
		if strings.Contains(lowerBody, pattern) {
			format.Stderr.Notice("Request body may contain sensitive data (e.g., passwords, tokens). It will be stored in the collection as is.")
			if !redact {
				format.Stderr.Notice("Use --redact to at least mask sensitive header values.")
			}
			return true
		}
	}
	return false
}
