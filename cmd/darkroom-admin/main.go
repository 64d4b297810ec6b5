// ABOUTME: Admin CLI for a running darkroom: settings, pages and per-photo image settings
// ABOUTME: Talks to the JSON API over HTTP with a bearer token from DARKROOM_TOKEN or the token file

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/darkroom/internal/api"
	"github.com/2389/darkroom/internal/settings"
)

const banner = `
     _            _                                    _           _
  __| | __ _ _ __| | ___ __ ___   ___  _ __ ___       __ _  __| |_ __ ___ (_)_ __
 / _' |/ _' | '__| |/ / '__/ _ \ / _ \| '_ ' _ \ ___ / _' |/ _' | '_ ' _ \| | '_ \
| (_| | (_| | |  |   <| | | (_) | (_) | | | | | |___| (_| | (_| | | | | | | | | | |
 \__,_|\__,_|_|  |_|\_\_|  \___/ \___/|_| |_| |_|    \__,_|\__,_|_| |_| |_|_|_| |_|
`

const (
	defaultURL     = "http://localhost:8080"
	requestTimeout = 10 * time.Second
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	c := newClient(getBaseURL(), getAPIPrefix(), getToken())
	if err := run(context.Background(), c, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client, args []string, stdin io.Reader, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "status":
		return cmdStatus(ctx, c, out)
	case "settings":
		return cmdSettings(ctx, c, rest, stdin, out)
	case "pages":
		return cmdPages(ctx, c, rest, stdin, out)
	case "photos":
		return cmdPhotos(ctx, c, rest, stdin, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage(out io.Writer) {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(out, banner)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: darkroom-admin <command> [args]")
	fmt.Fprintln(out)
	yellow.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  status                                 Check the server and your token")
	fmt.Fprintln(out, "  settings get <layout|images>           Print a settings category")
	fmt.Fprintln(out, "  settings set <layout|images> [json]    Update a category (json from stdin if omitted)")
	fmt.Fprintln(out, "  pages list                             List pages")
	fmt.Fprintln(out, "  pages get <id>                         Print a page")
	fmt.Fprintln(out, "  pages set <id> [json]                  Update page fields")
	fmt.Fprintln(out, "  photos settings get <id>               Print a photo's image settings")
	fmt.Fprintln(out, "  photos settings set <id> [json]        Replace a photo's image settings")
	fmt.Fprintln(out)
	yellow.Fprintln(out, "Environment:")
	fmt.Fprintln(out, "  DARKROOM_URL          Server URL (default: http://localhost:8080)")
	fmt.Fprintln(out, "  DARKROOM_TOKEN        Bearer token (default: read from the token file written by bootstrap)")
	fmt.Fprintln(out, "  DARKROOM_API_PREFIX   API mount point (default: /api)")
	fmt.Fprintln(out)
	yellow.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  export DARKROOM_TOKEN=\"$(darkroom token --username ansel)\"")
	fmt.Fprintln(out, "  darkroom-admin settings set layout '{\"gridColumns\": 4}'")
	fmt.Fprintln(out, "  darkroom-admin pages set <id> '{\"published\": true}'")
	fmt.Fprintln(out)
}

func getBaseURL() string {
	if u := os.Getenv("DARKROOM_URL"); u != "" {
		return strings.TrimSuffix(u, "/")
	}
	return defaultURL
}

func getAPIPrefix() string {
	if p := os.Getenv("DARKROOM_API_PREFIX"); p != "" {
		return "/" + strings.Trim(p, "/")
	}
	return api.DefaultPrefix
}

func getToken() string {
	// Check env var first
	if token := os.Getenv("DARKROOM_TOKEN"); token != "" {
		return token
	}

	// Try the file bootstrap writes next to the config
	var tokenPath string
	if cfg := os.Getenv("DARKROOM_CONFIG"); cfg != "" {
		tokenPath = filepath.Join(filepath.Dir(cfg), "token")
	} else {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return ""
			}
			configDir = filepath.Join(homeDir, ".config")
		}
		tokenPath = filepath.Join(configDir, "darkroom", "token")
	}

	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// client is a thin JSON client for the admin API.
type client struct {
	baseURL string
	prefix  string
	token   string
	http    *http.Client
}

func newClient(baseURL, prefix, token string) *client {
	return &client{
		baseURL: baseURL,
		prefix:  prefix,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// statusError is a non-2xx response, carrying the server's error message.
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

func (c *client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)
		return nil, &statusError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	return data, nil
}

func (c *client) api(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.token == "" {
		return nil, errors.New("DARKROOM_TOKEN is required (see darkroom token)")
	}
	return c.do(ctx, method, c.prefix+path, body)
}

// printJSON re-indents a JSON response for the terminal.
func printJSON(out io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = out.Write(data)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}

// jsonArg returns the inline JSON argument, or stdin when it is absent.
func jsonArg(args []string, stdin io.Reader) ([]byte, error) {
	var data []byte
	if len(args) > 0 {
		data = []byte(strings.Join(args, " "))
	} else {
		var err error
		if data, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("a JSON object is required")
	}
	if !json.Valid(data) {
		return nil, errors.New("argument is not valid JSON")
	}
	return data, nil
}

func cmdStatus(ctx context.Context, c *client, out io.Writer) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	fmt.Fprintln(out)
	cyan.Fprintln(out, "  darkroom status")
	cyan.Fprintln(out, "  ---------------")
	fmt.Fprintf(out, "  Server: %s\n", c.baseURL)

	if _, err := c.do(ctx, http.MethodGet, "/health", nil); err != nil {
		red.Fprintf(out, "  Health: %v\n\n", err)
		return fmt.Errorf("server is not healthy: %w", err)
	}
	green.Fprintln(out, "  Health: OK")

	if c.token == "" {
		red.Fprintln(out, "  Token:  not set")
		fmt.Fprintln(out)
		return nil
	}
	if _, err := c.api(ctx, http.MethodGet, "/settings/"+string(settings.Layout), nil); err != nil {
		red.Fprintf(out, "  Token:  %v\n\n", err)
		return fmt.Errorf("token rejected: %w", err)
	}
	green.Fprintln(out, "  Token:  accepted")
	fmt.Fprintln(out)
	return nil
}

func cmdSettings(ctx context.Context, c *client, args []string, stdin io.Reader, out io.Writer) error {
	if len(args) < 2 {
		return errors.New("usage: settings get|set <layout|images> [json]")
	}
	category, ok := settings.Parse(args[1])
	if !ok {
		return fmt.Errorf("unknown settings category %q (want layout or images)", args[1])
	}
	path := "/settings/" + string(category)

	switch args[0] {
	case "get":
		data, err := c.api(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		return printJSON(out, data)
	case "set":
		body, err := jsonArg(args[2:], stdin)
		if err != nil {
			return err
		}
		data, err := c.api(ctx, http.MethodPut, path, body)
		if err != nil {
			return err
		}
		return printJSON(out, data)
	default:
		return fmt.Errorf("unknown settings subcommand: %s", args[0])
	}
}

func cmdPages(ctx context.Context, c *client, args []string, stdin io.Reader, out io.Writer) error {
	if len(args) == 0 || args[0] == "list" {
		return listPages(ctx, c, out)
	}

	switch args[0] {
	case "get":
		if len(args) < 2 {
			return errors.New("usage: pages get <id>")
		}
		data, err := c.api(ctx, http.MethodGet, "/pages/"+args[1], nil)
		if err != nil {
			return err
		}
		return printJSON(out, data)
	case "set":
		if len(args) < 2 {
			return errors.New("usage: pages set <id> [json]")
		}
		body, err := jsonArg(args[2:], stdin)
		if err != nil {
			return err
		}
		data, err := c.api(ctx, http.MethodPut, "/pages/"+args[1], body)
		if err != nil {
			return err
		}
		return printJSON(out, data)
	default:
		return fmt.Errorf("unknown pages subcommand: %s", args[0])
	}
}

func listPages(ctx context.Context, c *client, out io.Writer) error {
	data, err := c.api(ctx, http.MethodGet, "/pages", nil)
	if err != nil {
		return err
	}
	var pages []api.PageSummary
	if err := json.Unmarshal(data, &pages); err != nil {
		return fmt.Errorf("decoding pages: %w", err)
	}

	if len(pages) == 0 {
		fmt.Fprintln(out, "No pages.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSLUG\tTITLE\tSTATE\tUPDATED")
	for _, p := range pages {
		state := "draft"
		if p.Published {
			state = "published"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Slug, p.Title, state, p.UpdatedAt)
	}
	return w.Flush()
}

func cmdPhotos(ctx context.Context, c *client, args []string, stdin io.Reader, out io.Writer) error {
	if len(args) < 3 || args[0] != "settings" {
		return errors.New("usage: photos settings get|set <id> [json]")
	}
	path := "/photos/" + args[2] + "/image-settings"

	switch args[1] {
	case "get":
		data, err := c.api(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		return printJSON(out, data)
	case "set":
		body, err := jsonArg(args[3:], stdin)
		if err != nil {
			return err
		}
		data, err := c.api(ctx, http.MethodPut, path, body)
		if err != nil {
			return err
		}
		return printJSON(out, data)
	default:
		return fmt.Errorf("unknown photos settings subcommand: %s", args[1])
	}
}
