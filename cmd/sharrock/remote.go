package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/axilent/sharrock/client"
)

// Flags shared by the commands talking to a running server.
var (
	serverURL  string
	appLabel   string
	apiVersion string
	basicUser  string
	basicPass  string
	bearer     string
	timeout    time.Duration

	callParams []string
	callData   string
	callMethod string
)

var callCmd = &cobra.Command{
	Use:   "call <service>",
	Short: "Call a remote service",
	Long: `Call a remote service by name.

The client fetches the service description first and checks the params
locally, so a missing or badly typed param fails without a round trip.

Examples:
  sharrock call helloworld -p name=Loren
  sharrock call adder --data '{"numbers": [1, 2, 3]}'
  sharrock call basicwhoami --app sharrock_secure_example --user bob --password secret`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

var describeCmd = &cobra.Command{
	Use:   "describe <service>",
	Short: "Print the self-description of a remote service",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

var dirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the services one app version exposes",
	Args:  cobra.NoArgs,
	RunE:  runDir,
}

func init() {
	for _, cmd := range []*cobra.Command{callCmd, describeCmd, dirCmd} {
		rootCmd.AddCommand(cmd)

		f := cmd.Flags()
		f.StringVar(&serverURL, "url", "http://localhost:8000", "server base URL")
		f.StringVar(&appLabel, "app", "sharrock_example", "application label")
		f.StringVar(&apiVersion, "api-version", "1.0", "API version")
		f.StringVar(&basicUser, "user", "", "basic auth user")
		f.StringVar(&basicPass, "password", "", "basic auth password")
		f.StringVar(&bearer, "token", "", "bearer token")
		f.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	}

	callCmd.Flags().StringArrayVarP(&callParams, "param", "p", nil, "param as name=value, repeat a name for lists")
	callCmd.Flags().StringVar(&callData, "data", "", "JSON request body")
	callCmd.Flags().StringVarP(&callMethod, "method", "X", "", "HTTP method (default GET, or POST with --data)")
}

func newClient() *client.Client {
	opts := []client.Option{
		client.WithHTTPClient(&http.Client{Timeout: timeout}),
		client.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))),
	}
	if basicUser != "" {
		opts = append(opts, client.WithBasicAuth(basicUser, basicPass))
	}
	if bearer != "" {
		opts = append(opts, client.WithBearerToken(bearer))
	}
	return client.New(serverURL, appLabel, apiVersion, opts...)
}

// parseParams turns name=value pairs into a params mapping. A repeated name
// becomes a list.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("param %q: expected name=value", pair)
		}
		switch prev := params[name].(type) {
		case nil:
			params[name] = value
		case string:
			params[name] = []string{prev, value}
		case []string:
			params[name] = append(prev, value)
		}
	}
	return params, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	params, err := parseParams(callParams)
	if err != nil {
		return err
	}

	opts := []client.CallOption{client.WithParams(params)}
	if callData != "" {
		var data any
		if err := json.Unmarshal([]byte(callData), &data); err != nil {
			return fmt.Errorf("--data: %w", err)
		}
		opts = append(opts, client.WithData(data))
	}
	if callMethod != "" {
		opts = append(opts, client.WithMethod(strings.ToUpper(callMethod)))
	}

	res, err := newClient().Call(cmd.Context(), args[0], opts...)
	if err != nil {
		return err
	}
	if res.Deprecated() {
		fmt.Fprintf(cmd.ErrOrStderr(), "deprecated: %s\n", res.Deprecation)
	}
	_, err = cmd.OutOrStdout().Write(append(res.Raw, '\n'))
	return err
}

func runDescribe(cmd *cobra.Command, args []string) error {
	desc, err := newClient().Describe(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), desc)
}

func runDir(cmd *cobra.Command, _ []string) error {
	dir, err := newClient().Directory(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), dir)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
