package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/freelanceflow/freelanceflow-backend/pkg/communication"
	"github.com/freelanceflow/freelanceflow-backend/pkg/presentation"
	"github.com/freelanceflow/freelanceflow-backend/pkg/windows"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type options struct {
	api      string
	token    string
	interval time.Duration
	refresh  time.Duration
}

func main() {
	opts := options{}

	root := &cobra.Command{
		Use:   "windowwatch",
		Short: "Follow application windows of the FreelanceFlow API",
	}
	root.PersistentFlags().StringVar(&opts.api, "api", "http://localhost:80", "base URL of the API")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("FREELANCEFLOW_TOKEN"), "bearer token")

	watch := &cobra.Command{
		Use:   "watch [taskID]",
		Short: "Render the countdown of a task's application window until it is resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), opts, args[0])
		},
	}
	watch.Flags().DurationVar(&opts.interval, "interval", time.Second, "countdown tick")
	watch.Flags().DurationVar(&opts.refresh, "refresh", 10*time.Second, "how often the window is polled")

	trigger := &cobra.Command{
		Use:   "trigger",
		Short: "Run a sweep now, the token must be the scheduler secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.Context(), cmd.OutOrStdout(), opts, http.MethodPost, "/scheduler/trigger")
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the sweep scheduler status, the token must be the scheduler secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.Context(), cmd.OutOrStdout(), opts, http.MethodGet, "/scheduler/status")
		},
	}

	root.AddCommand(watch, trigger, status)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runWatch(ctx context.Context, out io.Writer, opts options, taskID string) error {
	watcher := presentation.Watcher{
		Clock:    presentation.RealClock{},
		Interval: opts.interval,
		Refresh:  opts.refresh,
		Fetch: func(ctx context.Context) (*windows.View, error) {
			view := windows.View{}
			err := request(ctx, opts, http.MethodGet, "/tasks/"+taskID+"/window", &view)
			return &view, err
		},
		Render: func(view *windows.View, countdown windows.Countdown) {
			line := fmt.Sprintf("%-17s %s", view.Phase, presentation.FormatCountdown(countdown))
			if countdown.IsNearExpiry {
				line += "  closing soon"
			}
			if view.CanExtend {
				line += fmt.Sprintf("  extendable (%d/%d used)", view.ExtensionsCount, view.MaxExtensions)
			}
			if view.AssigneeID != nil {
				line += "  assigned to " + view.AssigneeID.Hex()
			}
			_, _ = fmt.Fprintf(out, "\r%-80s", line)
		},
	}

	err := watcher.Run(ctx)
	_, _ = fmt.Fprintln(out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printJSON(ctx context.Context, out io.Writer, opts options, method string, path string) error {
	var body json.RawMessage
	err := request(ctx, opts, method, path, &body)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(body))
	return err
}

func request(ctx context.Context, opts options, method string, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(opts.api, "/")+path, nil)
	if err != nil {
		return err
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}

	client := http.Client{Timeout: 10 * time.Second}
	response, err := client.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		errorBody := communication.ErrorBody{}
		_ = json.NewDecoder(response.Body).Decode(&errorBody)
		if errorBody.Error.Reason != "" {
			return errors.Errorf("%d %s (%s)", response.StatusCode, errorBody.Error.Message, errorBody.Error.Reason)
		}
		return errors.Errorf("%d %s", response.StatusCode, errorBody.Error.Message)
	}

	return json.NewDecoder(response.Body).Decode(result)
}
