package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"calgrid/internal/calendar"
	"calgrid/internal/capture"
	"calgrid/internal/config"
	"calgrid/internal/ics"
	appLog "calgrid/internal/log"
	"calgrid/internal/page"
	"calgrid/internal/schedule"
	"calgrid/internal/server"
	"calgrid/internal/source"
)

// options holds CLI flag values.
type options struct {
	configPath string
	output     string
	listen     string
	pngPath    string
	debug      bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "calgrid",
		Short:        "Render calendar feeds as an HTML week grid",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to config file (created with defaults if missing)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the rendered table to this file")
	cmd.Flags().StringVarP(&opts.listen, "server", "s", "", "Serve the calendar on this address (overrides config listen)")
	cmd.Flags().StringVar(&opts.pngPath, "png", "", "Write a PNG screenshot of the calendar to this file (needs Chromium)")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	return cmd
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	conf, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", opts.configPath, err)
	}

	level := appLog.ParseLevel(conf.LogLevel)
	if opts.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)
	appLog.Info("calgrid starting", "version", version)

	// CLI --server overrides config file listen if provided.
	if opts.listen != "" {
		conf.Listen = opts.listen
	}

	appLog.Info("effective config",
		"config_path", opts.configPath,
		"render", conf.RenderConfig(),
		"timezone", conf.Location(),
		"listen", conf.Listen,
		"refresh", conf.Refresh,
		"calendars", len(conf.Calendars),
		"output", opts.output,
		"png", opts.pngPath,
	)

	feeds, err := source.Feeds(conf.Calendars, source.NewFetcher(nil))
	if err != nil {
		return err
	}
	parser := &ics.Parser{Expand: expandSet(conf.Calendars), Location: conf.Location()}

	if conf.Listen == "" {
		today := calendar.DateOf(time.Now().In(conf.Location()))
		html, err := calendar.Render(ctx, conf.RenderConfig(), today, feeds, parser)
		if err != nil {
			return err
		}
		if opts.output == "" && opts.pngPath == "" {
			_, err := io.WriteString(stdout, html+"\n")
			return err
		}
		return publish(ctx, conf, opts, html)
	}

	srv := server.NewServer(conf, feeds, parser)
	srv.OnRender(func(html string) {
		if err := publish(ctx, conf, opts, html); err != nil {
			appLog.Error("publishing rendered calendar failed", err)
		}
	})

	if _, err := srv.Current(ctx); err != nil {
		appLog.Error("initial render failed; will retry on request", err)
	}

	if _, err := schedule.Start(ctx, "refresh", conf.Refresh, conf.Location(), srv.Refresh); err != nil {
		return err
	}

	return server.StartServer(ctx, srv)
}

// publish writes the rendered table to the output file and the PNG
// screenshot, whichever were requested. A failed file write is logged and
// does not stop the screenshot or the server.
func publish(ctx context.Context, conf *config.Config, opts options, html string) error {
	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(html), 0o644); err != nil {
			appLog.Error("cannot write calendar to file", err, "path", opts.output)
		} else {
			appLog.Info("calendar written", "path", opts.output, "bytes", len(html))
		}
	}
	if opts.pngPath != "" {
		css, err := os.ReadFile(conf.CSSPath)
		if err != nil {
			appLog.Warn("stylesheet unavailable, capturing without style", "path", conf.CSSPath, "err", err)
		}
		return capture.CapturePNG(ctx, capture.CaptureOptions{
			HTML:       page.Document(string(css), html),
			OutputPath: opts.pngPath,
		})
	}
	return nil
}

func expandSet(cals config.Calendars) map[string]bool {
	set := make(map[string]bool)
	for _, c := range cals {
		if c.ExpandRecurrences {
			set[c.Name] = true
		}
	}
	return set
}
