package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arciva/importer/api"
	"github.com/arciva/importer/internal/util"
	"github.com/arciva/importer/pkg/catalog"
	"github.com/arciva/importer/pkg/discovery"
	"github.com/arciva/importer/pkg/importer"
	"github.com/arciva/importer/pkg/pending"
	"github.com/arciva/importer/pkg/ui"
)

func main() {
	// The TUI owns stdout, so the default logger goes to a file.
	f, _ := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close log file", "error", err)
		}
	}()
	log.SetOutput(f)
	slog.SetDefault(slog.New(slog.NewTextHandler(f, nil)))

	var (
		serverURL    string
		sessionToken string
		projectID    string
	)

	cmd := &cobra.Command{
		Use:   "arciva-import",
		Short: "Upload photos and videos into an Arciva project",
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8870", "Backend base URL, or \"auto\" to discover one via mDNS")
	cmd.PersistentFlags().StringVar(&sessionToken, "token", os.Getenv("ARCIVA_SESSION_TOKEN"), "Session token (defaults to $ARCIVA_SESSION_TOKEN)")
	cmd.PersistentFlags().StringVar(&projectID, "project", "", "Destination project id")

	// resolveServer turns --server auto into the URL of the first backend
	// announced on the local network.
	resolveServer := func(ctx context.Context) (string, error) {
		if serverURL != "auto" {
			return serverURL, nil
		}
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		url, err := discovery.ResolveBackend(ctx, &discovery.MDNSAdapter{})
		if err != nil {
			return "", fmt.Errorf("cannot resolve a backend: %w", err)
		}
		slog.Info("resolved backend via mDNS", "url", url)
		return url, nil
	}

	var (
		concurrency      int
		sequential       bool
		ignoreDuplicates bool
	)
	importCmd := &cobra.Command{
		Use:   "import [paths...]",
		Short: "Import local files and directories into the project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				exists, _, err := util.CheckDirectory(path)
				if err != nil {
					return fmt.Errorf("cannot access %s: %w", path, err)
				}
				if !exists {
					return fmt.Errorf("no such file or directory: %s", path)
				}
			}

			items, warnings, err := pending.Scan(args)
			if err != nil {
				return fmt.Errorf("selection scan failed: %w", err)
			}
			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "skipping %s: %v\n", w.Path, w.Err)
			}
			if len(items) == 0 {
				return fmt.Errorf("nothing to import")
			}

			server, err := resolveServer(cmd.Context())
			if err != nil {
				return err
			}

			app := importer.NewApp(importer.Config{
				ServerURL:        server,
				SessionToken:     sessionToken,
				ProjectID:        projectID,
				Concurrency:      concurrency,
				Sequential:       sequential,
				IgnoreDuplicates: ignoreDuplicates,
			})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				if err := app.Run(ctx, items); err != nil {
					slog.Error("app loop ended", "error", err)
				}
			}()

			p := tea.NewProgram(ui.NewModel(app))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("ui error: %w", err)
			}
			return nil
		},
	}
	importCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Max uploads in flight (default 3)")
	importCmd.Flags().BoolVar(&sequential, "sequential", false, "Upload strictly one at a time; a failure blocks the rest of the batch")
	importCmd.Flags().BoolVar(&ignoreDuplicates, "ignore-duplicates", false, "Commit uploads even when the backend detects a duplicate")

	var parentID string
	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "List the project's remote catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := resolveServer(cmd.Context())
			if err != nil {
				return err
			}
			client := api.NewClient(server, sessionToken)
			browser := catalog.NewBrowser(client, projectID)
			defer browser.Close()

			entries, err := browser.List(cmd.Context(), parentID)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if e.IsDir {
					fmt.Printf("%s  %s/\n", e.ID, e.Name)
					continue
				}
				fmt.Printf("%s  %s  %s  %s\n", e.ID, e.Name, util.FormatSize(e.SizeBytes), e.Mime)
			}
			return nil
		},
	}
	browseCmd.Flags().StringVar(&parentID, "parent", "", "Catalog node to list (root when empty)")

	var discoverTimeout time.Duration
	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Find Arciva backends announced on the local network",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), discoverTimeout)
			defer cancel()

			adapter := &discovery.MDNSAdapter{}
			service := fmt.Sprintf("%s.%s.", discovery.DefaultServiceType, discovery.DefaultDomain)
			for result := range adapter.Discover(ctx, service) {
				if result.Error != nil {
					return result.Error
				}
				for _, svc := range result.Services {
					fmt.Printf("%s  http://%s:%d\n", svc.Name, svc.Addr, svc.Port)
				}
			}
			return nil
		},
	}
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 5*time.Second, "How long to browse for backends")

	var (
		stubPort     int
		stubMaxBytes int64
		announce     bool
	)
	stubCmd := &cobra.Command{
		Use:   "serve-stub",
		Short: "Run an in-memory development backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			stub := api.NewStubServer(stubMaxBytes)
			srv := &http.Server{
				Addr:    fmt.Sprintf(":%d", stubPort),
				Handler: stub.Handler(),
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				fmt.Printf("stub backend listening on :%d\n", stubPort)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if announce {
				g.Go(func() error {
					hostname, _ := os.Hostname()
					return (&discovery.MDNSAdapter{}).Announce(ctx, discovery.ServiceInfo{
						Name:   fmt.Sprintf("arciva-stub@%s", hostname),
						Type:   discovery.DefaultServiceType,
						Domain: discovery.DefaultDomain,
						Port:   stubPort,
					})
				})
			}
			return g.Wait()
		},
	}
	stubCmd.Flags().IntVar(&stubPort, "port", 8870, "Port to listen on")
	stubCmd.Flags().Int64Var(&stubMaxBytes, "max-bytes", 0, "Per-upload size quota (0 = unlimited)")
	stubCmd.Flags().BoolVar(&announce, "announce", true, "Announce the stub via mDNS")

	cmd.AddCommand(importCmd, browseCmd, discoverCmd, stubCmd)

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}
