package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/listingloom/internal/importer"
	"github.com/KaramelBytes/listingloom/internal/server"
)

var (
	servePort     int
	serveOrigins  []string
	serveProvider string
	serveModel    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (import sessions, search, records, metrics)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		svc, _, err := buildSearch(cfg, st, searchOptions{Provider: serveProvider, Model: serveModel})
		if err != nil {
			return err
		}
		im := importer.New(st)
		router := server.NewRouter(server.Deps{
			Store:          st,
			Importer:       im,
			Sessions:       importer.NewSessions(im, cfg.BatchSize, 0, time.Duration(cfg.SessionTTLMin)*time.Minute),
			Search:         svc,
			PreviewLimit:   cfg.PreviewLimit,
			AllowedOrigins: serveOrigins,
			DetailPath:     cfg.DetailPath,
		})

		port := servePort
		if port <= 0 {
			port = cfg.ServerPort
		}
		return server.New(fmt.Sprintf(":%d", port), router).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from server_port)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origins (default *)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "LLM provider (default from config)")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "model name (default from config)")
}

