package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/sheetcalc/sheetcalc/internal/server"
	"github.com/sheetcalc/sheetcalc/internal/store"
)

func (c *cli) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve workbooks over HTTP",
		Long: `Serve workbooks over HTTP. Workbooks are stored in a bbolt database.

Routes:
  GET    /healthcheck
  GET    /api/v1/:sheet         list nonempty cells
  DELETE /api/v1/:sheet         delete a workbook
  GET    /api/v1/:sheet/:cell   get one cell
  POST   /api/v1/:sheet/:cell   set one cell, body {"value": "..."}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
	cmd.Flags().String(keyDB, "sheetcalc.db", "path to the workbook database")
	cmd.Flags().String(keyListen, ":8080", "listen address")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	logger := c.logger()
	if logger == nil {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := store.Open(c.v.GetString(keyDB), store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(st,
		server.WithLogger(logger),
		server.WithSheetOptions(c.sheetOptions()...),
	)
	httpServer := &http.Server{
		Addr:              c.v.GetString(keyListen),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if logger != nil {
			logger.Info("listening", slog.String("addr", httpServer.Addr))
		}
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
