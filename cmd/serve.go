package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/warranty-intake/internal/claims"
	"github.com/sells-group/warranty-intake/internal/gatekeeper"
	"github.com/sells-group/warranty-intake/internal/ingest"
	"github.com/sells-group/warranty-intake/internal/model"
	"github.com/sells-group/warranty-intake/internal/notify"
	"github.com/sells-group/warranty-intake/internal/resolve"
	"github.com/sells-group/warranty-intake/internal/store"
	"github.com/sells-group/warranty-intake/pkg/vapi"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the call-intake webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		var vendor vapi.Client
		if cfg.Vapi.Key != "" {
			var opts []vapi.Option
			if cfg.Vapi.BaseURL != "" {
				opts = append(opts, vapi.WithBaseURL(cfg.Vapi.BaseURL))
			}
			vendor = vapi.NewClient(cfg.Vapi.Key, opts...)
		}

		var dispatcher notify.Dispatcher = notify.Nop{}
		if cfg.Notify.WebhookURL != "" {
			dispatcher = notify.NewWebhook(cfg.Notify)
		}

		gk := gatekeeper.New(s, cfg.Gatekeeper)
		pipeline := ingest.NewPipeline(
			s,
			vendor,
			resolve.New(cfg.Resolver.SimilarityThreshold),
			claims.NewCreator(s, cfg.Claims.DedupWindow),
			dispatcher,
			cfg.Ingest,
		)

		r := chi.NewRouter()
		r.Use(requestLogger)
		if len(cfg.Server.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: cfg.Server.CORSOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost},
			}))
		}

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/webhook/call-start", func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
				return
			}

			directive, err := gk.Decide(r.Context(), body, r.Header)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			writeJSON(w, http.StatusOK, directive)
		})

		r.Post("/webhook/call-report", func(w http.ResponseWriter, r *http.Request) {
			if err := pipeline.Authenticate(r.Header); err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
			if err == nil {
				if err := pipeline.Process(r.Context(), body); err != nil {
					// Internal failures are logged, never surfaced: a non-2xx
					// here would put the vendor into a retry storm.
					zap.L().Error("call report processing failed", zap.Error(err))
				}
			}
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		})

		r.Get("/calls", func(w http.ResponseWriter, r *http.Request) {
			filter := model.CallFilter{Intent: r.URL.Query().Get("intent")}
			if v := r.URL.Query().Get("verified"); v != "" {
				verified, err := strconv.ParseBool(v)
				if err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid verified param"})
					return
				}
				filter.Verified = &verified
			}
			if v := r.URL.Query().Get("limit"); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					filter.Limit = n
				}
			}

			records, err := s.ListCallRecords(r.Context(), filter)
			if err != nil {
				zap.L().Error("list call records failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"calls": records})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs each request with method, path, and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
