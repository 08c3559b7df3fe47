package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	perrors "github.com/partree/partree/pkg/errors"
	"github.com/partree/partree/pkg/pipeline"
)

const defaultServeAddr = ":8080"

// newServeCmd creates the serve command, which exposes the search pipeline
// over HTTP.
func newServeCmd() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve exposes the search pipeline over HTTP. Alignments are submitted as
JSON to POST /api/search and results are returned inline, with rendered
artifacts base64-encoded. Identical requests hit the shared cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(cmd.Context(), noCache)
			if err != nil {
				return err
			}
			if addr == defaultServeAddr {
				addr = configFromContext(cmd.Context()).serveAddr(addr)
			}
			return runServer(cmd.Context(), addr, runner)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultServeAddr, "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the result cache")

	return cmd
}

// runServer starts the HTTP server and shuts it down when ctx is cancelled.
func runServer(ctx context.Context, addr string, runner *pipeline.Runner) error {
	logger := loggerFromContext(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(runner),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// newRouter builds the chi router for the API.
func newRouter(runner *pipeline.Runner) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", handleHealth)
	r.Get("/version", handleVersion)
	r.Post("/api/search", handleSearch(runner))

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": version,
		"commit":  commit,
		"date":    date,
	})
}

// searchResponse is the JSON body returned by the search endpoint.
// Rendered artifacts are base64-encoded; the newick text is inline.
type searchResponse struct {
	*pipeline.Result
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// handleSearch runs the pipeline for a JSON-encoded options payload.
func handleSearch(runner *pipeline.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var opts pipeline.Options
		if err := json.NewDecoder(req.Body).Decode(&opts); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
		// Server-side runs never touch the local filesystem.
		opts.AlignmentPath = ""
		opts.Logger = nil

		res, err := runner.Execute(req.Context(), opts)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		resp := searchResponse{Result: res}
		for format, data := range res.Artifacts {
			if format == pipeline.FormatNewick {
				continue
			}
			if resp.Artifacts == nil {
				resp.Artifacts = make(map[string]string)
			}
			resp.Artifacts[format] = base64.StdEncoding.EncodeToString(data)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// statusFor maps pipeline error codes to HTTP status codes.
func statusFor(err error) int {
	switch perrors.GetCode(err) {
	case perrors.ErrCodeInvalidOption, perrors.ErrCodeInvalidAlignment,
		perrors.ErrCodeInvalidNewick, perrors.ErrCodeInvalidFormat,
		perrors.ErrCodeInvalidAlphabet, perrors.ErrCodeTaxonMismatch,
		perrors.ErrCodeTreeTooSmall, perrors.ErrCodeNotBifurcating:
		return http.StatusBadRequest
	case perrors.ErrCodeFileNotFound, perrors.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
