package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/api"
)

// RouterOptions tune NewRouter.
type RouterOptions struct {
	// ValidateRequests checks every API request against the OpenAPI document.
	ValidateRequests bool
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
	// Stream serves the websocket feed at /v1/stream when set.
	Stream http.Handler
}

func NewRouter(server *Server, opts RouterOptions, logger *zap.Logger) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(zapLoggerMiddleware(logger))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// Non-validated routes
	r.Get("/openapi.yaml", openapiHandler)
	r.Get("/docs", swaggerUIHandler)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if opts.Stream != nil {
		r.Get("/v1/stream", opts.Stream.ServeHTTP)
	}

	var validator func(http.Handler) http.Handler
	if opts.ValidateRequests {
		swagger, err := api.GetSwagger()
		if err != nil {
			return nil, err
		}
		swagger.Servers = nil // Allow any host
		validator = oapimiddleware.OapiRequestValidatorWithOptions(swagger, &oapimiddleware.Options{
			ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
				writeError(w, statusCode, message)
			},
		})
	}

	r.Group(func(apiRouter chi.Router) {
		if validator != nil {
			apiRouter.Use(validator)
		}
		apiRouter.Get("/health", server.GetHealth)
		apiRouter.Get("/v1/symbols", server.GetSymbols)
		apiRouter.Get("/v1/expiries/{symbol}", server.GetExpiries)
		apiRouter.Get("/v1/gex/{symbol}", server.GetGex)
		apiRouter.Get("/v1/gex/{symbol}/csv", server.GetGexCSV)
		apiRouter.Post("/admin/reload", server.Reload)
		apiRouter.Post("/admin/rewind", server.Rewind)
	})

	return r, nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("requestID", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(api.OpenAPISpec)
}

func swaggerUIHandler(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>GEX/DEX Analytics API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.10.3/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.3/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: "/openapi.yaml",
                dom_id: '#swagger-ui',
            });
        };
    </script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(html))
}
