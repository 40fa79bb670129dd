package httpapi

import (
	"embed"
	"net/http"

	"github.com/xy-market/seller-node/internal/payment"
	"github.com/xy-market/seller-node/internal/ratelimit"
)

//go:embed openapi.json
var openapiFS embed.FS

// NewRouter builds the Seller node's http.Handler, chaining middleware in
// the order spec.md §2 and SPEC_FULL.md §2 mandate: rate-limit middleware
// wraps payment middleware wraps the route handler, so a caller that trips
// the rate limit never reaches (and never pays for) the payment check.
func NewRouter(h *Handler, rl *ratelimit.Middleware, pay *payment.Middleware) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", h.Execute)
	mux.HandleFunc("GET /tasks/{id}", h.GetTask)
	mux.HandleFunc("GET /pricing", h.Pricing)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /openapi.json", serveOpenAPI)

	var chain http.Handler = mux
	if pay != nil {
		chain = pay.Wrap(chain)
	}
	if rl != nil {
		chain = rl.Wrap(chain)
	}
	return chain
}

func serveOpenAPI(w http.ResponseWriter, r *http.Request) {
	data, err := openapiFS.ReadFile("openapi.json")
	if err != nil {
		http.Error(w, "openapi spec unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
