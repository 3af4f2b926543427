package router

import (
	"net/http"
	"time"

	"procurement/internal/controller"

	"github.com/rs/zerolog"
)

func NewRouter(c *controller.Controller, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ping", c.Ping)

	mux.HandleFunc("GET /api/workflow", c.GetWorkflow)
	mux.HandleFunc("PUT /api/workflow", c.SetWorkflow)

	mux.HandleFunc("POST /api/requests/new", c.NewRequest)
	mux.HandleFunc("GET /api/requests", c.GetRequests)
	mux.HandleFunc("GET /api/requests/{requestId}", c.GetRequest)
	mux.HandleFunc("DELETE /api/requests/{requestId}", c.DeleteRequest)
	mux.HandleFunc("PATCH /api/requests/{requestId}/edit", c.EditRequest)
	mux.HandleFunc("PUT /api/requests/{requestId}/submit", c.SubmitRequest)
	mux.HandleFunc("GET /api/requests/{requestId}/current_step", c.CurrentStep)
	mux.HandleFunc("PUT /api/requests/{requestId}/approve", c.ApproveRequest)
	mux.HandleFunc("PUT /api/requests/{requestId}/reject", c.RejectRequest)
	mux.HandleFunc("GET /api/requests/{requestId}/events", c.RequestEvents)
	mux.HandleFunc("GET /api/approvals/pending", c.PendingApprovals)

	mux.HandleFunc("PUT /api/requests/{requestId}/quotations", c.SaveQuotations)
	mux.HandleFunc("GET /api/requests/{requestId}/quotations", c.GetQuotations)
	mux.HandleFunc("GET /api/requests/{requestId}/comparison", c.CompareQuotations)

	mux.HandleFunc("POST /api/requests/{requestId}/award", c.AwardRequest)
	mux.HandleFunc("GET /api/requests/{requestId}/orders", c.RequestOrders)
	mux.HandleFunc("GET /api/orders/{orderId}", c.GetOrder)
	mux.HandleFunc("PATCH /api/orders/{orderId}/edit", c.EditOrder)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("page not found"))
	})

	cors := http.NewServeMux()
	cors.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Accept", "*/*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
		} else {
			mux.ServeHTTP(w, r)
		}
	})

	return logRequests(cors, log)
}

func logRequests(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		ev := log.Debug()
		if sw.status >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
