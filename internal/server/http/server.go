package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/serhalp/queue-and-eh/internal/runtime"
	"github.com/serhalp/queue-and-eh/internal/server/http/controllers"
	eventsvc "github.com/serhalp/queue-and-eh/internal/services/events"
	presencesvc "github.com/serhalp/queue-and-eh/internal/services/presence"
	questionsvc "github.com/serhalp/queue-and-eh/internal/services/questions"
	logpkg "github.com/serhalp/queue-and-eh/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
}

func New(rt *runtime.Runtime, events *eventsvc.Service, questions *questionsvc.Service, presence *presencesvc.Service, logger logpkg.Logger) *Server {
	cfg := rt.Config()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(countRequests)
	r.Use(limitMutations(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst))

	s := &Server{rt: rt, logger: logger.WithComponent("http"), srv: &http.Server{Handler: cors(r)}}

	registry := controllers.NewControllerRegistry(rt, events, questions, presence, logger)
	registry.RegisterAllRoutes(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return s
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http server listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the routed handler for in-process tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
