package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pthm/ajaxform"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	maxFormMemory    = 8 << 20
	throttledMessage = "Too many submissions. Please try again shortly."
)

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve mock form endpoints described by fixtures",
		Long: `Serve a demo page and answer POST /submit/<fixture> with ajaxform
envelopes. Without --fixtures a built-in "contact" and "reject" pair is used.
Prometheus metrics are exposed at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fixtures, err := loadFixtures(a.cfg.Serve.Fixtures)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", a.cfg.Serve.Addr)
			if err != nil {
				return err
			}

			s := newServer(fixtures, a.log, prometheus.NewRegistry())
			a.log.Info("serving form endpoints",
				zap.String("addr", ln.Addr().String()),
				zap.Strings("fixtures", fixtures.Names()),
			)
			return s.run(ctx, ln, a.cfg.Serve.ShutdownTimeout)
		},
	}

	f := cmd.Flags()
	f.String("addr", "", "listen address (default 127.0.0.1:8080)")
	f.String("fixtures", "", "YAML fixture file")
	_ = a.v.BindPFlag("serve.addr", f.Lookup("addr"))
	_ = a.v.BindPFlag("serve.fixtures", f.Lookup("fixtures"))
	return cmd
}

type server struct {
	fixtures Fixtures
	limiters map[string]*rate.Limiter
	log      *zap.Logger
	metrics  *serveMetrics
	gatherer prometheus.Gatherer
}

func newServer(fixtures Fixtures, log *zap.Logger, reg *prometheus.Registry) *server {
	limiters := make(map[string]*rate.Limiter)
	for name, f := range fixtures {
		if lim := f.limiter(); lim != nil {
			limiters[name] = lim
		}
	}
	return &server{
		fixtures: fixtures,
		limiters: limiters,
		log:      log,
		metrics:  newServeMetrics(reg),
		gatherer: reg,
	}
}

// Handler returns the routes: the demo page, the fixture endpoints and
// /metrics.
func (s *server) Handler() http.Handler {
	compressor := middleware.NewCompressor(5, "text/html", "application/json", "application/msgpack")
	compressor.SetEncoder("br", brotliEncoder)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(compressor.Handler)

	r.Get("/", s.handleIndex)
	r.Post("/submit/{fixture}", s.handleSubmit)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// run serves on ln until ctx is done, then shuts down gracefully.
func (s *server) run(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", ajaxform.RequestID(r)),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := ajaxform.Render(w, r, demoPage(s.fixtures)); err != nil {
		s.log.Warn("render page", zap.Error(err))
	}
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "fixture")
	f, ok := s.fixtures[name]
	if !ok {
		reply := ajaxform.Failure().Status(http.StatusNotFound).Message("", "Unknown form.")
		_ = ajaxform.WriteReply(w, r, reply)
		return
	}
	s.fixtureHandler(name, f).ServeHTTP(w, r)
}

// fixtureHandler answers posts for one fixture.
func (s *server) fixtureHandler(name string, f *Fixture) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := s.log.With(zap.String("fixture", name), zap.String("request_id", ajaxform.RequestID(r)))

		if lim := s.limiters[name]; lim != nil && !lim.Allow() {
			s.metrics.observe(name, "throttled", start)
			reply := ajaxform.Failure().
				Status(http.StatusTooManyRequests).
				Header("Retry-After", "1").
				Message("", throttledMessage)
			_ = ajaxform.WriteReply(w, r, reply)
			return
		}

		if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			s.metrics.observe(name, "malformed", start)
			log.Warn("malformed form data", zap.Error(err))
			reply := ajaxform.Failure().Status(http.StatusBadRequest).Message("", "Malformed form data.")
			_ = ajaxform.WriteReply(w, r, reply)
			return
		}

		if f.Delay > 0 {
			select {
			case <-time.After(f.Delay):
			case <-r.Context().Done():
				s.metrics.observe(name, "abandoned", start)
				return
			}
		}

		reply := f.Evaluate(r.Form)
		outcome := "failure"
		if reply.IsSuccess() {
			outcome = "success"
		}

		if !ajaxform.IsAjax(r) {
			s.metrics.observe(name, outcome, start)
			http.Redirect(w, r, "/?result="+outcome, http.StatusSeeOther)
			return
		}

		if err := ajaxform.WriteReply(w, r, reply); err != nil {
			log.Warn("write reply", zap.Error(err))
		}
		s.metrics.observe(name, outcome, start)
		log.Info("form submitted", zap.String("outcome", outcome), zap.Int("status", reply.GetStatus()))
	})
}

// demoPage lists one form per fixture, each bound through the
// data-ajaxform-action attribute.
func demoPage(fixtures Fixtures) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>ajaxform</title></head><body>`); err != nil {
			return err
		}
		for _, name := range fixtures.Names() {
			if err := fixtureForm(name, fixtures[name]).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func fixtureForm(name string, f *Fixture) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := f.Title
		if title == "" {
			title = name
		}
		action := "/submit/" + name

		if _, err := fmt.Fprintf(w, `<section id="%s"><h2>%s</h2><form method="post" action="%s" %s="%s">`,
			templ.EscapeString(name), templ.EscapeString(title), templ.EscapeString(action),
			ajaxform.AttrAction, templ.EscapeString(action)); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<div class="%s"></div>`, ajaxform.MessagesClass); err != nil {
			return err
		}
		for _, field := range f.Fields {
			if err := fieldControl(w, field); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `<button type="submit">Send</button></form></section>`)
		return err
	})
}

func fieldControl(w io.Writer, field string) error {
	name := templ.EscapeString(field)
	var err error
	switch field {
	case "message":
		_, err = fmt.Fprintf(w, `<label>%s <textarea name="%s"></textarea></label>`, name, name)
	case "email":
		_, err = fmt.Fprintf(w, `<label>%s <input type="email" name="%s"></label>`, name, name)
	default:
		_, err = fmt.Fprintf(w, `<label>%s <input type="text" name="%s"></label>`, name, name)
	}
	return err
}
