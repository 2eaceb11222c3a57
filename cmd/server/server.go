package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	appkafka "example.com/postfeed/internal/broker"
	"example.com/postfeed/internal/cache"
	"example.com/postfeed/internal/logger"
	"example.com/postfeed/internal/media"
	"example.com/postfeed/internal/middleware"
	"example.com/postfeed/internal/render"
	"example.com/postfeed/internal/store"
)

// indexCachePrefix namespaces cached home page responses.
const indexCachePrefix = "index_page"

type Server struct {
	store     store.StoreInterface
	cache     cache.Cache
	cacheTTL  time.Duration
	renderer  render.Renderer
	media     *media.Storage
	publisher *appkafka.Publisher
	auth      *middleware.Auth
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Store     store.StoreInterface
	Cache     cache.Cache
	CacheTTL  time.Duration
	Renderer  render.Renderer
	Media     *media.Storage
	Publisher *appkafka.Publisher
	Auth      *middleware.Auth
}

var logg = logger.New()

func New(d Deps) *Server {
	if d.Publisher == nil {
		d.Publisher = appkafka.NewPublisher(appkafka.DiscardWriter{})
	}
	return &Server{
		store:     d.Store,
		cache:     d.Cache,
		cacheTTL:  d.CacheTTL,
		renderer:  d.Renderer,
		media:     d.Media,
		publisher: d.Publisher,
		auth:      d.Auth,
	}
}

// Routes builds the handler tree: recover, access log, authentication, mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	index := cache.Page(s.cache, indexCachePrefix, s.cacheTTL, viewerKey)(http.HandlerFunc(s.indexHandler))
	mux.Handle("/{$}", index)
	mux.HandleFunc("/group/{slug}/{$}", s.groupPostsHandler)
	mux.HandleFunc("/new/{$}", middleware.LoginRequired(s.newPostHandler))
	mux.HandleFunc("/follow/{$}", middleware.LoginRequired(s.followIndexHandler))

	mux.HandleFunc("/about/author/{$}", s.aboutAuthorHandler)
	mux.HandleFunc("/about/tech/{$}", s.aboutTechHandler)

	mux.HandleFunc("/auth/signup/{$}", s.signupHandler)
	mux.HandleFunc("/auth/login/{$}", s.loginHandler)
	mux.HandleFunc("/auth/logout/{$}", s.logoutHandler)

	mux.HandleFunc("/{username}/{$}", s.profileHandler)
	// follow, unfollow and post detail share one pattern; see profileSubrouteHandler
	mux.HandleFunc("/{username}/{segment}/{$}", s.profileSubrouteHandler)
	mux.HandleFunc("/{username}/{post_id}/edit/{$}", middleware.LoginRequired(s.postEditHandler))
	mux.HandleFunc("/{username}/{post_id}/comment/{$}", middleware.LoginRequired(s.addCommentHandler))

	mux.HandleFunc("/", s.pageNotFoundHandler)

	var h http.Handler = mux
	h = s.auth.Authenticate(h)
	h = middleware.AccessLog(h)
	h = middleware.Recover(http.HandlerFunc(s.serverErrorHandler))(h)
	return h
}

// viewerKey separates cached pages per signed-in user.
func viewerKey(r *http.Request) string {
	if id, ok := middleware.UserIDFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "guest"
}

// Run starts the HTTP server (HTTPS when a certificate is configured) and
// shuts it down gracefully when ctx is done.
func Run(ctx context.Context, s *Server, addr, certFile, keyFile string) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		var err error
		if certFile != "" && keyFile != "" {
			logg.Info("server", "Starting HTTPS server on "+addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
