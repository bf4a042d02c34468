package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bkmrks/internal/handlers"
	"bkmrks/internal/middlewares"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(middlewares.Instrument)
	r.Use(middlewares.CORS(s.cfg.AllowedOrigins))
	r.Use(s.limiter.Limit)

	ch := handlers.NewCommonHandler(s.db)
	r.HandleFunc("/health", ch.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.PathPrefix(s.cfg.MediaURL).Handler(http.StripPrefix(s.cfg.MediaURL, http.FileServer(http.Dir(s.cfg.MediaRoot)))).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	s.registerAuthRoutes(api)
	s.registerUserRoutes(api)
	s.registerTagRoutes(api)
	s.registerFolderRoutes(api)
	s.registerBookmarkRoutes(api)
	s.registerDownloadRoutes(api)

	return r
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.auth.Authenticate(h)
}

func (s *Server) owned(resource string, h http.HandlerFunc) http.Handler {
	return s.auth.Authenticate(s.ownership.OwnerOnly(resource, "id")(h))
}

func (s *Server) registerAuthRoutes(r *mux.Router) {
	uh := handlers.NewUserHandler(s.userService, s.resetService)
	ah := handlers.NewAuthHandler(s.authService)

	r.HandleFunc("/users/", uh.Register).Methods("POST", "OPTIONS")
	r.HandleFunc("/token/login/", uh.Login).Methods("POST", "OPTIONS")
	r.HandleFunc("/users/reset_password/", uh.ResetPassword).Methods("POST", "OPTIONS")
	r.HandleFunc("/users/reset_password_confirm/", uh.ResetPasswordConfirm).Methods("POST", "OPTIONS")

	r.HandleFunc("/auth/{provider}/", ah.ProviderAuth).Methods("GET", "OPTIONS")
	r.HandleFunc("/auth/{provider}/callback/", ah.ProviderCallback).Methods("GET", "OPTIONS")
}

func (s *Server) registerUserRoutes(r *mux.Router) {
	uh := handlers.NewUserHandler(s.userService, s.resetService)

	r.Handle("/user/details/", s.protected(uh.GetMyProfile)).Methods("GET", "OPTIONS")
	r.Handle("/user/{id}/", s.protected(uh.UpdateProfile)).Methods("PATCH", "OPTIONS")
	r.Handle("/user/{id}/", s.protected(uh.DeleteProfile)).Methods("DELETE", "OPTIONS")
}

func (s *Server) registerTagRoutes(r *mux.Router) {
	th := handlers.NewTagHandler(s.tagService)

	r.Handle("/tags/", s.protected(th.GetTags)).Methods("GET", "OPTIONS")
	r.Handle("/tags/create/", s.protected(th.AddTag)).Methods("POST", "OPTIONS")
}

func (s *Server) registerFolderRoutes(r *mux.Router) {
	fh := handlers.NewFolderHandler(s.folderService)

	r.Handle("/folders/", s.protected(fh.GetFolders)).Methods("GET", "OPTIONS")
	r.Handle("/folders/create/", s.protected(fh.AddFolder)).Methods("POST", "OPTIONS")
	r.Handle("/folders/update/{id}/", s.owned("folder", fh.UpdateFolder)).Methods("PATCH", "OPTIONS")
	r.Handle("/folders/delete/{id}/", s.owned("folder", fh.DeleteFolder)).Methods("DELETE", "OPTIONS")
}

func (s *Server) registerBookmarkRoutes(r *mux.Router) {
	bh := handlers.NewBookmarksHandler(s.bookmarkService, s.summaryService)

	r.Handle("/bookmarks/", s.protected(bh.GetBookmarks)).Methods("GET", "OPTIONS")
	r.Handle("/bookmarks/create/", s.protected(bh.AddBookmark)).Methods("POST", "OPTIONS")
	r.Handle("/bookmarks/create_from_telegram/", middlewares.BotKey(s.cfg.BotAPIKey)(http.HandlerFunc(bh.AddBookmarkFromTelegram))).Methods("POST", "OPTIONS")
	r.Handle("/bookmarks/update/{id}/", s.owned("bookmark", bh.UpdateBookmark)).Methods("PATCH", "OPTIONS")
	r.Handle("/bookmarks/delete/{id}/", s.owned("bookmark", bh.DeleteBookmark)).Methods("DELETE", "OPTIONS")
	r.Handle("/bookmarks/summarize/{id}/", s.owned("bookmark", bh.SummarizeBookmark)).Methods("POST", "OPTIONS")
}

func (s *Server) registerDownloadRoutes(r *mux.Router) {
	dh := handlers.NewDownloadHandler(s.downloadService)

	r.Handle("/downloads/start/", s.protected(dh.StartDownload)).Methods("POST", "OPTIONS")
	r.Handle("/downloads/{id}/", s.owned("download", dh.GetDownload)).Methods("GET", "OPTIONS")
}
