package server

import "net/http"

func (s *Server) aboutAuthorHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "about/author.html", nil)
}

func (s *Server) aboutTechHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "about/tech.html", nil)
}

// pageNotFoundHandler answers every path no other route claims.
func (s *Server) pageNotFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.notFound(w, r)
}

// serverErrorHandler is the response for recovered panics.
func (s *Server) serverErrorHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusInternalServerError, "misc/500.html", nil)
}
