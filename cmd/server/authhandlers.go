package server

import (
	"errors"
	"net/http"

	"example.com/postfeed/internal/forms"
	"example.com/postfeed/internal/middleware"
	"example.com/postfeed/internal/models"
	"example.com/postfeed/internal/render"
	"example.com/postfeed/internal/store"
)

const (
	msgUsernameTaken      = "Пользователь с таким именем уже существует"
	msgInvalidCredentials = "Введите правильные имя пользователя и пароль"
)

// signupHandler registers a user and signs them in.
func (s *Server) signupHandler(w http.ResponseWriter, r *http.Request) {
	form := &forms.SignupForm{}
	data := render.Data{"Form": form}

	if r.Method != http.MethodPost {
		s.render(w, r, http.StatusOK, "users/signup.html", data)
		return
	}

	if err := form.Bind(r); err != nil {
		logg.Error("http/users", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !form.Valid() {
		s.render(w, r, http.StatusOK, "users/signup.html", data)
		return
	}

	user, err := s.store.CreateUser(r.Context(), form.Username, form.Password)
	if errors.Is(err, store.ErrAlreadyExists) {
		logg.Info("http/users", "Username already taken")
		form.AddError("username", msgUsernameTaken)
		s.render(w, r, http.StatusOK, "users/signup.html", data)
		return
	}
	if err != nil {
		s.serverError(w, r, "http/users", err)
		return
	}

	if err := s.signIn(w, user); err != nil {
		s.serverError(w, r, "http/users", err)
		return
	}
	logg.Info("http/users", "User created successfully (username anonymized)")
	http.Redirect(w, r, "/", http.StatusFound)
}

// loginHandler checks credentials, sets the session cookie and follows next.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	form := &forms.LoginForm{}
	data := render.Data{"Form": form, "Next": r.URL.Query().Get("next")}

	if r.Method != http.MethodPost {
		s.render(w, r, http.StatusOK, "users/login.html", data)
		return
	}

	if err := form.Bind(r); err != nil {
		logg.Error("http/auth", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	data["Next"] = form.Next
	if !form.Valid() {
		s.render(w, r, http.StatusOK, "users/login.html", data)
		return
	}

	user, err := s.store.Authenticate(r.Context(), form.Username, form.Password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		logg.Info("http/auth", "Login rejected")
		form.AddError("__all__", msgInvalidCredentials)
		s.render(w, r, http.StatusOK, "users/login.html", data)
		return
	}
	if err != nil {
		s.serverError(w, r, "http/auth", err)
		return
	}

	if err := s.signIn(w, user); err != nil {
		s.serverError(w, r, "http/auth", err)
		return
	}
	http.Redirect(w, r, forms.SafeNext(form.Next), http.StatusFound)
}

// logoutHandler drops the session cookie.
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	middleware.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) signIn(w http.ResponseWriter, user models.User) error {
	token, err := s.auth.IssueToken(user.ID)
	if err != nil {
		return err
	}
	s.auth.SetCookie(w, token)
	return nil
}
