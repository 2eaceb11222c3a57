package server

import (
	"errors"
	"net/http"

	"example.com/postfeed/internal/forms"
	"example.com/postfeed/internal/media"
	"example.com/postfeed/internal/middleware"
	"example.com/postfeed/internal/models"
	"example.com/postfeed/internal/render"
	"example.com/postfeed/internal/store"
)

// profileHandler shows an author's page. The owner may upload an avatar
// from it; a POST by anyone else just re-renders the page.
func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	author, err := s.store.GetUserByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		s.fail(w, r, "http/profile", err)
		return
	}

	viewer := s.viewer(r)
	isOwner := viewer != nil && viewer.ID == author.ID
	data := render.Data{"Viewer": viewer, "Author": &author, "IsOwner": isOwner}

	if r.Method == http.MethodPost && isOwner {
		form := &forms.AvatarForm{}
		if err := form.Bind(r); err != nil {
			logg.Error("http/profile", "Invalid request body", err)
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if form.Valid() {
			imagePath, err := s.saveImage(media.DirProfiles, form.Image)
			if err != nil {
				s.serverError(w, r, "http/profile", err)
				return
			}
			if _, err := s.store.SaveAvatar(r.Context(), author.ID, imagePath); err != nil {
				s.serverError(w, r, "http/profile", err)
				return
			}
			s.publish(models.EventAvatarUpdated, author.ID, models.Event{})
			http.Redirect(w, r, profileURL(author.Username), http.StatusFound)
			return
		}
		data["AvatarForm"] = form
	}

	page, err := s.loadPosts(r, store.PostFilter{AuthorID: author.ID})
	if err != nil {
		s.serverError(w, r, "http/profile", err)
		return
	}
	data["Page"] = page
	data["Count"] = page.Count

	if err := s.authorStats(r.Context(), author.ID, data); err != nil {
		s.serverError(w, r, "http/profile", err)
		return
	}

	following := false
	if viewer != nil && !isOwner {
		following, err = s.store.FollowExists(r.Context(), viewer.ID, author.ID)
		if err != nil {
			s.serverError(w, r, "http/profile", err)
			return
		}
	}
	data["Following"] = following

	avatar, err := s.store.GetAvatar(r.Context(), author.ID)
	switch {
	case err == nil:
		data["Avatar"] = &avatar
	case errors.Is(err, store.ErrNotFound):
		data["Avatar"] = nil
	default:
		s.serverError(w, r, "http/profile", err)
		return
	}

	s.render(w, r, http.StatusOK, "posts/profile.html", data)
}

// profileSubrouteHandler serves /{username}/{segment}/, where segment is
// "follow", "unfollow" or a post id.
func (s *Server) profileSubrouteHandler(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("segment") {
	case "follow":
		middleware.LoginRequired(s.profileFollowHandler)(w, r)
	case "unfollow":
		middleware.LoginRequired(s.profileUnfollowHandler)(w, r)
	default:
		s.postViewHandler(w, r)
	}
}

// profileFollowHandler subscribes the requester to the author. Following
// yourself or an author you already follow changes nothing.
func (s *Server) profileFollowHandler(w http.ResponseWriter, r *http.Request) {
	author, err := s.store.GetUserByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		s.fail(w, r, "http/follow", err)
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	if userID != author.ID {
		exists, err := s.store.FollowExists(r.Context(), userID, author.ID)
		if err != nil {
			s.serverError(w, r, "http/follow", err)
			return
		}
		if !exists {
			if err := s.store.CreateFollow(r.Context(), userID, author.ID); err != nil {
				s.serverError(w, r, "http/follow", err)
				return
			}
			s.publish(models.EventFollowCreated, userID, models.Event{TargetID: author.ID})
		}
	}

	http.Redirect(w, r, profileURL(author.Username), http.StatusFound)
}

// profileUnfollowHandler removes the follow edge, or answers 404 when there is none.
func (s *Server) profileUnfollowHandler(w http.ResponseWriter, r *http.Request) {
	author, err := s.store.GetUserByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		s.fail(w, r, "http/follow", err)
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := s.store.DeleteFollow(r.Context(), userID, author.ID); err != nil {
		s.fail(w, r, "http/follow", err)
		return
	}
	s.publish(models.EventFollowDeleted, userID, models.Event{TargetID: author.ID})

	http.Redirect(w, r, profileURL(author.Username), http.StatusFound)
}
