package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"example.com/postfeed/internal/forms"
	"example.com/postfeed/internal/middleware"
	"example.com/postfeed/internal/models"
	"example.com/postfeed/internal/paginate"
	"example.com/postfeed/internal/render"
	"example.com/postfeed/internal/store"
)

// viewer returns the signed-in user, or nil for guests and deleted accounts.
func (s *Server) viewer(r *http.Request) *models.User {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return nil
	}
	u, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logg.Error("http/auth", "Failed to load signed-in user", err)
		}
		return nil
	}
	return &u
}

// render writes a page, adding the signed-in user to its data.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data render.Data) {
	if data == nil {
		data = render.Data{}
	}
	if _, ok := data["Viewer"]; !ok {
		data["Viewer"] = s.viewer(r)
	}
	if err := s.renderer.Render(w, status, name, data); err != nil {
		logg.Error("http/render", "Failed to render "+name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "misc/404.html", render.Data{"Path": r.URL.Path})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, module string, err error) {
	logg.Error(module, "Request failed: "+r.Method+" "+r.URL.Path, err)
	s.render(w, r, http.StatusInternalServerError, "misc/500.html", render.Data{"Viewer": nil})
}

// fail maps store.ErrNotFound to the 404 page and everything else to 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, module string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	s.serverError(w, r, module, err)
}

// loadPosts returns the requested page of posts matching filter.
func (s *Server) loadPosts(r *http.Request, filter store.PostFilter) (paginate.Page[models.Post], error) {
	return paginate.Load(r.Context(), r.URL.Query().Get("page"), paginate.PerPage,
		func(ctx context.Context) (int, error) {
			return s.store.CountPosts(ctx, filter)
		},
		func(ctx context.Context, limit, offset int) ([]models.Post, error) {
			return s.store.ListPosts(ctx, filter, limit, offset)
		},
	)
}

// lookupPost resolves the {username}/{post_id} path pair.
func (s *Server) lookupPost(r *http.Request, idParam string) (models.Post, error) {
	id, err := strconv.ParseInt(r.PathValue(idParam), 10, 64)
	if err != nil || id <= 0 {
		return models.Post{}, store.ErrNotFound
	}
	return s.store.GetPost(r.Context(), r.PathValue("username"), id)
}

// saveImage stores an upload under dir, returning "" when there is none.
func (s *Server) saveImage(dir string, u *forms.Upload) (string, error) {
	if u == nil {
		return "", nil
	}
	return s.media.Save(dir, u.Filename, u.Reader())
}

// authorStats loads the follower/following/post counts shown next to an author.
func (s *Server) authorStats(ctx context.Context, authorID int64, data render.Data) error {
	followers, err := s.store.CountFollowers(ctx, authorID)
	if err != nil {
		return err
	}
	following, err := s.store.CountFollowing(ctx, authorID)
	if err != nil {
		return err
	}
	data["Followers"] = followers
	data["FollowingCount"] = following
	if _, ok := data["Count"]; !ok {
		count, err := s.store.CountPosts(ctx, store.PostFilter{AuthorID: authorID})
		if err != nil {
			return err
		}
		data["Count"] = count
	}
	return nil
}

func (s *Server) publish(kind string, actorID int64, e models.Event) {
	e.Kind, e.ActorID = kind, actorID
	s.publisher.PublishBestEffort(e)
}
