package server

import (
	"net/http"
	"net/url"
	"strconv"

	"example.com/postfeed/internal/forms"
	"example.com/postfeed/internal/media"
	"example.com/postfeed/internal/middleware"
	"example.com/postfeed/internal/models"
	"example.com/postfeed/internal/render"
	"example.com/postfeed/internal/store"
)

func profileURL(username string) string {
	return "/" + url.PathEscape(username) + "/"
}

func postURL(username string, id int64) string {
	return profileURL(username) + strconv.FormatInt(id, 10) + "/"
}

// --- HTTP Handlers ---

// indexHandler lists all posts, newest first. Wrapped by the page cache in Routes.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	page, err := s.loadPosts(r, store.PostFilter{})
	if err != nil {
		s.serverError(w, r, "http/posts", err)
		return
	}
	s.render(w, r, http.StatusOK, "posts/index.html", render.Data{"Page": page})
}

// groupPostsHandler lists the posts filed under /group/{slug}/.
func (s *Server) groupPostsHandler(w http.ResponseWriter, r *http.Request) {
	group, err := s.store.GetGroupBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.fail(w, r, "http/groups", err)
		return
	}

	page, err := s.loadPosts(r, store.PostFilter{GroupID: group.ID})
	if err != nil {
		s.serverError(w, r, "http/groups", err)
		return
	}
	s.render(w, r, http.StatusOK, "posts/group_list.html", render.Data{"Group": &group, "Page": page})
}

// newPostHandler shows the post form and creates a post authored by the requester.
func (s *Server) newPostHandler(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewer(r)
	if viewer == nil {
		http.Redirect(w, r, middleware.LoginRedirectURL(r.URL.Path), http.StatusFound)
		return
	}

	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		s.serverError(w, r, "http/posts", err)
		return
	}
	form := forms.NewPostForm(nil, groups)
	data := render.Data{"Viewer": viewer, "Form": form, "IsEdit": false}

	if r.Method != http.MethodPost {
		s.render(w, r, http.StatusOK, "posts/create_post.html", data)
		return
	}

	if err := form.Bind(r); err != nil {
		logg.Error("http/posts", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !form.Valid() {
		logg.Info("http/posts", "Post form rejected")
		s.render(w, r, http.StatusOK, "posts/create_post.html", data)
		return
	}

	imagePath, err := s.saveImage(media.DirPosts, form.Image)
	if err != nil {
		s.serverError(w, r, "http/posts", err)
		return
	}

	post := models.Post{AuthorID: viewer.ID}
	form.Apply(&post, imagePath)
	if err := s.store.CreatePost(r.Context(), &post); err != nil {
		s.serverError(w, r, "http/posts", err)
		return
	}

	s.publish(models.EventPostCreated, viewer.ID, models.Event{PostID: post.ID})
	logg.Info("http/posts", "Post created successfully (author anonymized)")
	http.Redirect(w, r, "/", http.StatusFound)
}

// postViewHandler shows a post with its comments. A signed-in user may post
// the inline comment form here; guests are sent to the login page.
func (s *Server) postViewHandler(w http.ResponseWriter, r *http.Request) {
	post, err := s.lookupPost(r, "segment")
	if err != nil {
		s.fail(w, r, "http/posts", err)
		return
	}

	viewer := s.viewer(r)
	form := &forms.CommentForm{}

	if r.Method == http.MethodPost {
		if viewer == nil {
			http.Redirect(w, r, middleware.LoginRedirectURL(r.URL.Path), http.StatusFound)
			return
		}
		if err := form.Bind(r); err != nil {
			logg.Error("http/comments", "Invalid request body", err)
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if form.Valid() {
			if err := s.createComment(r, viewer, post, form); err != nil {
				s.serverError(w, r, "http/comments", err)
				return
			}
			http.Redirect(w, r, postURL(post.Author.Username, post.ID), http.StatusFound)
			return
		}
	}

	comments, err := s.store.ListComments(r.Context(), post.ID)
	if err != nil {
		s.serverError(w, r, "http/posts", err)
		return
	}

	data := render.Data{
		"Viewer":   viewer,
		"Post":     post,
		"Author":   post.Author,
		"Comments": comments,
		"Form":     form,
		"CanEdit":  viewer != nil && viewer.ID == post.AuthorID,
	}
	if err := s.authorStats(r.Context(), post.AuthorID, data); err != nil {
		s.serverError(w, r, "http/posts", err)
		return
	}
	s.render(w, r, http.StatusOK, "posts/post_detail.html", data)
}

// addCommentHandler is the standalone comment form for a post.
func (s *Server) addCommentHandler(w http.ResponseWriter, r *http.Request) {
	post, err := s.lookupPost(r, "post_id")
	if err != nil {
		s.fail(w, r, "http/comments", err)
		return
	}

	viewer := s.viewer(r)
	if viewer == nil {
		http.Redirect(w, r, middleware.LoginRedirectURL(r.URL.Path), http.StatusFound)
		return
	}

	form := &forms.CommentForm{}
	data := render.Data{"Viewer": viewer, "Post": post, "Form": form}

	if r.Method != http.MethodPost {
		s.render(w, r, http.StatusOK, "posts/comments.html", data)
		return
	}

	if err := form.Bind(r); err != nil {
		logg.Error("http/comments", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !form.Valid() {
		s.render(w, r, http.StatusOK, "posts/comments.html", data)
		return
	}

	if err := s.createComment(r, viewer, post, form); err != nil {
		s.serverError(w, r, "http/comments", err)
		return
	}
	http.Redirect(w, r, postURL(post.Author.Username, post.ID), http.StatusFound)
}

func (s *Server) createComment(r *http.Request, viewer *models.User, post models.Post, form *forms.CommentForm) error {
	comment := models.Comment{PostID: post.ID, AuthorID: viewer.ID, Text: form.Text}
	if err := s.store.CreateComment(r.Context(), &comment); err != nil {
		return err
	}
	s.publish(models.EventCommentCreated, viewer.ID, models.Event{PostID: post.ID, TargetID: comment.ID})
	logg.Info("http/comments", "Comment created successfully (author anonymized)")
	return nil
}

// postEditHandler lets the author change text, group and image of a post.
// Anyone else is sent back to the index and the post is left untouched.
func (s *Server) postEditHandler(w http.ResponseWriter, r *http.Request) {
	post, err := s.lookupPost(r, "post_id")
	if err != nil {
		s.fail(w, r, "http/posts", err)
		return
	}

	viewer := s.viewer(r)
	if viewer == nil || viewer.ID != post.AuthorID {
		logg.Info("http/posts", "Edit attempt by non-author, redirecting to index")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		s.serverError(w, r, "http/posts", err)
		return
	}
	form := forms.NewPostForm(&post, groups)
	data := render.Data{"Viewer": viewer, "Form": form, "IsEdit": true, "Post": &post}

	if r.Method != http.MethodPost {
		s.render(w, r, http.StatusOK, "posts/create_post.html", data)
		return
	}

	if err := form.Bind(r); err != nil {
		logg.Error("http/posts", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !form.Valid() {
		s.render(w, r, http.StatusOK, "posts/create_post.html", data)
		return
	}

	imagePath, err := s.saveImage(media.DirPosts, form.Image)
	if err != nil {
		s.serverError(w, r, "http/posts", err)
		return
	}
	form.Apply(&post, imagePath)
	if err := s.store.UpdatePost(r.Context(), &post); err != nil {
		s.fail(w, r, "http/posts", err)
		return
	}

	s.publish(models.EventPostEdited, viewer.ID, models.Event{PostID: post.ID})
	http.Redirect(w, r, postURL(post.Author.Username, post.ID), http.StatusFound)
}

// followIndexHandler lists posts by the authors the requester follows.
func (s *Server) followIndexHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	page, err := s.loadPosts(r, store.PostFilter{FollowerID: userID})
	if err != nil {
		s.serverError(w, r, "http/follow", err)
		return
	}
	s.render(w, r, http.StatusOK, "posts/follow.html", render.Data{"Page": page})
}
