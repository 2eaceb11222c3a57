package render

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/postfeed/internal/forms"
	"example.com/postfeed/internal/models"
	"example.com/postfeed/internal/paginate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePost() models.Post {
	g := models.Group{ID: 1, Title: "Тестовая группа", Slug: "test-slug", Description: "Описание"}
	return models.Post{
		ID:       3,
		Text:     "Тестовый текст <b>поста</b>",
		PubDate:  time.Date(2021, 4, 3, 9, 0, 0, 0, time.UTC),
		AuthorID: 1,
		GroupID:  sql.NullInt64{Int64: 1, Valid: true},
		Image:    "posts/small.gif",
		Author:   &models.User{ID: 1, Username: "Anon"},
		Group:    &g,
	}
}

func TestNew_ParsesAllPages(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"posts/index.html", "posts/group_list.html", "posts/create_post.html",
		"posts/profile.html", "posts/post_detail.html", "posts/comments.html",
		"posts/follow.html", "misc/404.html", "misc/500.html",
		"about/author.html", "about/tech.html", "users/login.html", "users/signup.html",
	}, h.Names())
}

func onePage(posts ...models.Post) paginate.Page[models.Post] {
	return paginate.Page[models.Post]{
		Items: posts, Number: 1, NumPages: 1, Count: len(posts), PerPage: paginate.PerPage,
	}
}

func TestRender_EveryPage(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	post := samplePost()
	page := onePage(post)
	viewer := &models.User{ID: 1, Username: "Anon"}

	cases := map[string]Data{
		"posts/index.html":       {"Viewer": viewer, "Page": page},
		"posts/group_list.html":  {"Group": post.Group, "Page": page},
		"posts/create_post.html": {"Viewer": viewer, "Form": forms.NewPostForm(&post, []models.Group{*post.Group}), "IsEdit": true, "Post": &post},
		"posts/profile.html": {
			"Viewer": viewer, "Author": viewer, "Page": page, "Count": 1,
			"Followers": 0, "FollowingCount": 0, "IsOwner": true,
			"Avatar": &models.Avatar{Image: "profiles/me.gif"}, "AvatarForm": &forms.AvatarForm{},
		},
		"posts/post_detail.html": {
			"Viewer": viewer, "Post": post, "Author": post.Author, "Count": 1,
			"Comments": []models.Comment{{Text: "коммент", Author: viewer}}, "Form": &forms.CommentForm{}, "CanEdit": true,
		},
		"posts/comments.html": {"Viewer": viewer, "Post": post, "Form": &forms.CommentForm{}},
		"posts/follow.html":   {"Viewer": viewer, "Page": page},
		"misc/404.html":       {"Path": "/nope/"},
		"misc/500.html":       {},
		"about/author.html":   {},
		"about/tech.html":     {},
		"users/login.html":    {"Form": &forms.LoginForm{}, "Next": "/new/"},
		"users/signup.html":   {"Form": &forms.SignupForm{}},
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, h.Render(rec, http.StatusOK, name, data))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), "<html")
		})
	}
}

func TestRender_EscapesAndShowsPost(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	post := samplePost()
	rec := httptest.NewRecorder()
	require.NoError(t, h.Render(rec, http.StatusOK, "posts/index.html", Data{
		"Page": onePage(post),
	}))

	body := rec.Body.String()
	assert.Contains(t, body, "&lt;b&gt;поста&lt;/b&gt;")
	assert.Contains(t, body, `/media/posts/small.gif`)
	assert.Contains(t, body, `/group/test-slug/`)
	assert.Contains(t, body, "/auth/login/", "guest navigation")
}

func TestRender_StatusAndUnknownTemplate(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, h.Render(rec, http.StatusNotFound, "misc/404.html", Data{"Path": "/missing/"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/missing/")

	rec = httptest.NewRecorder()
	assert.Error(t, h.Render(rec, http.StatusOK, "nope.html", nil))
	assert.Zero(t, rec.Body.Len())
}
