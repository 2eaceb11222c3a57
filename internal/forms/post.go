package forms

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"example.com/postfeed/internal/models"
	"example.com/postfeed/internal/validate"
)

// PostForm edits text, group and image of a post.
type PostForm struct {
	Form
	Text  string
	Group string
	Image *Upload

	// Choices are the groups the post may be filed under.
	Choices []models.Group
}

// NewPostForm returns a form prefilled from post, or an empty one.
func NewPostForm(post *models.Post, choices []models.Group) *PostForm {
	f := &PostForm{Choices: choices}
	if post != nil {
		f.Text = post.Text
		if post.GroupID.Valid {
			f.Group = strconv.FormatInt(post.GroupID.Int64, 10)
		}
	}
	return f
}

func (f *PostForm) Bind(r *http.Request) error {
	if err := parse(r); err != nil {
		return err
	}
	f.Text = strings.TrimSpace(r.FormValue("text"))
	f.Group = strings.TrimSpace(r.FormValue("group"))

	img, err := readUpload(r, "image")
	if err != nil {
		return err
	}
	f.Image = img
	return nil
}

func (f *PostForm) Valid() bool {
	f.Errors = nil
	f.Check("text", validate.NotEmpty(f.Text))
	if f.Group != "" {
		if _, ok := f.groupID(); !ok {
			f.AddError("group", msgBadChoice)
		}
	}
	f.checkImage("image", f.Image)
	return !f.HasErrors()
}

// GroupID returns the chosen group, unset when none was picked.
func (f *PostForm) GroupID() sql.NullInt64 {
	id, ok := f.groupID()
	return sql.NullInt64{Int64: id, Valid: ok}
}

func (f *PostForm) groupID() (int64, bool) {
	if f.Group == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(f.Group, 10, 64)
	if err != nil {
		return 0, false
	}
	for _, g := range f.Choices {
		if g.ID == id {
			return id, true
		}
	}
	return 0, false
}

// Selected reports whether group g is the current choice, for templates.
func (f *PostForm) Selected(g models.Group) bool {
	return f.Group == strconv.FormatInt(g.ID, 10)
}

// Apply copies the form fields onto post. The image path is only replaced
// when a new file was stored.
func (f *PostForm) Apply(post *models.Post, imagePath string) {
	post.Text = f.Text
	post.GroupID = f.GroupID()
	if imagePath != "" {
		post.Image = imagePath
	}
}

// CommentForm holds the text of a new comment.
type CommentForm struct {
	Form
	Text string
}

func (f *CommentForm) Bind(r *http.Request) error {
	if err := parse(r); err != nil {
		return err
	}
	f.Text = strings.TrimSpace(r.FormValue("text"))
	return nil
}

func (f *CommentForm) Valid() bool {
	f.Errors = nil
	f.Check("text", validate.NotEmpty(f.Text))
	return !f.HasErrors()
}

// AvatarForm uploads a profile picture.
type AvatarForm struct {
	Form
	Image *Upload
}

func (f *AvatarForm) Bind(r *http.Request) error {
	if err := parse(r); err != nil {
		return err
	}
	img, err := readUpload(r, "image")
	if err != nil {
		return err
	}
	f.Image = img
	return nil
}

// Valid requires a decodable image.
func (f *AvatarForm) Valid() bool {
	f.Errors = nil
	if f.Image == nil {
		f.Check("image", validate.NotEmpty(""))
	}
	f.checkImage("image", f.Image)
	return !f.HasErrors()
}
