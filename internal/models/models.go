package models

import (
	"database/sql"
	"time"
)

// shortTextLen is how many characters of a post's text are shown in lists.
const shortTextLen = 15

type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Created      time.Time `db:"created_at" json:"created"`
}

type Group struct {
	ID          int64  `db:"id" json:"id"`
	Title       string `db:"title" json:"title" yaml:"title"`
	Slug        string `db:"slug" json:"slug" yaml:"slug"`
	Description string `db:"description" json:"description" yaml:"description"`
}

func (g Group) String() string {
	return g.Title
}

// Post is a single entry in a feed. Author and Group are filled by the store
// when a post is loaded for display.
type Post struct {
	ID       int64         `db:"id" json:"id"`
	Text     string        `db:"text" json:"text"`
	PubDate  time.Time     `db:"pub_date" json:"pub_date"`
	AuthorID int64         `db:"author_id" json:"author_id"`
	GroupID  sql.NullInt64 `db:"group_id" json:"-"`
	Image    string        `db:"image" json:"image,omitempty"`

	Author *User  `db:"-" json:"-"`
	Group  *Group `db:"-" json:"-"`
}

// ShortText returns the first 15 characters of the text when it is at least
// that long, and the whole text otherwise.
func (p Post) ShortText() string {
	r := []rune(p.Text)
	if len(r) >= shortTextLen {
		return string(r[:shortTextLen])
	}
	return p.Text
}

func (p Post) String() string {
	return p.ShortText()
}

type Comment struct {
	ID       int64     `db:"id" json:"id"`
	PostID   int64     `db:"post_id" json:"post_id"`
	AuthorID int64     `db:"author_id" json:"author_id"`
	Text     string    `db:"text" json:"text"`
	Created  time.Time `db:"created_at" json:"created"`

	Author *User `db:"-" json:"-"`
}

// Follow is a directed edge: UserID follows AuthorID.
type Follow struct {
	ID       int64 `db:"id" json:"id"`
	UserID   int64 `db:"user_id" json:"user_id"`
	AuthorID int64 `db:"author_id" json:"author_id"`
}

type Avatar struct {
	ID        int64  `db:"id" json:"id"`
	ProfileID int64  `db:"profile_id" json:"profile_id"`
	Image     string `db:"image" json:"image"`
}

// Event kinds published after successful writes.
const (
	EventPostCreated    = "post_created"
	EventPostEdited     = "post_edited"
	EventCommentCreated = "comment_created"
	EventFollowCreated  = "follow_created"
	EventFollowDeleted  = "follow_deleted"
	EventAvatarUpdated  = "avatar_updated"
)

type Event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	ActorID    int64     `json:"actor_id"`
	PostID     int64     `json:"post_id,omitempty"`
	TargetID   int64     `json:"target_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Activity is an Event as recorded by the worker.
type Activity struct {
	ID         int64     `db:"id" json:"id"`
	EventID    string    `db:"event_id" json:"event_id"`
	Kind       string    `db:"kind" json:"kind"`
	ActorID    int64     `db:"actor_id" json:"actor_id"`
	Payload    string    `db:"payload" json:"payload"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}
