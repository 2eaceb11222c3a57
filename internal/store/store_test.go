package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"example.com/postfeed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// setupTestStore opens a migrated SQLite store in a temp dir. Timestamps
// advance one second per write so ordering is deterministic.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	base := time.Date(2021, 4, 3, 9, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	dsn := filepath.Join(t.TempDir(), "test.sqlite3")
	s, err := Open(DriverSQLite, dsn, WithClock(clock), WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func mustUser(t *testing.T, s *Store, name string) models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name, "secret")
	require.NoError(t, err)
	return u
}

func mustGroup(t *testing.T, s *Store, slug string) models.Group {
	t.Helper()
	g := models.Group{Title: "Название", Slug: slug, Description: "Описание"}
	require.NoError(t, s.CreateGroup(context.Background(), &g))
	return g
}

func mustPost(t *testing.T, s *Store, author models.User, group *models.Group, text string) models.Post {
	t.Helper()
	p := models.Post{Text: text, AuthorID: author.ID}
	if group != nil {
		p.GroupID = sql.NullInt64{Int64: group.ID, Valid: true}
	}
	require.NoError(t, s.CreatePost(context.Background(), &p))
	return p
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.Error(t, err)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "twice.sqlite3")

	first, err := Open(DriverSQLite, dsn)
	require.NoError(t, err)
	first.Close()

	second, err := Open(DriverSQLite, dsn)
	require.NoError(t, err)
	second.Close()
}

func TestStatementBuilder_Placeholders(t *testing.T) {
	filter := PostFilter{GroupID: 2, FollowerID: 3}

	pg := &Store{sb: statementBuilder(DriverPostgres)}
	query, args, err := applyPostFilter(pg.selectPosts(), filter).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "p.group_id = $1")
	assert.Contains(t, query, "f.user_id = $2")
	assert.NotContains(t, query, "?")
	assert.Equal(t, []interface{}{int64(2), int64(3)}, args)

	lite := &Store{sb: statementBuilder(DriverSQLite)}
	query, _, err = applyPostFilter(lite.selectPosts(), filter).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "p.group_id = ?")
	assert.Contains(t, query, "f.user_id = ?")
	assert.NotContains(t, query, "$1")
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_foreign_keys=on", sqliteDSN("a.db"))
	assert.Equal(t, "a.db?mode=rwc&_foreign_keys=on", sqliteDSN("a.db?mode=rwc"))
	assert.Equal(t, "a.db?_fk=1", sqliteDSN("a.db?_fk=1"))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	u := mustUser(t, s, "Anon")
	assert.NotZero(t, u.ID)

	_, err := s.CreateUser(ctx, "Anon", "other")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := s.GetUserByUsername(ctx, "Anon")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	byID, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anon", byID.Username)

	_, err = s.GetUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Authenticate(ctx, "Anon", "secret")
	assert.NoError(t, err)
	_, err = s.Authenticate(ctx, "Anon", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "ghost", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGroups(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	g := mustGroup(t, s, "test-slug")

	dup := models.Group{Title: "Другая", Slug: "test-slug"}
	assert.ErrorIs(t, s.CreateGroup(ctx, &dup), ErrAlreadyExists)

	got, err := s.GetGroupBySlug(ctx, "test-slug")
	require.NoError(t, err)
	assert.Equal(t, g, got)

	byID, err := s.GetGroupByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "test-slug", byID.Slug)

	_, err = s.GetGroupBySlug(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	mustGroup(t, s, "another")
	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestPosts_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	author := mustUser(t, s, "Anon")
	g := mustGroup(t, s, "test-slug")
	p := mustPost(t, s, author, &g, "Тестовый текст, который длиннее 15 символов")
	assert.NotZero(t, p.ID)
	assert.False(t, p.PubDate.IsZero())

	got, err := s.GetPost(ctx, "Anon", p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Text, got.Text)
	require.NotNil(t, got.Author)
	assert.Equal(t, "Anon", got.Author.Username)
	require.NotNil(t, got.Group)
	assert.Equal(t, "test-slug", got.Group.Slug)
	assert.True(t, got.PubDate.Equal(p.PubDate))

	// author mismatch looks like a missing post
	mustUser(t, s, "Other")
	_, err = s.GetPost(ctx, "Other", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got.Text = "Новый текст"
	got.GroupID = sql.NullInt64{}
	got.Image = "posts/small.gif"
	require.NoError(t, s.UpdatePost(ctx, &got))

	updated, err := s.GetPost(ctx, "Anon", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Новый текст", updated.Text)
	assert.Nil(t, updated.Group)
	assert.Equal(t, "posts/small.gif", updated.Image)

	missing := models.Post{ID: 9999, Text: "x"}
	assert.ErrorIs(t, s.UpdatePost(ctx, &missing), ErrNotFound)
}

func TestPosts_EmptyTextRejectedBySchema(t *testing.T) {
	s := setupTestStore(t)
	author := mustUser(t, s, "Anon")

	p := models.Post{Text: "", AuthorID: author.ID}
	assert.Error(t, s.CreatePost(context.Background(), &p))
}

func TestPosts_ListNewestFirstAndPaged(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	author := mustUser(t, s, "Anon")
	g := mustGroup(t, s, "test-slug")
	for i := 0; i < 13; i++ {
		mustPost(t, s, author, &g, fmt.Sprintf("Test %d", i))
	}
	mustPost(t, s, author, nil, "no group")

	n, err := s.CountPosts(ctx, PostFilter{GroupID: g.ID})
	require.NoError(t, err)
	assert.Equal(t, 13, n)

	page1, err := s.ListPosts(ctx, PostFilter{GroupID: g.ID}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, page1, 10)
	assert.Equal(t, "Test 12", page1[0].Text)

	page2, err := s.ListPosts(ctx, PostFilter{GroupID: g.ID}, 10, 10)
	require.NoError(t, err)
	assert.Len(t, page2, 3)
	assert.Equal(t, "Test 0", page2[2].Text)

	all, err := s.ListPosts(ctx, PostFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 14)
	assert.Equal(t, "no group", all[0].Text)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].PubDate.After(all[i-1].PubDate), "posts must be newest first")
	}

	byAuthor, err := s.CountPosts(ctx, PostFilter{AuthorID: author.ID})
	require.NoError(t, err)
	assert.Equal(t, 14, byAuthor)
}

func TestPosts_FollowerFilter(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	reader := mustUser(t, s, "reader")
	followed := mustUser(t, s, "followed")
	stranger := mustUser(t, s, "stranger")
	mustPost(t, s, followed, nil, "from followed")
	mustPost(t, s, stranger, nil, "from stranger")

	require.NoError(t, s.CreateFollow(ctx, reader.ID, followed.ID))
	// a duplicate edge must not duplicate posts in the feed
	require.NoError(t, s.CreateFollow(ctx, reader.ID, followed.ID))

	posts, err := s.ListPosts(ctx, PostFilter{FollowerID: reader.ID}, 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "from followed", posts[0].Text)

	n, err := s.CountPosts(ctx, PostFilter{FollowerID: stranger.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	author := mustUser(t, s, "Anon")
	p := mustPost(t, s, author, nil, "пост")

	c1 := models.Comment{PostID: p.ID, AuthorID: author.ID, Text: "первый, ах!"}
	c2 := models.Comment{PostID: p.ID, AuthorID: author.ID, Text: "буду вторым"}
	require.NoError(t, s.CreateComment(ctx, &c1))
	require.NoError(t, s.CreateComment(ctx, &c2))

	comments, err := s.ListComments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "первый, ах!", comments[0].Text)
	assert.Equal(t, "Anon", comments[0].Author.Username)

	bad := models.Comment{PostID: 9999, AuthorID: author.ID, Text: "orphan"}
	assert.Error(t, s.CreateComment(ctx, &bad), "foreign keys must be enforced")
}

func TestFollows(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	a := mustUser(t, s, "a")
	b := mustUser(t, s, "b")

	exists, err := s.FollowExists(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.CreateFollow(ctx, a.ID, b.ID))

	exists, err = s.FollowExists(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	followers, err := s.CountFollowers(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, followers)

	following, err := s.CountFollowing(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, following)

	require.NoError(t, s.DeleteFollow(ctx, a.ID, b.ID))
	assert.ErrorIs(t, s.DeleteFollow(ctx, a.ID, b.ID), ErrNotFound)
}

func TestAvatars_FirstOnly(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	u := mustUser(t, s, "Anon")

	_, err := s.GetAvatar(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := s.SaveAvatar(ctx, u.ID, "profiles/one.gif")
	require.NoError(t, err)

	second, err := s.SaveAvatar(ctx, u.ID, "profiles/two.gif")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "existing avatar is updated, not duplicated")

	got, err := s.GetAvatar(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "profiles/two.gif", got.Image)
}

func TestCascades(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	author := mustUser(t, s, "author")
	reader := mustUser(t, s, "reader")
	g := mustGroup(t, s, "test-slug")
	p := mustPost(t, s, author, &g, "в группе")
	c := models.Comment{PostID: p.ID, AuthorID: reader.ID, Text: "коммент"}
	require.NoError(t, s.CreateComment(ctx, &c))
	require.NoError(t, s.CreateFollow(ctx, reader.ID, author.ID))

	// group deletion keeps the post, detached
	require.NoError(t, s.DeleteGroup(ctx, g.ID))
	got, err := s.GetPost(ctx, "author", p.ID)
	require.NoError(t, err)
	assert.False(t, got.GroupID.Valid)

	// post deletion removes its comments
	p2 := mustPost(t, s, author, nil, "второй")
	c2 := models.Comment{PostID: p2.ID, AuthorID: reader.ID, Text: "к второму"}
	require.NoError(t, s.CreateComment(ctx, &c2))
	require.NoError(t, s.DeletePost(ctx, p2.ID))
	comments, err := s.ListComments(ctx, p2.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	// reader deletion removes their comments and follow edges
	require.NoError(t, s.DeleteUser(ctx, reader.ID))
	comments, err = s.ListComments(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
	followers, err := s.CountFollowers(ctx, author.ID)
	require.NoError(t, err)
	assert.Zero(t, followers)

	// author deletion removes their posts
	require.NoError(t, s.DeleteUser(ctx, author.ID))
	n, err := s.CountPosts(ctx, PostFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, s.DeleteUser(ctx, author.ID), ErrNotFound)
}

func TestActivity(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	at := time.Date(2021, 4, 3, 10, 0, 0, 0, time.UTC)
	a := models.Activity{EventID: "e-1", Kind: models.EventPostCreated, ActorID: 1, Payload: `{}`, OccurredAt: at}
	require.NoError(t, s.RecordActivity(ctx, a))
	assert.ErrorIs(t, s.RecordActivity(ctx, a), ErrAlreadyExists)

	b := a
	b.EventID, b.OccurredAt = "e-2", at.Add(time.Minute)
	require.NoError(t, s.RecordActivity(ctx, b))

	list, err := s.ListActivity(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "e-2", list[0].EventID)
}
