package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"example.com/postfeed/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// MockStore simulates the SQL store in memory for handler tests.
// It keeps the same ordering and cascade rules as the real schema.
type MockStore struct {
	mu sync.Mutex

	Users      map[int64]models.User
	Groups     map[int64]models.Group
	Posts      map[int64]models.Post
	Comments   map[int64]models.Comment
	Follows    map[int64]models.Follow
	Avatars    map[int64]models.Avatar
	Activity   []models.Activity
	Now        func() time.Time
	lastID     int64
	ShouldFail bool // flag to simulate failures
}

var (
	_ StoreInterface = (*MockStore)(nil)
	_ StoreInterface = (*MockStoreFail)(nil)

	errMockFail = errors.New("mock: operation failed")
)

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users:    make(map[int64]models.User),
		Groups:   make(map[int64]models.Group),
		Posts:    make(map[int64]models.Post),
		Comments: make(map[int64]models.Comment),
		Follows:  make(map[int64]models.Follow),
		Avatars:  make(map[int64]models.Avatar),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MockStore) Close() {}

func (m *MockStore) nextID() int64 {
	m.lastID++
	return m.lastID
}

// --- Users ---

func (m *MockStore) CreateUser(_ context.Context, username, password string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, errMockFail
	}
	for _, u := range m.Users {
		if u.Username == username {
			return models.User{}, ErrAlreadyExists
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{ID: m.nextID(), Username: username, PasswordHash: string(hash), Created: m.Now()}
	m.Users[u.ID] = u
	return u, nil
}

func (m *MockStore) GetUserByID(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, errMockFail
	}
	u, ok := m.Users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MockStore) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, errMockFail
	}
	return m.userByName(username)
}

func (m *MockStore) userByName(username string) (models.User, error) {
	for _, u := range m.Users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *MockStore) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	u, err := m.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// DeleteUser cascades to posts, comments, follows and avatars.
func (m *MockStore) DeleteUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Users[id]; !ok {
		return ErrNotFound
	}
	delete(m.Users, id)
	for pid, p := range m.Posts {
		if p.AuthorID == id {
			m.deletePost(pid)
		}
	}
	for cid, c := range m.Comments {
		if c.AuthorID == id {
			delete(m.Comments, cid)
		}
	}
	for fid, f := range m.Follows {
		if f.UserID == id || f.AuthorID == id {
			delete(m.Follows, fid)
		}
	}
	for aid, a := range m.Avatars {
		if a.ProfileID == id {
			delete(m.Avatars, aid)
		}
	}
	return nil
}

// --- Groups ---

func (m *MockStore) CreateGroup(_ context.Context, group *models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	for _, g := range m.Groups {
		if g.Slug == group.Slug {
			return ErrAlreadyExists
		}
	}
	group.ID = m.nextID()
	m.Groups[group.ID] = *group
	return nil
}

func (m *MockStore) GetGroupByID(_ context.Context, id int64) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Group{}, errMockFail
	}
	g, ok := m.Groups[id]
	if !ok {
		return models.Group{}, ErrNotFound
	}
	return g, nil
}

func (m *MockStore) GetGroupBySlug(_ context.Context, slug string) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Group{}, errMockFail
	}
	for _, g := range m.Groups {
		if g.Slug == slug {
			return g, nil
		}
	}
	return models.Group{}, ErrNotFound
}

func (m *MockStore) ListGroups(_ context.Context) ([]models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	out := make([]models.Group, 0, len(m.Groups))
	for _, g := range m.Groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteGroup detaches the group's posts.
func (m *MockStore) DeleteGroup(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Groups[id]; !ok {
		return ErrNotFound
	}
	delete(m.Groups, id)
	for pid, p := range m.Posts {
		if p.GroupID.Valid && p.GroupID.Int64 == id {
			p.GroupID.Valid = false
			p.GroupID.Int64 = 0
			m.Posts[pid] = p
		}
	}
	return nil
}

// --- Posts ---

func (m *MockStore) CreatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	if post.Text == "" {
		return errors.New("mock: empty post text")
	}
	if post.PubDate.IsZero() {
		post.PubDate = m.Now()
	}
	post.ID = m.nextID()
	stored := *post
	stored.Author, stored.Group = nil, nil
	m.Posts[post.ID] = stored
	return nil
}

func (m *MockStore) UpdatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	p, ok := m.Posts[post.ID]
	if !ok {
		return ErrNotFound
	}
	p.Text, p.GroupID, p.Image = post.Text, post.GroupID, post.Image
	m.Posts[post.ID] = p
	return nil
}

func (m *MockStore) GetPost(_ context.Context, authorUsername string, id int64) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Post{}, errMockFail
	}
	p, ok := m.Posts[id]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	if m.Users[p.AuthorID].Username != authorUsername {
		return models.Post{}, ErrNotFound
	}
	return m.hydrate(p), nil
}

func (m *MockStore) CountPosts(_ context.Context, filter PostFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return 0, errMockFail
	}
	return len(m.filterPosts(filter)), nil
}

func (m *MockStore) ListPosts(_ context.Context, filter PostFilter, limit, offset int) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	posts := m.filterPosts(filter)
	if offset > len(posts) {
		offset = len(posts)
	}
	posts = posts[offset:]
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	out := make([]models.Post, len(posts))
	for i, p := range posts {
		out[i] = m.hydrate(p)
	}
	return out, nil
}

func (m *MockStore) DeletePost(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Posts[id]; !ok {
		return ErrNotFound
	}
	m.deletePost(id)
	return nil
}

func (m *MockStore) deletePost(id int64) {
	delete(m.Posts, id)
	for cid, c := range m.Comments {
		if c.PostID == id {
			delete(m.Comments, cid)
		}
	}
}

// filterPosts returns matching posts newest first.
func (m *MockStore) filterPosts(f PostFilter) []models.Post {
	var followed map[int64]bool
	if f.FollowerID != 0 {
		followed = make(map[int64]bool)
		for _, fl := range m.Follows {
			if fl.UserID == f.FollowerID {
				followed[fl.AuthorID] = true
			}
		}
	}

	var out []models.Post
	for _, p := range m.Posts {
		if f.AuthorID != 0 && p.AuthorID != f.AuthorID {
			continue
		}
		if f.GroupID != 0 && (!p.GroupID.Valid || p.GroupID.Int64 != f.GroupID) {
			continue
		}
		if followed != nil && !followed[p.AuthorID] {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PubDate.Equal(out[j].PubDate) {
			return out[i].PubDate.After(out[j].PubDate)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *MockStore) hydrate(p models.Post) models.Post {
	author := m.Users[p.AuthorID]
	p.Author = &models.User{ID: author.ID, Username: author.Username}
	if p.GroupID.Valid {
		if g, ok := m.Groups[p.GroupID.Int64]; ok {
			p.Group = &g
		}
	}
	return p
}

// --- Comments ---

func (m *MockStore) CreateComment(_ context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	if _, ok := m.Posts[comment.PostID]; !ok {
		return errors.New("mock: comment references missing post")
	}
	if comment.Created.IsZero() {
		comment.Created = m.Now()
	}
	comment.ID = m.nextID()
	stored := *comment
	stored.Author = nil
	m.Comments[comment.ID] = stored
	return nil
}

func (m *MockStore) ListComments(_ context.Context, postID int64) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	var out []models.Comment
	for _, c := range m.Comments {
		if c.PostID == postID {
			author := m.Users[c.AuthorID]
			c.Author = &models.User{ID: author.ID, Username: author.Username}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Follows ---

func (m *MockStore) CreateFollow(_ context.Context, userID, authorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	id := m.nextID()
	m.Follows[id] = models.Follow{ID: id, UserID: userID, AuthorID: authorID}
	return nil
}

func (m *MockStore) FollowExists(_ context.Context, userID, authorID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false, errMockFail
	}
	for _, f := range m.Follows {
		if f.UserID == userID && f.AuthorID == authorID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStore) DeleteFollow(_ context.Context, userID, authorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	removed := 0
	for id, f := range m.Follows {
		if f.UserID == userID && f.AuthorID == authorID {
			delete(m.Follows, id)
			removed++
		}
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MockStore) CountFollowers(_ context.Context, authorID int64) (int, error) {
	return m.countFollows(func(f models.Follow) bool { return f.AuthorID == authorID })
}

func (m *MockStore) CountFollowing(_ context.Context, userID int64) (int, error) {
	return m.countFollows(func(f models.Follow) bool { return f.UserID == userID })
}

func (m *MockStore) countFollows(match func(models.Follow) bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return 0, errMockFail
	}
	n := 0
	for _, f := range m.Follows {
		if match(f) {
			n++
		}
	}
	return n, nil
}

// --- Avatars ---

func (m *MockStore) GetAvatar(_ context.Context, profileID int64) (models.Avatar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Avatar{}, errMockFail
	}
	a, ok := m.firstAvatar(profileID)
	if !ok {
		return models.Avatar{}, ErrNotFound
	}
	return a, nil
}

func (m *MockStore) SaveAvatar(_ context.Context, profileID int64, image string) (models.Avatar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Avatar{}, errMockFail
	}
	a, ok := m.firstAvatar(profileID)
	if !ok {
		a = models.Avatar{ID: m.nextID(), ProfileID: profileID}
	}
	a.Image = image
	m.Avatars[a.ID] = a
	return a, nil
}

func (m *MockStore) firstAvatar(profileID int64) (models.Avatar, bool) {
	var first models.Avatar
	found := false
	for _, a := range m.Avatars {
		if a.ProfileID == profileID && (!found || a.ID < first.ID) {
			first, found = a, true
		}
	}
	return first, found
}

// --- Activity ---

func (m *MockStore) RecordActivity(_ context.Context, a models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	for _, existing := range m.Activity {
		if existing.EventID == a.EventID {
			return ErrAlreadyExists
		}
	}
	a.ID = m.nextID()
	m.Activity = append(m.Activity, a)
	return nil
}

func (m *MockStore) ListActivity(_ context.Context, limit int) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	out := make([]models.Activity, len(m.Activity))
	for i, a := range m.Activity {
		out[len(out)-1-i] = a
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

var errMockStoreFail = errors.New("mock store failed")

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) CreateUser(context.Context, string, string) (models.User, error) {
	return models.User{}, errMockStoreFail
}
func (m *MockStoreFail) GetUserByID(context.Context, int64) (models.User, error) {
	return models.User{}, errMockStoreFail
}
func (m *MockStoreFail) GetUserByUsername(context.Context, string) (models.User, error) {
	return models.User{}, errMockStoreFail
}
func (m *MockStoreFail) Authenticate(context.Context, string, string) (models.User, error) {
	return models.User{}, errMockStoreFail
}
func (m *MockStoreFail) DeleteUser(context.Context, int64) error { return errMockStoreFail }

func (m *MockStoreFail) CreateGroup(context.Context, *models.Group) error { return errMockStoreFail }
func (m *MockStoreFail) GetGroupByID(context.Context, int64) (models.Group, error) {
	return models.Group{}, errMockStoreFail
}
func (m *MockStoreFail) GetGroupBySlug(context.Context, string) (models.Group, error) {
	return models.Group{}, errMockStoreFail
}
func (m *MockStoreFail) ListGroups(context.Context) ([]models.Group, error) {
	return nil, errMockStoreFail
}
func (m *MockStoreFail) DeleteGroup(context.Context, int64) error { return errMockStoreFail }

func (m *MockStoreFail) CreatePost(context.Context, *models.Post) error { return errMockStoreFail }
func (m *MockStoreFail) UpdatePost(context.Context, *models.Post) error { return errMockStoreFail }
func (m *MockStoreFail) GetPost(context.Context, string, int64) (models.Post, error) {
	return models.Post{}, errMockStoreFail
}
func (m *MockStoreFail) CountPosts(context.Context, PostFilter) (int, error) {
	return 0, errMockStoreFail
}
func (m *MockStoreFail) ListPosts(context.Context, PostFilter, int, int) ([]models.Post, error) {
	return nil, errMockStoreFail
}
func (m *MockStoreFail) DeletePost(context.Context, int64) error { return errMockStoreFail }

func (m *MockStoreFail) CreateComment(context.Context, *models.Comment) error {
	return errMockStoreFail
}
func (m *MockStoreFail) ListComments(context.Context, int64) ([]models.Comment, error) {
	return nil, errMockStoreFail
}

func (m *MockStoreFail) CreateFollow(context.Context, int64, int64) error { return errMockStoreFail }
func (m *MockStoreFail) FollowExists(context.Context, int64, int64) (bool, error) {
	return false, errMockStoreFail
}
func (m *MockStoreFail) DeleteFollow(context.Context, int64, int64) error { return errMockStoreFail }
func (m *MockStoreFail) CountFollowers(context.Context, int64) (int, error) {
	return 0, errMockStoreFail
}
func (m *MockStoreFail) CountFollowing(context.Context, int64) (int, error) {
	return 0, errMockStoreFail
}

func (m *MockStoreFail) GetAvatar(context.Context, int64) (models.Avatar, error) {
	return models.Avatar{}, errMockStoreFail
}
func (m *MockStoreFail) SaveAvatar(context.Context, int64, string) (models.Avatar, error) {
	return models.Avatar{}, errMockStoreFail
}

func (m *MockStoreFail) RecordActivity(context.Context, models.Activity) error {
	return errMockStoreFail
}
func (m *MockStoreFail) ListActivity(context.Context, int) ([]models.Activity, error) {
	return nil, errMockStoreFail
}
