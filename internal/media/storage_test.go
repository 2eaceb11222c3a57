package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_WritesUnderDir(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	rel, err := s.Save(DirPosts, "small.gif", strings.NewReader("GIF89a"))
	require.NoError(t, err)
	assert.Equal(t, "posts/small.gif", rel)

	data, err := os.ReadFile(filepath.Join(root, "posts", "small.gif"))
	require.NoError(t, err)
	assert.Equal(t, "GIF89a", string(data))
}

func TestSave_CollisionGetsSuffix(t *testing.T) {
	s := New(t.TempDir())

	first, err := s.Save(DirProfiles, "me.png", strings.NewReader("1"))
	require.NoError(t, err)
	second, err := s.Save(DirProfiles, "me.png", strings.NewReader("2"))
	require.NoError(t, err)

	assert.Equal(t, "profiles/me.png", first)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(second, "profiles/me_"))
	assert.True(t, strings.HasSuffix(second, ".png"))
}

func TestSave_StripsDirectories(t *testing.T) {
	s := New(t.TempDir())

	rel, err := s.Save(DirPosts, "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "posts/passwd", rel)

	rel, err = s.Save(DirPosts, `C:\Users\me\pic.gif`, strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "posts/pic.gif", rel)
}

func TestSave_LongNameIsTruncated(t *testing.T) {
	s := New(t.TempDir())

	rel, err := s.Save(DirPosts, strings.Repeat("a", 300)+".gif", strings.NewReader("GIF89a"))
	require.NoError(t, err)
	name := strings.TrimPrefix(rel, "posts/")
	assert.Len(t, name, MaxNameLen)
	assert.True(t, strings.HasSuffix(name, ".gif"))

	again, err := s.Save(DirPosts, strings.Repeat("a", 300)+".gif", strings.NewReader("GIF89a"))
	require.NoError(t, err)
	assert.NotEqual(t, rel, again)
	assert.True(t, strings.HasSuffix(again, ".gif"))
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "short.png", truncateName("short.png"))

	cyr := truncateName(strings.Repeat("ж", 80) + ".jpg")
	assert.LessOrEqual(t, len(cyr), MaxNameLen)
	assert.True(t, utf8.ValidString(cyr))
	assert.True(t, strings.HasSuffix(cyr, ".jpg"))

	longExt := truncateName("pic." + strings.Repeat("x", 200))
	assert.Len(t, longExt, MaxNameLen)
	assert.True(t, strings.HasPrefix(longExt, "pic."))
}
