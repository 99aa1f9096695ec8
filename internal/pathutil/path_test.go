package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain file", "a/b.txt", "a/b.txt"},
		{"directory marker", "a/b/", "a/b/"},
		{"leading dot slash", "./a/b.txt", "a/b.txt"},
		{"leading slash", "/a/b.txt", "a/b.txt"},
		{"duplicate separators", "a//b///c", "a/b/c"},
		{"dot element", "a/./b/", "a/b/"},
		{"root dot", "./", ""},
		{"root slash", "/", ""},
		{"empty", "", ""},
		{"traversal", "../etc/passwd", ""},
		{"inner traversal", "a/../../b", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestRooted(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/newdir", "/newdir/"},
		{"newdir", "/newdir/"},
		{"/a//b/", "/a/b/"},
		{"", "/"},
		{"/", "/"},
		{"/a/../b", "/b/"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Rooted(tt.input))
		})
	}
}

func TestDir(t *testing.T) {
	assert.Equal(t, "/a/", Dir("/a/b.txt"))
	assert.Equal(t, "/a/", Dir("/a/b/"))
	assert.Equal(t, "/", Dir("/a/"))
	assert.Equal(t, "/", Dir("/a"))
	assert.Equal(t, "/", Dir("/"))
}

func TestBase(t *testing.T) {
	assert.Equal(t, "b.txt", Base("/a/b.txt"))
	assert.Equal(t, "b", Base("/a/b/"))
	assert.Equal(t, "a", Base("a/"))
	assert.Equal(t, "/", Base("/"))
	assert.Equal(t, "", Base(""))
}

func TestIsChild(t *testing.T) {
	tests := []struct {
		fullname string
		dir      string
		want     bool
	}{
		{"/a/", "/", true},
		{"/top.txt", "/", true},
		{"/a/b.txt", "/", false},
		{"/a/c/d.txt", "/", false},
		{"/a/c/", "/", false},
		{"/", "/", false},
		{"/a/b.txt", "/a/", true},
		{"/a/c/", "/a/", true},
		{"/a/c/d.txt", "/a/", false},
		{"/ab/", "/a/", false},
	}
	for _, tt := range tests {
		t.Run(tt.dir+"|"+tt.fullname, func(t *testing.T) {
			assert.Equal(t, tt.want, IsChild(tt.fullname, tt.dir))
		})
	}
}

func TestUnder(t *testing.T) {
	assert.True(t, Under("a/", "a/"))
	assert.True(t, Under("a/b.txt", "a/"))
	assert.True(t, Under("a/c/d.txt", "a/"))
	assert.False(t, Under("ab/x", "a/"))
	assert.True(t, Under("a.txt", "a.txt"))
	assert.False(t, Under("a.txt.bak", "a.txt"))
}

func TestParents(t *testing.T) {
	assert.Equal(t, []string{"a/", "a/b/"}, Parents("a/b/c.txt"))
	assert.Equal(t, []string{"a/"}, Parents("a/b/"))
	assert.Nil(t, Parents("top.txt"))
	assert.Nil(t, Parents("dir/"))
}
