package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestPost_HasBody(t *testing.T) {
	tests := []struct {
		name string
		post Post
		want bool
	}{
		{"empty", Post{}, false},
		{"blank content", Post{Content: strPtr("   ")}, false},
		{"content", Post{Content: strPtr("hello")}, true},
		{"image only", Post{ImageURL: strPtr("https://cdn.example.com/a.png")}, true},
		{"blank image and content", Post{Content: strPtr(""), ImageURL: strPtr(" ")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.post.HasBody())
		})
	}
}

func TestPost_IsPublished(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, (&Post{PublishedAt: now}).IsPublished(now))
	assert.True(t, (&Post{PublishedAt: now.Add(-time.Minute)}).IsPublished(now))
	assert.False(t, (&Post{PublishedAt: now.Add(time.Second)}).IsPublished(now))
}
