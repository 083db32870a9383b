package domain

import "time"

// Blog is a published article.
type Blog struct {
	ID          string     `json:"_id,omitempty"`
	Title       string     `json:"title" validate:"min=1"`
	Content     string     `json:"content" validate:"min=1"`
	Author      string     `json:"author" validate:"min=1"`
	ImageURL    *string    `json:"imageUrl" validate:"omitempty,url"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	IsPublished *bool      `json:"isPublished,omitempty"`
}

// ApplyDefaults sets the timestamps and publication flag the API may omit.
func (b *Blog) ApplyDefaults(now time.Time) {
	if b.CreatedAt == nil {
		b.CreatedAt = &now
	}
	if b.UpdatedAt == nil {
		b.UpdatedAt = &now
	}
	if b.IsPublished == nil {
		published := true
		b.IsPublished = &published
	}
}

// Published reports the publication flag, defaulting to true.
func (b *Blog) Published() bool {
	return b.IsPublished == nil || *b.IsPublished
}

// Validate applies defaults and checks the blog schema.
func (b *Blog) Validate() error {
	b.ApplyDefaults(time.Now())
	return Validate("blog", b)
}
