package domain

import "time"

// Update is a note appended to an idea's thread. Updates are never edited.
type Update struct {
	ID         string
	IdeaID     string
	AuthorID   string
	AuthorRole Role
	Message    string
	Seq        int64
	CreatedAt  time.Time
}

// UpdateView is an update annotated with its author's display name.
type UpdateView struct {
	Update
	AuthorName string
}
