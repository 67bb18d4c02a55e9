package domain

import "time"

// CommentVisibility differentiates student-visible replies from internal notes.
type CommentVisibility string

const (
	VisibilityPublic   CommentVisibility = "PUBLIC"
	VisibilityInternal CommentVisibility = "INTERNAL"
)

// Comment captures communication on a ticket thread.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorRole Role
	Visibility CommentVisibility
	Body       string
	CreatedAt  time.Time
}
