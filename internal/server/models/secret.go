package models

import "time"

// Secret is a short anonymous post. CreatorID is never exposed as a
// username to readers.
type Secret struct {
	ID         int64
	CreatorID  int64
	Content    string
	CreatedAt  time.Time
	ModifiedAt *time.Time
	LikeCount  int
	HugCount   int
	Banned     bool
}

type Comment struct {
	ID         int64
	SecretID   int64
	CreatorID  int64
	Content    string
	CreatedAt  time.Time
	ModifiedAt *time.Time
	LikeCount  int
	Banned     bool
}
