package models

import (
	"io"
	"time"
)

// PostStatus is the workflow state of a post
type PostStatus string

const (
	PostStatusIdea               PostStatus = "post_idea"
	PostStatusInProgress         PostStatus = "in_progress"
	PostStatusAwaitingMedia      PostStatus = "awaiting_media_upload"
	PostStatusScheduled          PostStatus = "scheduled"
	PostStatusPendingReview      PostStatus = "pending_review"
	PostStatusRevisionsRequested PostStatus = "revisions_requested"
	PostStatusApproved           PostStatus = "approved"
)

// PostStatuses lists every status in board column order
var PostStatuses = []PostStatus{
	PostStatusIdea,
	PostStatusInProgress,
	PostStatusAwaitingMedia,
	PostStatusScheduled,
	PostStatusPendingReview,
	PostStatusRevisionsRequested,
	PostStatusApproved,
}

var statusLabels = map[PostStatus]string{
	PostStatusIdea:               "Post Idea",
	PostStatusInProgress:         "In Progress",
	PostStatusAwaitingMedia:      "Awaiting Media Upload",
	PostStatusScheduled:          "Scheduled",
	PostStatusPendingReview:      "Pending Review",
	PostStatusRevisionsRequested: "Revisions Requested",
	PostStatusApproved:           "Approved",
}

// Valid reports whether s is one of the known statuses
func (s PostStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human readable name used in notifications
func (s PostStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// ValidPlatforms defines the channels a post can target
var ValidPlatforms = map[string]bool{
	"instagram": true,
	"facebook":  true,
	"linkedin":  true,
	"x":         true,
	"tiktok":    true,
	"youtube":   true,
	"pinterest": true,
}

// Feedback is a single comment on a post. Entries are never edited once appended.
type Feedback struct {
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AuthorRole Role      `json:"author_role"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// Post is the unit of approvable content moving through the workflow
type Post struct {
	ID            string     `json:"id" db:"id"`
	ClientID      string     `json:"client_id" db:"client_id"`
	DesignerID    string     `json:"designer_id,omitempty" db:"designer_id"` // empty until an idea is claimed
	Status        PostStatus `json:"status" db:"status"`
	Platforms     []string   `json:"platforms" db:"platforms"`
	Caption       string     `json:"caption" db:"caption"`
	Hashtags      string     `json:"hashtags" db:"hashtags"`
	MediaURLs     []string   `json:"media_urls" db:"media_urls"`
	Feedback      []Feedback `json:"feedback" db:"feedback"`
	RevisionCount int        `json:"revision_count" db:"revision_count"`
	SeenBy        []string   `json:"seen_by" db:"seen_by"`
	ArchivedBy    []string   `json:"archived_by" db:"archived_by"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	InternalNotes string     `json:"internal_notes,omitempty" db:"internal_notes"`
	Version       int64      `json:"version" db:"version"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so callers can compute a new state without
// mutating the loaded one
func (p *Post) Clone() *Post {
	c := *p
	c.Platforms = append([]string(nil), p.Platforms...)
	c.MediaURLs = append([]string(nil), p.MediaURLs...)
	c.Feedback = append([]Feedback(nil), p.Feedback...)
	c.SeenBy = append([]string(nil), p.SeenBy...)
	c.ArchivedBy = append([]string(nil), p.ArchivedBy...)
	if p.ScheduledAt != nil {
		t := *p.ScheduledAt
		c.ScheduledAt = &t
	}
	return &c
}

// IsParty reports whether userID is the post's client or designer
func (p *Post) IsParty(userID string) bool {
	return userID != "" && (p.ClientID == userID || p.DesignerID == userID)
}

// ArchivedFor reports whether userID has archived the post
func (p *Post) ArchivedFor(userID string) bool {
	return contains(p.ArchivedBy, userID)
}

// SeenFor reports whether userID has viewed the post since the last comment
func (p *Post) SeenFor(userID string) bool {
	return contains(p.SeenBy, userID)
}

// HasUnread reports whether viewerID has a comment they have not seen yet
func (p *Post) HasUnread(viewerID string) bool {
	if len(p.Feedback) == 0 {
		return false
	}
	last := p.Feedback[len(p.Feedback)-1]
	return last.AuthorID != viewerID && !p.SeenFor(viewerID)
}

// ViewFor returns the post as the given role may see it.
// Internal notes are only visible to designers.
func (p *Post) ViewFor(role Role) *Post {
	if role == RoleDesigner {
		return p
	}
	c := *p
	c.InternalNotes = ""
	return &c
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// PostView is a post decorated with viewer specific flags
type PostView struct {
	*Post
	HasUnread bool `json:"has_unread"`
	Archived  bool `json:"archived"`
}

// PostFilter narrows a user's post listing
type PostFilter struct {
	ClientID string // designers only
	Archived bool   // list archived instead of active posts
}

// CreatePostRequest is the payload for creating a post or idea
type CreatePostRequest struct {
	ClientID      string     `json:"client_id"`
	DesignerID    string     `json:"designer_id"`
	Idea          bool       `json:"idea"`
	Platforms     []string   `json:"platforms"`
	Caption       string     `json:"caption"`
	Hashtags      string     `json:"hashtags"`
	ScheduledAt   *time.Time `json:"scheduled_at"`
	InternalNotes string     `json:"internal_notes"`
}

// UpdatePostRequest carries designer edits; nil fields are left untouched
type UpdatePostRequest struct {
	Caption       *string  `json:"caption"`
	Hashtags      *string  `json:"hashtags"`
	Platforms     []string `json:"platforms"`
	InternalNotes *string  `json:"internal_notes"`
}

// IdeaNDJSON is one line of a bulk idea import
type IdeaNDJSON struct {
	Caption   string   `json:"caption"`
	Hashtags  string   `json:"hashtags"`
	Platforms []string `json:"platforms"`
	ClientID  string   `json:"client_id,omitempty"`
}

// PostDetail is a single post as returned to a viewer, with the actions they may take next
type PostDetail struct {
	PostView
	AvailableActions []string `json:"available_actions"`
}

// BoardColumn holds the posts in one status
type BoardColumn struct {
	Status PostStatus  `json:"status"`
	Label  string      `json:"label"`
	Posts  []*PostView `json:"posts"`
}

// Board is a viewer's active posts grouped by status in workflow order
type Board struct {
	Columns []BoardColumn `json:"columns"`
	Unread  int           `json:"unread"`
}

// MediaUpload is one file received for a post
type MediaUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}
