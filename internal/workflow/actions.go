package workflow

import (
	"time"

	"github.com/GianDevelops/corex-portal/internal/models"
)

// Action is an operation an actor requests on a post
type Action string

const (
	ActionConvertToPost   Action = "convert_to_post"
	ActionRequestMedia    Action = "request_media"
	ActionUploadMedia     Action = "upload_media"
	ActionAttachMedia     Action = "attach_media"
	ActionSendToReview    Action = "send_to_review"
	ActionApprove         Action = "approve"
	ActionRequestRevision Action = "request_revision"
	ActionAddFeedback     Action = "add_feedback"
	ActionArchive         Action = "archive"
	ActionDelete          Action = "delete"
	ActionSchedule        Action = "schedule"
	ActionEditContent     Action = "edit_content"
	ActionMarkSeen        Action = "mark_seen"
)

// anyStatus marks a rule that applies from every status
var anyStatus []models.PostStatus

// rule is one row of the transition table
type rule struct {
	from   []models.PostStatus // nil means any status
	actors []models.Role
	to     models.PostStatus // empty means the status is unchanged
}

var (
	designerOnly = []models.Role{models.RoleDesigner}
	clientOnly   = []models.Role{models.RoleClient}
	eitherParty  = []models.Role{models.RoleDesigner, models.RoleClient}
)

// transitions is the single source of truth for who may do what from where
var transitions = map[Action]rule{
	ActionConvertToPost: {
		from:   []models.PostStatus{models.PostStatusIdea},
		actors: designerOnly,
		to:     models.PostStatusInProgress,
	},
	ActionRequestMedia: {
		from:   []models.PostStatus{models.PostStatusInProgress, models.PostStatusScheduled},
		actors: designerOnly,
		to:     models.PostStatusAwaitingMedia,
	},
	ActionUploadMedia: {
		from:   []models.PostStatus{models.PostStatusAwaitingMedia},
		actors: clientOnly,
		to:     models.PostStatusInProgress,
	},
	ActionAttachMedia: {
		from:   []models.PostStatus{models.PostStatusInProgress, models.PostStatusScheduled, models.PostStatusRevisionsRequested},
		actors: designerOnly,
	},
	ActionSendToReview: {
		from:   []models.PostStatus{models.PostStatusInProgress, models.PostStatusScheduled, models.PostStatusRevisionsRequested},
		actors: designerOnly,
		to:     models.PostStatusPendingReview,
	},
	ActionApprove: {
		from:   []models.PostStatus{models.PostStatusPendingReview, models.PostStatusRevisionsRequested},
		actors: clientOnly,
		to:     models.PostStatusApproved,
	},
	ActionRequestRevision: {
		from:   []models.PostStatus{models.PostStatusPendingReview},
		actors: clientOnly,
		to:     models.PostStatusRevisionsRequested,
	},
	ActionAddFeedback: {
		from: []models.PostStatus{
			models.PostStatusIdea,
			models.PostStatusInProgress,
			models.PostStatusAwaitingMedia,
			models.PostStatusScheduled,
			models.PostStatusPendingReview,
			models.PostStatusRevisionsRequested,
		},
		actors: eitherParty,
	},
	ActionArchive: {
		from:   []models.PostStatus{models.PostStatusApproved},
		actors: eitherParty,
	},
	ActionDelete: {
		from:   []models.PostStatus{models.PostStatusApproved},
		actors: designerOnly,
	},
	ActionSchedule: {
		from:   []models.PostStatus{models.PostStatusInProgress, models.PostStatusScheduled, models.PostStatusRevisionsRequested},
		actors: designerOnly,
		to:     models.PostStatusScheduled,
	},
	ActionEditContent: {
		from: []models.PostStatus{
			models.PostStatusIdea,
			models.PostStatusInProgress,
			models.PostStatusAwaitingMedia,
			models.PostStatusScheduled,
			models.PostStatusPendingReview,
			models.PostStatusRevisionsRequested,
		},
		actors: designerOnly,
	},
	ActionMarkSeen: {
		from:   anyStatus,
		actors: eitherParty,
	},
}

// ParseAction validates an action name received from a caller
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := transitions[a]
	return a, ok
}

// Allowed reports whether role may attempt action on a post in status.
// It ignores payload preconditions such as media or revision limits.
func Allowed(action Action, role models.Role, status models.PostStatus) bool {
	r, ok := transitions[action]
	if !ok {
		return false
	}
	return r.allowsRole(role) && r.allowsFrom(status)
}

// AvailableActions lists the actions role could attempt on post right now.
// Actions that pass the role and status table are dry-run with a filled-in
// payload so post preconditions are honoured too.
func (e *Engine) AvailableActions(post *models.Post, actor models.Actor) []Action {
	var out []Action
	for _, a := range actionOrder {
		if !Allowed(a, actor.Role, post.Status) {
			continue
		}
		cmd := Command{
			Action:      a,
			Actor:       actor,
			MediaURLs:   []string{"pending"},
			Text:        "pending",
			ScheduledAt: &sampleTime,
			Edit:        &models.UpdatePostRequest{},
			Platforms:   []string{"pending"},
		}
		if _, err := e.Apply(post, cmd); err == nil {
			out = append(out, a)
		}
	}
	return out
}

var sampleTime = time.Unix(0, 0)

// actionOrder fixes the order of AvailableActions output
var actionOrder = []Action{
	ActionConvertToPost,
	ActionEditContent,
	ActionAttachMedia,
	ActionSchedule,
	ActionRequestMedia,
	ActionUploadMedia,
	ActionSendToReview,
	ActionApprove,
	ActionRequestRevision,
	ActionAddFeedback,
	ActionArchive,
	ActionDelete,
}

func (r rule) allowsRole(role models.Role) bool {
	for _, a := range r.actors {
		if a == role {
			return true
		}
	}
	return false
}

func (r rule) allowsFrom(status models.PostStatus) bool {
	if r.from == nil {
		return true
	}
	for _, s := range r.from {
		if s == status {
			return true
		}
	}
	return false
}
