// Package workflow implements the post approval state machine. It is pure:
// it takes a loaded post and a command and returns the resulting state plus
// the effects the caller must persist and dispatch.
package workflow

import (
	"strings"
	"time"

	"github.com/GianDevelops/corex-portal/internal/models"
)

// DefaultRevisionCap is the number of revision rounds a client gets per post
const DefaultRevisionCap = 2

// Policy holds the configurable business rules
type Policy struct {
	// RevisionCap bounds requestRevision: allowed while revisionCount < RevisionCap
	RevisionCap int
	// ClientFeedbackRequestsRevision makes a client comment on a post pending
	// review also request a revision, when the cap allows one
	ClientFeedbackRequestsRevision bool
}

// DefaultPolicy returns the rules used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{RevisionCap: DefaultRevisionCap}
}

// Command is a request by an actor to perform an action on a post
type Command struct {
	Action      Action
	Actor       models.Actor
	MediaURLs   []string
	Platforms   []string
	ScheduledAt *time.Time
	Text        string
	Edit        *models.UpdatePostRequest
}

// Mutation tells the gateway which write primitive persists the effects
type Mutation int

const (
	// MutationNone means nothing needs to be written
	MutationNone Mutation = iota
	// MutationSave replaces the document, conditional on its version
	MutationSave
	// MutationAppendFeedback appends one feedback entry atomically and resets seenBy
	MutationAppendFeedback
	// MutationMarkSeen adds the actor to seenBy
	MutationMarkSeen
	// MutationArchive adds the actor to archivedBy
	MutationArchive
	// MutationDelete removes every asset and then the record
	MutationDelete
)

// Effects is the outcome of a successful transition
type Effects struct {
	Action        Action
	Post          *models.Post // resulting state, nil after a delete
	From          models.PostStatus
	To            models.PostStatus
	Mutation      Mutation
	Feedback      *models.Feedback
	Notifications []models.NotificationIntent
	DeleteAssets  []string
	// FollowUp is a transition to run after this one has been persisted
	FollowUp *Command
}

// Engine applies commands to posts
type Engine struct {
	policy Policy
	now    func() time.Time
}

// NewEngine creates an engine enforcing policy
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy, now: time.Now}
}

// WithClock replaces the engine's time source
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Policy returns the rules the engine enforces
func (e *Engine) Policy() Policy {
	return e.policy
}

// NewPost builds the initial state for a post created by actor.
// Clients can only submit ideas; designers create ideas or drafts.
func (e *Engine) NewPost(id string, actor models.Actor, req *models.CreatePostRequest) (*models.Post, error) {
	const op = "create_post"
	now := e.now().UTC()

	post := &models.Post{
		ID:          id,
		Platforms:   dedupe(req.Platforms),
		Caption:     strings.TrimSpace(req.Caption),
		Hashtags:    strings.TrimSpace(req.Hashtags),
		MediaURLs:   []string{},
		Feedback:    []models.Feedback{},
		SeenBy:      []string{},
		ArchivedBy:  []string{},
		ScheduledAt: req.ScheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	switch actor.Role {
	case models.RoleClient:
		if req.ClientID != "" && req.ClientID != actor.UserID {
			return nil, Permission(op, "clients can only create ideas for themselves")
		}
		if post.Caption == "" {
			return nil, Validation(op, "caption is required")
		}
		post.ClientID = actor.UserID
		// Left unassigned unless the client names a designer; a designer claims it on conversion.
		post.DesignerID = req.DesignerID
		post.Status = models.PostStatusIdea
	case models.RoleDesigner:
		if req.ClientID == "" {
			return nil, Validation(op, "client is required")
		}
		post.ClientID = req.ClientID
		post.DesignerID = actor.UserID
		post.InternalNotes = req.InternalNotes
		if req.Idea {
			if post.Caption == "" {
				return nil, Validation(op, "caption is required")
			}
			post.Status = models.PostStatusIdea
		} else {
			if post.Caption == "" {
				return nil, Validation(op, "caption is required for a draft")
			}
			post.Status = models.PostStatusInProgress
		}
	default:
		return nil, Permission(op, "unknown role")
	}

	if post.ClientID == post.DesignerID {
		return nil, Validation(op, "client and designer must be different users")
	}
	return post, nil
}

// Apply validates cmd against post and computes the new state and effects.
// post is never modified.
func (e *Engine) Apply(post *models.Post, cmd Command) (*Effects, error) {
	op := string(cmd.Action)
	r, ok := transitions[cmd.Action]
	if !ok {
		return nil, Validation(op, "unknown action")
	}
	if post == nil {
		return nil, NotFound(op, "post not found")
	}
	if !CanAccess(post, cmd.Actor) {
		return nil, Permission(op, "you are not a party to this post")
	}

	// Payload and document preconditions come before role checks so that,
	// for example, sending a post without media to review is always a
	// validation failure.
	if err := e.precheck(post, cmd); err != nil {
		return nil, err
	}
	if !r.allowsRole(cmd.Actor.Role) {
		return nil, Permission(op, "a "+string(cmd.Actor.Role)+" cannot "+humanize(cmd.Action))
	}
	if !r.allowsFrom(post.Status) {
		return nil, Validation(op, "cannot "+humanize(cmd.Action)+" a post that is "+post.Status.Label())
	}

	next := post.Clone()
	fx := &Effects{
		Action:   cmd.Action,
		Post:     next,
		From:     post.Status,
		To:       post.Status,
		Mutation: MutationSave,
	}
	if r.to != "" {
		next.Status = r.to
		fx.To = r.to
	}
	now := e.now().UTC()
	next.UpdatedAt = now

	actorName := displayName(cmd.Actor)

	switch cmd.Action {
	case ActionConvertToPost:
		if next.DesignerID == "" {
			next.DesignerID = cmd.Actor.UserID
		}
		if len(cmd.Platforms) > 0 {
			next.Platforms = dedupe(cmd.Platforms)
		}
		if cmd.ScheduledAt != nil {
			t := cmd.ScheduledAt.UTC()
			next.ScheduledAt = &t
		}
		fx.Notifications = notifyOther(next, cmd.Actor, actorName+" started working on your idea "+describe(next))

	case ActionRequestMedia:
		fx.Notifications = notifyOther(next, cmd.Actor, actorName+" needs media for "+describe(next))

	case ActionUploadMedia:
		next.MediaURLs = append(next.MediaURLs, cmd.MediaURLs...)
		fx.Notifications = notifyOther(next, cmd.Actor, actorName+" uploaded media for "+describe(next))

	case ActionAttachMedia:
		next.MediaURLs = append(next.MediaURLs, cmd.MediaURLs...)

	case ActionSendToReview:
		fx.Notifications = notifyOther(next, cmd.Actor, describe(next)+" is ready for your review")

	case ActionApprove:
		fx.Notifications = notifyOther(next, cmd.Actor, actorName+" approved "+describe(next))

	case ActionRequestRevision:
		next.RevisionCount++
		fx.Notifications = notifyOther(next, cmd.Actor, actorName+" requested revisions on "+describe(next))

	case ActionAddFeedback:
		fb := models.Feedback{
			AuthorID:   cmd.Actor.UserID,
			AuthorName: actorName,
			AuthorRole: cmd.Actor.Role,
			Text:       strings.TrimSpace(cmd.Text),
			Timestamp:  now,
		}
		next.Feedback = append(next.Feedback, fb)
		next.SeenBy = []string{cmd.Actor.UserID}
		fx.Feedback = &fb
		fx.Mutation = MutationAppendFeedback
		fx.Notifications = notifyOther(next, cmd.Actor, actorName+" commented on "+describe(next))
		if e.policy.ClientFeedbackRequestsRevision &&
			cmd.Actor.Role == models.RoleClient &&
			post.Status == models.PostStatusPendingReview &&
			post.RevisionCount < e.policy.RevisionCap {
			fx.FollowUp = &Command{Action: ActionRequestRevision, Actor: cmd.Actor}
		}

	case ActionArchive:
		next.ArchivedBy = append(next.ArchivedBy, cmd.Actor.UserID)
		fx.Mutation = MutationArchive

	case ActionDelete:
		fx.Post = nil
		fx.DeleteAssets = append([]string(nil), post.MediaURLs...)
		fx.Mutation = MutationDelete

	case ActionSchedule:
		t := cmd.ScheduledAt.UTC()
		next.ScheduledAt = &t

	case ActionEditContent:
		applyEdit(next, cmd.Edit)

	case ActionMarkSeen:
		if post.SeenFor(cmd.Actor.UserID) {
			fx.Mutation = MutationNone
			next.UpdatedAt = post.UpdatedAt
		} else {
			next.SeenBy = append(next.SeenBy, cmd.Actor.UserID)
			fx.Mutation = MutationMarkSeen
		}
	}

	return fx, nil
}

// precheck enforces the preconditions that depend on the payload or the
// document rather than on role and status
func (e *Engine) precheck(post *models.Post, cmd Command) error {
	op := string(cmd.Action)
	switch cmd.Action {
	case ActionConvertToPost:
		if post.DesignerID != "" && post.DesignerID != cmd.Actor.UserID {
			return Permission(op, "this idea is assigned to another designer")
		}
		if len(cmd.Platforms) == 0 && len(post.Platforms) == 0 {
			return Validation(op, "at least one platform is required")
		}
	case ActionUploadMedia, ActionAttachMedia:
		if len(nonEmpty(cmd.MediaURLs)) == 0 || len(nonEmpty(cmd.MediaURLs)) != len(cmd.MediaURLs) {
			return Validation(op, "at least one media item is required")
		}
	case ActionSendToReview:
		if len(post.MediaURLs) == 0 {
			return Validation(op, "media required")
		}
	case ActionRequestRevision:
		if post.RevisionCount >= e.policy.RevisionCap {
			return Validation(op, "revision limit reached")
		}
	case ActionAddFeedback:
		if strings.TrimSpace(cmd.Text) == "" {
			return Validation(op, "comment text is required")
		}
	case ActionArchive:
		if post.ArchivedFor(cmd.Actor.UserID) {
			return Validation(op, "post is already archived")
		}
	case ActionDelete:
		if !post.ArchivedFor(cmd.Actor.UserID) {
			return Validation(op, "archive the post before deleting it")
		}
	case ActionSchedule:
		if cmd.ScheduledAt == nil || cmd.ScheduledAt.IsZero() {
			return Validation(op, "a publish time is required")
		}
	case ActionEditContent:
		if cmd.Edit == nil {
			return Validation(op, "nothing to update")
		}
	}
	return nil
}

// CanAccess reports whether actor may act on post at all. Designers can see
// unclaimed ideas so they can pick them up.
func CanAccess(post *models.Post, actor models.Actor) bool {
	if post.IsParty(actor.UserID) {
		return true
	}
	return actor.Role == models.RoleDesigner && post.DesignerID == "" && post.Status == models.PostStatusIdea
}

func applyEdit(p *models.Post, edit *models.UpdatePostRequest) {
	if edit.Caption != nil {
		p.Caption = strings.TrimSpace(*edit.Caption)
	}
	if edit.Hashtags != nil {
		p.Hashtags = strings.TrimSpace(*edit.Hashtags)
	}
	if edit.Platforms != nil {
		p.Platforms = dedupe(edit.Platforms)
	}
	if edit.InternalNotes != nil {
		p.InternalNotes = *edit.InternalNotes
	}
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func humanize(a Action) string {
	return strings.ReplaceAll(string(a), "_", " ")
}
