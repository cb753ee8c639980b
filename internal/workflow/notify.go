package workflow

import (
	"strings"
	"unicode/utf8"

	"github.com/GianDevelops/corex-portal/internal/models"
)

const maxSubjectRunes = 40

// notifyOther addresses message to the party on the other side of actor.
// Nothing is produced when that party is not assigned yet.
func notifyOther(post *models.Post, actor models.Actor, message string) []models.NotificationIntent {
	recipient := post.ClientID
	if actor.UserID == post.ClientID {
		recipient = post.DesignerID
	}
	if recipient == "" || recipient == actor.UserID {
		return nil
	}
	return []models.NotificationIntent{{
		RecipientID: recipient,
		PostID:      post.ID,
		Message:     message,
	}}
}

// describe names a post in a notification using the start of its caption
func describe(post *models.Post) string {
	caption := strings.Join(strings.Fields(post.Caption), " ")
	if caption == "" {
		return "an untitled post"
	}
	if utf8.RuneCountInString(caption) > maxSubjectRunes {
		runes := []rune(caption)
		caption = strings.TrimSpace(string(runes[:maxSubjectRunes])) + "…"
	}
	return `"` + caption + `"`
}

func displayName(actor models.Actor) string {
	if name := strings.TrimSpace(actor.DisplayName); name != "" {
		return name
	}
	if actor.Role == models.RoleClient {
		return "Your client"
	}
	return "Your designer"
}
