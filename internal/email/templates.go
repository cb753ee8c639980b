package email

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/GianDevelops/corex-portal/internal/models"
)

const maxSubjectRunes = 78

func subjectFor(n *models.Notification) string {
	subject := strings.Join(strings.Fields(n.Message), " ")
	if subject == "" {
		return "Corex Portal update"
	}
	if utf8.RuneCountInString(subject) > maxSubjectRunes {
		subject = strings.TrimSpace(string([]rune(subject)[:maxSubjectRunes-1])) + "…"
	}
	return subject
}

func (s *Sender) postLink(postID string) string {
	return s.baseURL + "/?open=" + postID
}

func (s *Sender) formatNotificationBody(to *models.User, n *models.Notification) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 640px; margin: 0 auto; padding: 20px; }\n")
	b.WriteString(".message { font-size: 1.1em; margin: 20px 0; }\n")
	b.WriteString(".button { display: inline-block; padding: 10px 18px; background: #4f46e5; color: #fff; border-radius: 6px; text-decoration: none; }\n")
	b.WriteString(".footer { margin-top: 30px; font-size: 0.85em; color: #7f8c8d; }\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	name := strings.TrimSpace(to.Name)
	if name == "" {
		name = "there"
	}
	b.WriteString(fmt.Sprintf("<p>Hi %s,</p>\n", html.EscapeString(name)))
	b.WriteString(fmt.Sprintf("<p class=\"message\">%s</p>\n", html.EscapeString(n.Message)))
	b.WriteString(fmt.Sprintf("<p><a class=\"button\" href=\"%s\">Open the post</a></p>\n", html.EscapeString(s.postLink(n.PostID))))
	b.WriteString("<p class=\"footer\">You are receiving this because you are working on this post in Corex Portal.</p>\n")

	b.WriteString("</body>\n</html>\n")
	return b.String()
}
