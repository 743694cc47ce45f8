package services

import (
	"html/template"
	"strings"
)

// Outbound mail is rendered as minimal inline-styled HTML. The first
// reply quotes the original submission in a grey block the way mail
// clients quote history; follow-ups carry only the new text.

var initialReplyTmpl = template.Must(template.New("initial").Parse(`<div style="font-family: Arial, Helvetica, sans-serif; font-size: 14px; color: #222222; line-height: 1.5;">
<p>Hi {{.Name}},</p>
<div>{{.Reply}}</div>
<p>Best regards,<br>Support Team</p>
<div style="border-left: 3px solid #cccccc; margin-top: 20px; padding-left: 12px; color: #666666;">
<p style="font-size: 12px; margin-bottom: 4px;">Your original message:</p>
<div>{{.Original}}</div>
</div>
</div>`))

var followUpTmpl = template.Must(template.New("followup").Parse(`<div style="font-family: Arial, Helvetica, sans-serif; font-size: 14px; color: #222222; line-height: 1.5;">
<div>{{.Reply}}</div>
<p>Best regards,<br>Support Team</p>
</div>`))

// nl2br escapes text and converts newlines to <br> tags
func nl2br(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return template.HTML(escaped)
}

// RenderInitialReply builds the HTML body of the first outbound mail of
// a ticket
func RenderInitialReply(submitterName, replyText, originalMessage string) (string, error) {
	name := strings.TrimSpace(submitterName)
	if name == "" {
		name = "there"
	}
	var b strings.Builder
	err := initialReplyTmpl.Execute(&b, map[string]interface{}{
		"Name":     name,
		"Reply":    nl2br(replyText),
		"Original": nl2br(originalMessage),
	})
	return b.String(), err
}

// RenderFollowUp builds the HTML body of a follow-up mail
func RenderFollowUp(replyText string) (string, error) {
	var b strings.Builder
	err := followUpTmpl.Execute(&b, map[string]interface{}{
		"Reply": nl2br(replyText),
	})
	return b.String(), err
}
