package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const apiBase = "https://gmail.googleapis.com/gmail/v1/users/me"

// Scopes required for reading, sending and labeling mail
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.modify",
}

// Client wraps the Gmail REST API for the shared sender mailbox
type Client struct {
	httpClient *http.Client
}

// NewClient builds a client around the given OAuth config and token.
// When the token source refreshes the token, onRefresh is invoked with
// the new token so the caller can persist it.
func NewClient(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token, onRefresh func(*oauth2.Token)) *Client {
	src := conf.TokenSource(ctx, tok)
	if onRefresh != nil {
		src = &persistingSource{base: src, last: tok.AccessToken, onRefresh: onRefresh}
	}
	return &Client{httpClient: oauth2.NewClient(ctx, src)}
}

// persistingSource notifies onRefresh whenever the access token changes
type persistingSource struct {
	base      oauth2.TokenSource
	last      string
	onRefresh func(*oauth2.Token)
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		s.onRefresh(tok)
	}
	return tok, nil
}

// Message is one inbox message with its body decoded
type Message struct {
	ID        string // Gmail message id
	ThreadID  string // Gmail thread id
	Subject   string
	From      string // raw From header, possibly "Name <addr>"
	MessageID string // RFC 2822 Message-ID header
	Body      string
}

// SendRequest describes one outbound message
type SendRequest struct {
	From       string
	To         string
	Subject    string
	HTMLBody   string
	InReplyTo  string // Message-ID being answered, empty for first mail
	References string // space-joined Message-ID chain
	ThreadID   string // Gmail thread id to append to, empty for first mail
}

// SendResult reports what Gmail assigned to a sent message
type SendResult struct {
	GmailMessageID string
	ThreadID       string
	MessageID      string // provider-assigned Message-ID header
}

// NewMessageID builds a placeholder RFC 2822 Message-ID scoped to the
// sender's domain. Gmail replaces it on send, so it only serves as a
// fallback when the sent message cannot be refetched.
func NewMessageID(sender string) string {
	domain := "mail.gmail.com"
	if i := strings.LastIndex(sender, "@"); i >= 0 && i+1 < len(sender) {
		domain = sender[i+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// ListUnread returns the ids of up to max unread inbox messages
func (c *Client) ListUnread(ctx context.Context, max int) ([]string, error) {
	q := url.Values{}
	q.Set("q", "is:unread label:INBOX")
	q.Set("maxResults", strconv.Itoa(max))

	body, err := c.get(ctx, "/messages?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode message list: %w", err)
	}

	ids := make([]string, 0, len(list.Messages))
	for _, m := range list.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// GetMessage fetches one message in full and decodes its body,
// preferring the HTML part when both are present
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	body, err := c.get(ctx, "/messages/"+id+"?format=full")
	if err != nil {
		return nil, err
	}

	var raw apiMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", id, err)
	}

	msg := &Message{
		ID:       raw.ID,
		ThreadID: raw.ThreadID,
	}
	if raw.Payload != nil {
		msg.Subject = raw.Payload.header("Subject")
		msg.From = raw.Payload.header("From")
		msg.MessageID = raw.Payload.header("Message-ID")
		if msg.MessageID == "" {
			msg.MessageID = raw.Payload.header("Message-Id")
		}
		msg.Body = extractBody(raw.Payload)
	}
	return msg, nil
}

// Send transmits a message and returns the ids Gmail assigned. The
// provider rewrites the Message-ID header, so the sent message is
// refetched to learn the final value.
func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	localID := NewMessageID(req.From)
	payload := map[string]string{
		"raw": buildRaw(req, localID),
	}
	if req.ThreadID != "" {
		payload["threadId"] = req.ThreadID
	}

	body, err := c.post(ctx, "/messages/send", payload)
	if err != nil {
		return nil, err
	}

	var sent struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	}
	if err := json.Unmarshal(body, &sent); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}

	result := &SendResult{
		GmailMessageID: sent.ID,
		ThreadID:       sent.ThreadID,
		MessageID:      localID,
	}

	// Best effort: the refetch failing does not fail the send
	if meta, err := c.get(ctx, "/messages/"+sent.ID+"?format=metadata&metadataHeaders=Message-ID"); err == nil {
		var m apiMessage
		if json.Unmarshal(meta, &m) == nil && m.Payload != nil {
			if mid := m.Payload.header("Message-ID"); mid != "" {
				result.MessageID = mid
			}
		}
	}

	return result, nil
}

// MarkRead removes the UNREAD label from a message
func (c *Client) MarkRead(ctx context.Context, id string) error {
	payload := map[string][]string{"removeLabelIds": {"UNREAD"}}
	_, err := c.post(ctx, "/messages/"+id+"/modify", payload)
	return err
}

type apiMessage struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	Payload  *apiPart `json:"payload"`
}

type apiPart struct {
	MimeType string `json:"mimeType"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []apiPart `json:"parts"`
}

func (p *apiPart) header(name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody walks the MIME tree and returns the decoded body,
// preferring text/html over text/plain
func extractBody(p *apiPart) string {
	if html := findPart(p, "text/html"); html != "" {
		return html
	}
	if plain := findPart(p, "text/plain"); plain != "" {
		return plain
	}
	return decodeBody(p.Body.Data)
}

func findPart(p *apiPart, mimeType string) string {
	if strings.HasPrefix(p.MimeType, mimeType) && p.Body.Data != "" {
		return decodeBody(p.Body.Data)
	}
	for i := range p.Parts {
		if body := findPart(&p.Parts[i], mimeType); body != "" {
			return body
		}
	}
	return ""
}

func decodeBody(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

// buildRaw assembles an RFC 2822 HTML message and base64url-encodes it
func buildRaw(req SendRequest, messageID string) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", req.From)
	fmt.Fprintf(&b, "To: %s\r\n", req.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", req.Subject)
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	if req.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", req.InReplyTo)
	}
	if req.References != "" {
		fmt.Fprintf(&b, "References: %s\r\n", req.References)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(req.HTMLBody)
	return base64.RawURLEncoding.EncodeToString(b.Bytes())
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gmail api: %s: %s", resp.Status, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
