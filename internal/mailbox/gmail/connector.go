package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"ismparse/internal/config"
	"ismparse/internal/mailbox"
)

type Connector struct {
	service *gmail.Service
	query   string
}

// subjectQuery narrows the listing to report mail on the server side. Gmail
// phrase search has no escape for quotes, so they are dropped.
func subjectQuery(filter string) string {
	phrase := strings.Join(strings.Fields(strings.ReplaceAll(filter, `"`, " ")), " ")
	if phrase == "" {
		phrase = mailbox.DefaultSubjectFilter
	}
	return fmt.Sprintf("subject:%q", phrase)
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}
	return &Connector{service: svc, query: subjectQuery(cfg.MailSubjectFilter)}, nil
}

func (c *Connector) Fetch(ctx context.Context, label string, max int) ([]mailbox.Message, error) {
	listCall := c.service.Users.Messages.List("me").LabelIds(label).Q(c.query).Context(ctx)
	if max > 0 {
		listCall = listCall.MaxResults(int64(max))
	}
	listResp, err := listCall.Do()
	if err != nil {
		return nil, err
	}

	out := make([]mailbox.Message, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if ref.Id == "" {
			continue
		}
		rawResp, err := c.service.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if rawResp.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(rawResp.Raw)
		if err != nil {
			return nil, err
		}
		metaResp, err := c.service.Users.Messages.Get("me", ref.Id).Format("metadata").MetadataHeaders("Subject", "From", "Date", "Message-ID").Context(ctx).Do()
		if err != nil {
			return nil, err
		}

		headers := map[string]string{}
		if metaResp.Payload != nil {
			for _, h := range metaResp.Payload.Headers {
				headers[strings.ToLower(h.Name)] = h.Value
			}
		}
		out = append(out, toMessage(ref.Id, headers, raw))
	}
	return out, nil
}

func toMessage(id string, headers map[string]string, raw []byte) mailbox.Message {
	msg := mailbox.Message{
		Provider:   "gmail",
		MessageID:  headers["message-id"],
		Subject:    headers["subject"],
		From:       headers["from"],
		ReceivedAt: time.Now().UTC(),
		Raw:        raw,
	}
	if msg.MessageID == "" {
		msg.MessageID = id
	}
	if date := headers["date"]; date != "" {
		if t, err := mailbox.ParseDate(date); err == nil {
			msg.ReceivedAt = t.UTC()
		}
	}
	return msg
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
