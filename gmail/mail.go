package gmail

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/matcornic/hermes/v2"
	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/gracechurch/tidings"
	"github.com/gracechurch/tidings/pkg/hash"
)

type mailService struct {
	ServerURL string
	*tidings.Config

	// dial opens an SMTP session. gomail applies its own dial timeout.
	dial func() (gomail.SendCloser, error)
}

// NewMailService returns a mail service sending through the configured SMTP server
func NewMailService(config *tidings.Config, serverURL string) tidings.MailService {
	d := gomail.NewDialer(config.SMTP.Host, config.SMTP.Port, config.SMTP.Username, config.SMTP.Password)
	return &mailService{
		Config:    config,
		ServerURL: serverURL,
		dial:      d.Dial,
	}
}

func (ms *mailService) hermes() hermes.Hermes {
	link := ms.Config.Newsletter.Product.Link
	if link == "" {
		link = ms.ServerURL
	}
	return hermes.Hermes{
		Product: hermes.Product{
			Name: ms.Config.Newsletter.Product.Name,
			Link: link,
		},
	}
}

// Send sends one envelope: To is visible, Bcc recipients are not
func (ms *mailService) Send(ctx context.Context, e *tidings.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.To == "" {
		return errors.New("envelope has no primary recipient")
	}

	htmlBody, textBody, err := ms.renderBroadcast(e)
	if err != nil {
		return err
	}

	from := e.From
	if from == "" {
		from = ms.Config.Newsletter.From
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", e.To)
	if len(e.Bcc) > 0 {
		m.SetHeader("Bcc", e.Bcc...)
	}
	m.SetHeader("Subject", e.Subject)
	if e.ID != "" {
		m.SetHeader("X-Broadcast-ID", e.ID)
	}
	if e.UnsubscribeURL != "" {
		m.SetHeader("List-Unsubscribe", "<"+e.UnsubscribeURL+">")
	}
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	if err := ms.send(m); err != nil {
		return errors.Errorf("failed to send broadcast %s to %d recipients: %v", e.ID, len(e.Bcc)+1, err)
	}

	return nil
}

// renderBroadcast returns the HTML and plain text parts. The plain text part
// is the message as written. HTML messages are embedded as is, any other
// message is escaped paragraph by paragraph.
func (ms *mailService) renderBroadcast(e *tidings.Envelope) (string, string, error) {
	var footer string
	if e.UnsubscribeURL != "" {
		footer = fmt.Sprintf("You receive this message because you subscribed to %s.", e.Topic)
	}

	var body hermes.Body
	if isHTML(e.Body) {
		markdown := e.Body
		if footer != "" {
			markdown += fmt.Sprintf("\n\n<p>%s <a href=\"%s\">Unsubscribe</a></p>", html.EscapeString(footer), html.EscapeString(e.UnsubscribeURL))
		}
		body.FreeMarkdown = hermes.Markdown(markdown)
	} else {
		body.Intros = paragraphs(e.Body)
		if footer != "" {
			body.Actions = []hermes.Action{{
				Instructions: footer,
				Button: hermes.Button{
					Color: "#DC4D2F",
					Text:  "Unsubscribe",
					Link:  e.UnsubscribeURL,
				},
			}}
		}
	}

	h := ms.hermes()
	htmlBody, err := h.GenerateHTML(hermes.Email{Body: body})
	if err != nil {
		return "", "", errors.Errorf("failed to generate HTML email: %v", err)
	}

	textBody := e.Body
	if footer != "" {
		textBody += "\n\n--\n" + footer + "\nUnsubscribe: " + e.UnsubscribeURL + "\n"
	}

	return htmlBody, textBody, nil
}

func isHTML(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "<")
}

func paragraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SendWelcomeEmail sends a "thank you" email with a signed unsubscribe link per topic
func (ms *mailService) SendWelcomeEmail(ctx context.Context, s *tidings.Subscriber, topics []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	emailBody, err := ms.renderWelcome(s, topics)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", ms.Config.Newsletter.From)
	m.SetHeader("To", s.Email)
	m.SetHeader("Subject", "Thank you for subscribing")
	m.SetBody("text/html", emailBody)

	if err := ms.send(m); err != nil {
		return errors.Errorf("failed to send mail to %s: %v", s.Email, err)
	}

	return nil
}

func (ms *mailService) renderWelcome(s *tidings.Subscriber, topics []string) (string, error) {
	actions := make([]hermes.Action, 0, len(topics))
	for _, topic := range topics {
		link, err := ms.unsubscribeURL(s.Email, topic)
		if err != nil {
			return "", err
		}
		actions = append(actions, hermes.Action{
			Instructions: fmt.Sprintf("You will receive %s updates in your inbox.", strings.ReplaceAll(topic, "_", " ")),
			Button: hermes.Button{
				Color: "#DC4D2F",
				Text:  "Unsubscribe from " + topic,
				Link:  link,
			},
		})
	}

	email := hermes.Email{
		Body: hermes.Body{
			Name: s.Name,
			Intros: []string{
				fmt.Sprintf("Thank you for subscribing to %s", ms.Config.Newsletter.Product.Name),
			},
			Actions: actions,
		},
	}

	h := ms.hermes()
	emailBody, err := h.GenerateHTML(email)
	if err != nil {
		return "", errors.Errorf("failed to generate HTML email: %v", err)
	}

	return emailBody, nil
}

func (ms *mailService) unsubscribeURL(email, topic string) (string, error) {
	secret := ms.Config.Newsletter.HMAC.Secret
	if secret == "" {
		return tidings.UnsubscribeURL(ms.ServerURL, topic, email, ""), nil
	}

	hashValue, err := hash.SignUnsubscribe(email, topic, secret)
	if err != nil {
		return "", err
	}
	return tidings.UnsubscribeURL(ms.ServerURL, topic, email, hashValue), nil
}

func (ms *mailService) send(m *gomail.Message) error {
	s, err := ms.dial()
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer s.Close()

	return gomail.Send(s, m)
}
