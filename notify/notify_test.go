package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/wneessen/go-mail"
)

type capture struct {
	mu   sync.Mutex
	msgs []string
	fail map[string]bool // recipient substring -> fail
}

func (c *capture) deliver(_ context.Context, msg *mail.Msg) error {
	var b bytes.Buffer
	if _, err := msg.WriteTo(&b); err != nil {
		return err
	}
	raw := b.String()
	for r := range c.fail {
		if strings.Contains(raw, r) {
			return errors.New("550 mailbox unavailable")
		}
	}
	c.mu.Lock()
	c.msgs = append(c.msgs, raw)
	c.mu.Unlock()
	return nil
}

func testEmail(c *capture) *Email {
	e := NewEmail(EmailConfig{Host: "smtp.example.org", From: "diario@example.org"})
	e.deliver = c.deliver
	return e
}

func TestEmail_OneMessagePerRecipient(t *testing.T) {
	// WHAT: Each recipient receives a separate message with params as headers.
	// WHY: Recipients of a group must not see each other's addresses.
	c := &capture{}
	err := testEmail(c).Send(context.Background(), Mail{
		To:      []string{"a@example.org", "b@example.org"},
		Subject: "DOE/PB: encontrei kaline",
		HTML:    "<p>Encontrei <b>kaline</b></p>",
		Params:  map[string]string{"Source": "DOE/PB"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(c.msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(c.msgs))
	}
	if strings.Contains(c.msgs[0], "b@example.org") || !strings.Contains(c.msgs[0], "a@example.org") {
		t.Errorf("first message recipients wrong:\n%s", c.msgs[0])
	}
	for _, want := range []string{"X-Diario-Source: DOE/PB", "text/plain", "text/html"} {
		if !strings.Contains(c.msgs[0], want) {
			t.Errorf("message lacks %q", want)
		}
	}
}

func TestEmail_FailureIsolation(t *testing.T) {
	// WHAT: One failing recipient does not block the others; the error names it.
	// WHY: Notification failures are isolated per recipient.
	c := &capture{fail: map[string]bool{"bad@example.org": true}}
	err := testEmail(c).Send(context.Background(), Mail{
		To:      []string{"bad@example.org", "good@example.org"},
		Subject: "s",
		HTML:    "<p>x</p>",
	})
	var sf *ErrSendFailed
	if !errors.As(err, &sf) || sf.Recipient != "bad@example.org" {
		t.Fatalf("err = %v", err)
	}
	if len(c.msgs) != 1 || !strings.Contains(c.msgs[0], "good@example.org") {
		t.Errorf("good recipient not delivered: %d messages", len(c.msgs))
	}
}

func TestEmail_SanitizesHTML(t *testing.T) {
	// WHAT: Script tags are stripped before sending.
	// WHY: Snippets come from third-party documents.
	c := &capture{}
	testEmail(c).Send(context.Background(), Mail{
		To:   []string{"a@example.org"},
		HTML: `<p>ok</p><script>alert(1)</script>`,
	})
	if len(c.msgs) != 1 || strings.Contains(c.msgs[0], "<script>") {
		t.Errorf("script not sanitized: %v", c.msgs)
	}
}

func TestEmail_UnconfiguredIsNoop(t *testing.T) {
	// WHAT: Without host or sender, Send does nothing and succeeds.
	// WHY: Email is optional in a deployment.
	e := NewEmail(EmailConfig{})
	called := false
	e.deliver = func(context.Context, *mail.Msg) error { called = true; return nil }
	if err := e.Send(context.Background(), Mail{To: []string{"a@example.org"}}); err != nil || called {
		t.Errorf("err = %v, called = %v", err, called)
	}
	var nilEmail *Email
	if nilEmail.Configured() {
		t.Error("nil email must not be configured")
	}
}

func TestEmail_NoRecipients(t *testing.T) {
	// WHAT: A configured transport rejects mail without recipients.
	// WHY: Silent drops would hide misconfigured groups.
	if err := testEmail(&capture{}).Send(context.Background(), Mail{}); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("err = %v", err)
	}
}

func TestTelegram_SendMessage(t *testing.T) {
	// WHAT: Send posts chat_id and text to /bot<token>/sendMessage.
	// WHY: Bot API contract.
	var got sendMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{BotToken: "TOKEN", ChatID: "42", BaseURL: srv.URL, PerSecond: 100})
	if err := tg.Send(context.Background(), "DOE/PB ✅ kaline"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.ChatID != "42" || got.Text != "DOE/PB ✅ kaline" || !got.DisableWebPagePreview {
		t.Errorf("payload = %+v", got)
	}
}

func TestTelegram_APIError(t *testing.T) {
	// WHAT: ok=false responses become ErrSendFailed with the API description.
	// WHY: A revoked token must surface as a warning.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{BotToken: "T", ChatID: "1", BaseURL: srv.URL})
	err := tg.Send(context.Background(), "x")
	var sf *ErrSendFailed
	if !errors.As(err, &sf) || !strings.Contains(err.Error(), "Unauthorized") {
		t.Errorf("err = %v", err)
	}
}

func TestTelegram_UnconfiguredIsNoop(t *testing.T) {
	// WHAT: Missing token or chat makes Send a no-op.
	// WHY: Telegram is optional.
	if err := NewTelegram(TelegramConfig{BotToken: "x"}).Send(context.Background(), "x"); err != nil {
		t.Errorf("err = %v", err)
	}
	var nilTG *Telegram
	if err := nilTG.Send(context.Background(), "x"); err != nil {
		t.Errorf("nil err = %v", err)
	}
}

func TestRenderHits_EscapesAndSnippets(t *testing.T) {
	// WHAT: Hits and snippets are HTML-escaped; snippets are separated.
	// WHY: Document text must never inject markup into alerts.
	r, err := RenderHits(Alert{
		Source: "DOE/PB", EditionLabel: "15/03/2024", URL: "https://x/doe.pdf",
		Hits: []string{"kaline", "<b>"}, Snippets: []string{"[…] a […]", "[…] b […]"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.HTML, "&lt;b&gt;") || !strings.Contains(r.HTML, "\n---\n") || !strings.Contains(r.HTML, "de 15/03/2024") {
		t.Errorf("html = %s", r.HTML)
	}
	if r.Subject != "DOE/PB: encontrei kaline, <b>" || r.Params["Edition"] != "15/03/2024" {
		t.Errorf("rendered = %+v", r)
	}
	if !strings.HasSuffix(r.Chat, "\nhttps://x/doe.pdf") {
		t.Errorf("chat = %q", r.Chat)
	}
}

func TestRenderGroup(t *testing.T) {
	// WHAT: Group alerts carry the group name, shared hits and the group's terms.
	// WHY: Subscribers need to know which of their terms fired.
	r, err := RenderGroup(GroupAlert{
		Alert:      Alert{Source: "DEJT TRT-13", URL: "u", Hits: []string{"kaline"}},
		GroupName:  "RH",
		GroupTerms: []string{"kaline", "maria"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.HTML, "RH") || !strings.Contains(r.HTML, "kaline, maria") || r.Params["Group"] != "RH" {
		t.Errorf("rendered = %+v", r)
	}
}

func TestDispatcher_Broadcast(t *testing.T) {
	// WHAT: Global alerts go to the operator mailbox and chat; group alerts only by email.
	// WHY: Group recipients are not members of the operator chat.
	var chats atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chats.Add(1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := &capture{}
	d := NewDispatcher(testEmail(c), NewTelegram(TelegramConfig{BotToken: "T", ChatID: "1", BaseURL: srv.URL, PerSecond: 100}), []string{"ops@example.org"}, nil)
	a := Alert{Source: "DOE/PB", URL: "u", Hits: []string{"kaline"}}
	if err := d.NotifyHits(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if err := d.NotifyGroup(context.Background(), GroupAlert{Alert: a, GroupName: "RH", Recipients: []string{"rh@example.org"}}); err != nil {
		t.Fatal(err)
	}
	if err := d.NotifyEmpty(context.Background(), Alert{Source: "DOE/PB", URL: "u"}); err != nil {
		t.Fatal(err)
	}
	if len(c.msgs) != 3 || chats.Load() != 2 {
		t.Errorf("emails = %d, chats = %d; want 3 and 2", len(c.msgs), chats.Load())
	}
	if err := d.NotifyGroup(context.Background(), GroupAlert{Alert: a}); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("err = %v", err)
	}
}

func TestDispatcher_NothingConfigured(t *testing.T) {
	// WHAT: A dispatcher without transports succeeds silently.
	// WHY: Dry deployments still run the full pipeline.
	d := NewDispatcher(nil, nil, nil, nil)
	a := Alert{Source: "DOE/PB", Hits: []string{"x"}}
	if err := d.NotifyHits(context.Background(), a); err != nil {
		t.Error(err)
	}
	if err := d.NotifyGroup(context.Background(), GroupAlert{Alert: a, Recipients: []string{"a@b.c"}}); err != nil {
		t.Error(err)
	}
}
