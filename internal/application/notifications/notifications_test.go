package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"stocktransfer-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, content string
}

type recordingSender struct {
	sent []sentMail
	err  error
}

func (r *recordingSender) Send(ctx context.Context, toEmail, toName, subject, contentHTML string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentMail{to: toEmail, subject: subject, content: contentHTML})
	return nil
}

func fixedSigner(now time.Time) *InviteSigner {
	return &InviteSigner{Secret: []byte("test-secret"), TTL: time.Hour, Issuer: "ledger", Now: func() time.Time { return now }}
}

func TestInviteSigner_RoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := fixedSigner(now)
	token, expires, err := s.Sign(InviteClaims{ShareholderID: "sh-1", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expires)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "sh-1", claims.ShareholderID)
	assert.Equal(t, "sh-1", claims.Subject)
}

func TestInviteSigner_RejectsExpiredAndForeignTokens(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := fixedSigner(now)
	token, _, err := s.Sign(InviteClaims{ShareholderID: "sh-1"})
	require.NoError(t, err)

	later := fixedSigner(now.Add(2 * time.Hour))
	_, err = later.Verify(token)
	assert.Error(t, err)

	other := &InviteSigner{Secret: []byte("other-secret"), Now: func() time.Time { return now }}
	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestMailer_AccountHolderGetsShareUpdate(t *testing.T) {
	sender := &recordingSender{}
	m := &Mailer{Sender: sender, Invites: fixedSigner(time.Now()), PortalBaseURL: "https://portal.test/"}
	userID := uuid.New()
	holder := &domain.Shareholder{ShareholderID: uuid.New(), FullName: "Alice", Email: "alice@example.com", UserID: &userID}
	issuer := &domain.Issuer{IssuerID: uuid.New(), Name: "Acme"}

	ok, err := m.SendShareUpdateOrInvitation(context.Background(), holder, issuer, decimal.NewFromInt(100), decimal.NewFromInt(1100))
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].subject, "updated")
	assert.Contains(t, sender.sent[0].content, "https://portal.test/holdings")
	assert.Contains(t, sender.sent[0].content, "1100")
}

func TestMailer_NoAccountGetsVerifiableInvitation(t *testing.T) {
	sender := &recordingSender{}
	signer := &InviteSigner{Secret: []byte("test-secret"), TTL: time.Hour}
	m := &Mailer{Sender: sender, Invites: signer, PortalBaseURL: "https://portal.test"}
	holder := &domain.Shareholder{ShareholderID: uuid.New(), FullName: "Bob", Email: "Bob@Example.com"}
	issuer := &domain.Issuer{IssuerID: uuid.New(), Name: "Acme"}

	ok, err := m.SendShareUpdateOrInvitation(context.Background(), holder, issuer, decimal.NewFromInt(50), decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, sender.sent, 1)

	content := sender.sent[0].content
	start := strings.Index(content, "token=")
	require.Greater(t, start, 0)
	rest := content[start+len("token="):]
	raw := rest[:strings.Index(rest, `"`)]
	token, err := url.QueryUnescape(raw)
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, holder.ShareholderID.String(), claims.ShareholderID)
	assert.Equal(t, "bob@example.com", claims.Email)
}

func TestMailer_SkipsWithoutEmail(t *testing.T) {
	sender := &recordingSender{}
	m := &Mailer{Sender: sender}
	ok, err := m.SendShareUpdateOrInvitation(context.Background(), &domain.Shareholder{}, &domain.Issuer{}, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, sender.sent)
}

func TestBrevoClient_PostsTransactionalEmail(t *testing.T) {
	var got BrevoSendRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := &BrevoClient{APIKey: "k-1", MailFrom: "ta@acme.test", Endpoint: srv.URL}
	require.NoError(t, c.Send(context.Background(), "alice@example.com", "Alice", "Hello", "<p>hi</p>"))
	assert.Equal(t, "k-1", apiKey)
	assert.Equal(t, "ta@acme.test", got.Sender.Email)
	require.Len(t, got.To, 1)
	assert.Equal(t, "alice@example.com", got.To[0].Email)
	assert.Contains(t, got.HTMLContent, "<p>hi</p>")
}

func TestBrevoClient_ReportsProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := &BrevoClient{APIKey: "k-1", Endpoint: srv.URL}
	assert.Error(t, c.Send(context.Background(), "a@b.c", "", "s", "c"))
}
