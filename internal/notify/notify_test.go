package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(ctx context.Context, title, message string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventOpportunity}, nil, discardLogger())

	_ = n.Notify(context.Background(), EventSimulation, "sim", "")
	_ = n.Notify(context.Background(), EventOpportunity, "opp", "")

	if len(s.titles) != 1 || s.titles[0] != "opp" {
		t.Errorf("sent %v, want [opp]", s.titles)
	}
}

func TestNotifierContinuesPastFailingSender(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, nil, discardLogger())

	err := n.Notify(context.Background(), EventError, "t", "m")
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("err = %v, want failure naming bad", err)
	}
	if len(good.titles) != 1 {
		t.Error("good sender was skipped")
	}
}

func TestNotifyOnceSuppressesRepeats(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, NewDedup(time.Minute), discardLogger())

	for i := 0; i < 3; i++ {
		_ = n.NotifyOnce(context.Background(), EventOpportunity, "USDT->WBNB->CAKE->USDT", "opp", "")
	}
	_ = n.NotifyOnce(context.Background(), EventOpportunity, "USDT->ETH->WBNB->USDT", "opp2", "")

	if len(s.titles) != 2 {
		t.Errorf("sent %d, want 2", len(s.titles))
	}
}

func TestDedupExpires(t *testing.T) {
	d := NewDedup(time.Minute)
	now := time.Now()
	d.now = func() time.Time { return now }

	if d.IsDuplicate("k") {
		t.Fatal("first sighting reported as duplicate")
	}
	if !d.IsDuplicate("k") {
		t.Fatal("second sighting not reported")
	}
	now = now.Add(2 * time.Minute)
	if d.IsDuplicate("k") {
		t.Error("expired key still suppressed")
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiBase = srv.URL
	if err := s.Send(context.Background(), "USDT_WBNB", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["chat_id"] != "42" || got["text"] != "*USDT\\_WBNB*\nbody" {
		t.Errorf("payload = %v", got)
	}
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("err = %v, want status 400", err)
	}
}

func TestDiscordSenderEmbed(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	long := strings.Repeat("é", discordDescriptionMax+10)
	if err := NewDiscordSender(srv.URL).Send(context.Background(), "USDT->WBNB->CAKE->USDT", long); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Title != "USDT->WBNB->CAKE->USDT" {
		t.Fatalf("payload = %+v", got)
	}
	desc := got.Embeds[0].Description
	if !utf8.ValidString(desc) {
		t.Error("description split a multi-byte character")
	}
	if n := utf8.RuneCountInString(desc); n != discordDescriptionMax || !strings.HasSuffix(desc, "...") {
		t.Errorf("description has %d characters, want %d ending in ...", n, discordDescriptionMax)
	}
}

func TestTruncateRunes(t *testing.T) {
	for _, tc := range []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefgh", 6, "abc..."},
		{"ééééé", 4, "é..."},
	} {
		if got := truncateRunes(tc.in, tc.max); got != tc.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestSenderErrorsHideSecret(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	tg := NewTelegramSender("s3cr3t-token", "42")
	tg.apiBase = base
	senders := []Sender{
		NewDiscordSender(base + "/api/webhooks/1/s3cr3t-token"),
		tg,
	}
	for _, s := range senders {
		err := s.Send(context.Background(), "t", "m")
		if err == nil {
			t.Fatalf("%s: expected an error from a closed server", s.Name())
		}
		if strings.Contains(err.Error(), "s3cr3t-token") {
			t.Errorf("%s: error leaks the token: %v", s.Name(), err)
		}
		var uerr *url.Error
		if !errors.As(err, &uerr) {
			t.Errorf("%s: cause dropped: %v", s.Name(), err)
		}
	}
}

func TestFormatSimulationCarriesLabel(t *testing.T) {
	_, msg := FormatSimulation(domain.SimulationSummary{
		Trials:     10,
		Projection: domain.Projection{TradesPerDay: 5, Label: domain.ProjectionLabel},
	})
	if !strings.Contains(msg, domain.ProjectionLabel) {
		t.Errorf("message missing projection label:\n%s", msg)
	}
}

func TestFormatOpportunity(t *testing.T) {
	title, msg := FormatOpportunity(domain.Opportunity{
		Path:           domain.Path{ID: "USDT->WBNB->CAKE->USDT", Tokens: make([]domain.Token, 4)},
		SizedAmountUSD: 5000,
		NetProfitUSD:   41.256,
		Confidence:     domain.ConfidenceHigh,
	})
	if !strings.Contains(title, "3 hops") {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(msg, "Net profit: $41.26") {
		t.Errorf("message = %q", msg)
	}
}
