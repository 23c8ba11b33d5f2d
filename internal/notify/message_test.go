package notify

import (
	"strings"
	"testing"
	"time"

	"busticket/internal/domain/ticket"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"english", LanguageEnglish},
		{"Hindi", LanguageHindi},
		{" telugu ", LanguageTelugu},
		{"hi-IN", LanguageHindi},
		{"te", LanguageTelugu},
		{"en-GB", LanguageEnglish},
		{"", LanguageEnglish},
		{"klingon", LanguageEnglish},
		{"fr", LanguageEnglish},
	}
	for _, tt := range tests {
		if got := NormalizeLanguage(tt.in); got != tt.want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func sampleDetails(lang string) *ticket.Details {
	return &ticket.Details{
		Ticket: ticket.Ticket{
			ID:                 "6f1c9a52-3a55-4c2f-9f0e-2b8f4b7a1d10",
			Number:             "TKTM1ABCDXYZ",
			Fare:               25,
			PassengerMobile:    "9876543210",
			LanguagePreference: lang,
			CredentialPayload:  "https://tickets.example/verify?token=abc",
			CreatedAt:          time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC),
		},
		RouteNumber:         "R1",
		SourceStopName:      "Ameerpet",
		DestinationStopName: "Begumpet",
	}
}

func TestComposerTicketIssuedEnglish(t *testing.T) {
	c := NewComposer(time.FixedZone("IST", 5*3600+1800), 2)
	n := c.TicketIssued(sampleDetails("english"))

	if n.To != "9876543210" {
		t.Errorf("To = %q, want %q", n.To, "9876543210")
	}
	if n.Language != LanguageEnglish {
		t.Errorf("Language = %q, want %q", n.Language, LanguageEnglish)
	}
	for _, want := range []string{
		"Route: Ameerpet ➝ Begumpet",
		"Fare: ₹25",
		"Time: 01/03/2026, 09:30 AM IST",
		"valid for 2 uses",
		"https://tickets.example/verify?token=abc",
		"Ticket ID: TKTM1ABCDXYZ",
	} {
		if !strings.Contains(n.Body, want) {
			t.Errorf("body missing %q:\n%s", want, n.Body)
		}
	}
}

func TestComposerTicketIssuedLocalized(t *testing.T) {
	c := NewComposer(time.UTC, 2)

	tests := []struct {
		lang string
		want string
	}{
		{"hindi", "किराया"},
		{"telugu", "ఛార్జీ"},
	}
	for _, tt := range tests {
		n := c.TicketIssued(sampleDetails(tt.lang))
		if !strings.Contains(n.Body, tt.want) {
			t.Errorf("%s body missing %q:\n%s", tt.lang, tt.want, n.Body)
		}
		if !strings.Contains(n.Body, "https://tickets.example/verify?token=abc") {
			t.Errorf("%s body missing scan link", tt.lang)
		}
		if strings.Contains(n.Body, "Fare:") {
			t.Errorf("%s body fell back to english", tt.lang)
		}
	}
}
