package notify

import (
	"time"

	"busticket/internal/domain/notification"
	"busticket/internal/domain/ticket"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// ticketIssuedSMS is the catalog key and the english text.
// Arguments: source, destination, fare, issued at, scans allowed, link, ticket number.
const ticketIssuedSMS = "🎟️ Ticket Confirmed!\nRoute: %s ➝ %s\nFare: ₹%d\nTime: %s\n\nScan your ticket here (valid for %d uses):\n%s\n\nTicket ID: %s"

const timestampLayout = "02/01/2006, 03:04 PM MST"

var messages = newCatalog()

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	must(b.SetString(language.English, ticketIssuedSMS, ticketIssuedSMS))
	must(b.SetString(language.Hindi, ticketIssuedSMS,
		"🎟️ टिकट कन्फर्म!\nरूट: %s ➝ %s\nकिराया: ₹%d\nसमय: %s\n\nअपना टिकट यहाँ स्कैन करें (%d बार मान्य):\n%s\n\nटिकट आईडी: %s"))
	must(b.SetString(language.Telugu, ticketIssuedSMS,
		"🎟️ టికెట్ నిర్ధారించబడింది!\nరూట్: %s ➝ %s\nఛార్జీ: ₹%d\nసమయం: %s\n\nమీ టికెట్‌ను ఇక్కడ స్కాన్ చేయండి (%d సార్లు చెల్లుతుంది):\n%s\n\nటికెట్ ID: %s"))
	return b
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Composer renders passenger messages in the ticket's language.
type Composer struct {
	loc      *time.Location
	maxScans int
}

func NewComposer(loc *time.Location, maxScans int) *Composer {
	if loc == nil {
		loc = time.UTC
	}
	return &Composer{loc: loc, maxScans: maxScans}
}

// TicketIssued builds the SMS that carries the scan link to the passenger.
func (c *Composer) TicketIssued(d *ticket.Details) notification.Notification {
	lang := NormalizeLanguage(d.LanguagePreference)
	p := message.NewPrinter(tagFor(lang), message.Catalog(messages))

	body := p.Sprintf(ticketIssuedSMS,
		d.SourceStopName, d.DestinationStopName, d.Fare,
		d.CreatedAt.In(c.loc).Format(timestampLayout),
		c.maxScans, d.CredentialPayload, d.Number,
	)

	return notification.Notification{
		TicketID:     d.ID,
		TicketNumber: d.Number,
		To:           d.PassengerMobile,
		Body:         body,
		Language:     lang,
	}
}
