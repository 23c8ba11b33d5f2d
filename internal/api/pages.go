package api

import (
	"embed"
	"html/template"
	"io"
	"time"

	"busticket/internal/domain/ticket"
	"busticket/internal/usecase"
)

//go:embed templates/*.html
var templateFS embed.FS

var verifyTemplate = template.Must(template.ParseFS(templateFS, "templates/verify.html"))

const displayLayout = "02/01/2006, 3:04:05 pm MST"

type verifyPage struct {
	Title      string
	Heading    string
	Message    string
	Outcome    usecase.Outcome
	Ticket     *ticket.Details
	ScansUsed  int
	MaxScans   int
	Remaining  int
	Final      bool
	Purchased  string
	Expires    string
	VerifiedAt string
}

func newVerifyPage(res *usecase.VerificationResult, loc *time.Location) verifyPage {
	p := verifyPage{
		Outcome:    res.Outcome,
		Ticket:     res.Ticket,
		MaxScans:   res.MaxScans,
		Final:      res.Final,
		VerifiedAt: res.VerifiedAt.In(loc).Format(displayLayout),
	}

	switch res.Outcome {
	case usecase.OutcomeAdmitted:
		p.Title, p.Heading = "Valid Ticket", "✅ Valid Ticket"
	case usecase.OutcomeExpired:
		p.Title, p.Heading = "Ticket Expired", "⏰ Ticket Expired"
		p.Message = "This ticket has expired and is no longer valid"
	case usecase.OutcomeExhausted:
		p.Title, p.Heading = "Ticket Already Used", "🚫 Ticket Already Used"
		p.Message = "This ticket has been scanned the maximum number of times and is no longer valid"
	default:
		p.Title, p.Heading = "Ticket Not Found", "❌ Ticket Not Found"
		p.Message = "Invalid or unknown ticket"
	}

	if t := res.Ticket; t != nil {
		p.ScansUsed = t.ScanCount
		p.Remaining = t.RemainingScans(res.MaxScans)
		p.Purchased = t.CreatedAt.In(loc).Format(displayLayout)
		p.Expires = t.ExpiresAt.In(loc).Format(displayLayout)
	}
	return p
}

func renderVerifyPage(w io.Writer, p verifyPage) error {
	return verifyTemplate.Execute(w, p)
}
