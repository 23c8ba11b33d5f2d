package usecase

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const base36Digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewTicketNumber returns the display number printed on a ticket:
// TKT, the issue time in base36 milliseconds, and three random base36 chars.
func NewTicketNumber(now time.Time) string {
	var b strings.Builder
	b.WriteString("TKT")
	b.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))
	for i := 0; i < 3; i++ {
		b.WriteByte(base36Digits[rand.IntN(len(base36Digits))])
	}
	return b.String()
}
