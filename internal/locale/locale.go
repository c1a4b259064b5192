// Package locale formats prices, dates and relative times in Greek and turns
// Greek titles into URL slugs.
package locale

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Greek)

var athens = loadAthens()

func loadAthens() *time.Location {
	loc, err := time.LoadLocation("Europe/Athens")
	if err != nil {
		return time.FixedZone("Europe/Athens", 2*60*60)
	}
	return loc
}

// Location returns the Europe/Athens zone used for displayed dates.
func Location() *time.Location { return athens }

var genitiveMonths = [...]string{
	"Ιανουαρίου", "Φεβρουαρίου", "Μαρτίου", "Απριλίου", "Μαΐου", "Ιουνίου",
	"Ιουλίου", "Αυγούστου", "Σεπτεμβρίου", "Οκτωβρίου", "Νοεμβρίου", "Δεκεμβρίου",
}

// FormatPrice renders 1234.5 as "1.234,50 €".
func FormatPrice(v float64) string {
	return printer.Sprintf("%.2f", v) + " €"
}

// FormatDate renders t as "2 Ιανουαρίου 2024" in Athens time.
func FormatDate(t time.Time) string {
	t = t.In(athens)
	return fmt.Sprintf("%d %s %d", t.Day(), genitiveMonths[t.Month()-1], t.Year())
}

// FormatDateTime renders t as "2 Ιανουαρίου 2024, 14:05" in Athens time.
func FormatDateTime(t time.Time) string {
	t = t.In(athens)
	return fmt.Sprintf("%s, %02d:%02d", FormatDate(t), t.Hour(), t.Minute())
}

// RelativeTime describes how long before now t happened. Future times and
// anything under a minute read as "μόλις τώρα".
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	if d < time.Minute {
		return "μόλις τώρα"
	}
	if d < time.Hour {
		return ago(int(d/time.Minute), "λεπτό", "λεπτά")
	}
	if d < 24*time.Hour {
		return ago(int(d/time.Hour), "ώρα", "ώρες")
	}

	days := int(d / (24 * time.Hour))
	switch {
	case days == 1:
		return "χθες"
	case days < 7:
		return ago(days, "ημέρα", "ημέρες")
	case days < 30:
		return ago(days/7, "εβδομάδα", "εβδομάδες")
	case days < 365:
		return ago(days/30, "μήνα", "μήνες")
	}
	return ago(days/365, "χρόνο", "χρόνια")
}

func ago(n int, one, many string) string {
	if n == 1 {
		return "πριν από 1 " + one
	}
	return fmt.Sprintf("πριν από %d %s", n, many)
}
