package forecast

import (
	"fmt"
	"strings"
	"time"
)

// Render formats the forecast as a plain-text chat message. Layouts come
// from the application config; times are shown on the subject's local clock.
func (d *Daily) Render(dateLayout, timeLayout string) string {
	offset := time.Duration(d.OffsetHours) * time.Hour
	local := func(t time.Time) string {
		return t.Add(offset).Format(timeLayout)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Forecast for %s\n\n", d.Date.Format(dateLayout))

	if d.Signs.Changed {
		fmt.Fprintf(&b, "Moon in %s, entering %s at %s\n",
			d.Signs.StartSign, d.Signs.EndSign, local(d.Signs.ChangeAt))
	} else {
		fmt.Fprintf(&b, "Moon in %s\n", d.Signs.StartSign)
	}
	if d.SignText != nil && d.SignText.General != "" {
		fmt.Fprintf(&b, "%s\n", d.SignText.General)
	}

	fmt.Fprintf(&b, "Phase: %s\n", d.Phase)
	fmt.Fprintf(&b, "Lunar day: %d\n", d.MainLunarDay.Number)

	// The void endpoints arrive already on the local clock.
	if d.VoidPeriod.Duration() > 0 {
		fmt.Fprintf(&b, "Void-of-course moon: %s – %s\n",
			d.VoidPeriod.Start.Format(timeLayout), d.VoidPeriod.End.Format(timeLayout))
	}

	if len(d.Events) > 0 {
		b.WriteString("\nAspects of the day:\n")
		for _, ev := range d.Events {
			line := fmt.Sprintf("%s %d° %s", ev.Transit, ev.Aspect, ev.Natal)
			if ev.HasPeak {
				line += fmt.Sprintf(" (peak %s)", local(ev.Peak))
			}
			b.WriteString(line + "\n")
			if ev.Text != nil && ev.Text.General != "" {
				b.WriteString(ev.Text.General + "\n")
			}
		}
	}

	return b.String()
}
