package presence

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/guildsync/internal/models"
)

// MaxMessageLength is the remote platform's content limit for one message.
const MaxMessageLength = 1000

const ellipsis = "…"

// BuildOptions carries the community settings the renderer needs.
type BuildOptions struct {
	CommunityName string
	// BaseURL enables the trailing event link when non-empty.
	BaseURL  string
	Location *time.Location
}

var stateLabels = map[models.EmbedState]string{
	models.StatePosted:    "Open for signups",
	models.StateFilling:   "Filling up",
	models.StateFull:      "Full",
	models.StateImminent:  "Starting soon",
	models.StateLive:      "Live now",
	models.StateCompleted: "Completed",
	models.StateCancelled: "Cancelled",
}

// BuildMessage renders the full message content for an event. The header
// (title, state, time, attendance, roster) and the trailing link always
// survive truncation; only the free-text description is cut, with a trailing
// ellipsis, to fit MaxMessageLength.
func BuildMessage(ev *models.Event, state models.EmbedState, signupCount int, roster []models.RosterAssignment, opts BuildOptions) string {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var head strings.Builder
	fmt.Fprintf(&head, "**%s** — %s\n", ev.Title, stateLabels[state])
	fmt.Fprintf(&head, "%s – %s\n",
		ev.StartAt.In(loc).Format("Mon, 02 Jan 2006 15:04"),
		ev.EndAt.In(loc).Format("15:04 MST"))
	if ev.MaxAttendees != nil {
		fmt.Fprintf(&head, "Attendees: %d/%d", signupCount, *ev.MaxAttendees)
	} else {
		fmt.Fprintf(&head, "Attendees: %d", signupCount)
	}
	for _, a := range roster {
		fmt.Fprintf(&head, "\n• %s: <@%s>", a.Slot, a.DiscordUserID)
	}

	link := ""
	if opts.BaseURL != "" {
		link = fmt.Sprintf("%s/events/%s", strings.TrimSuffix(opts.BaseURL, "/"), ev.ID)
	}

	return assemble(head.String(), ev.Description, link)
}

// assemble joins header, body and link with blank lines, shrinking only the
// body when the total would exceed MaxMessageLength.
func assemble(head, body, link string) string {
	join := func(body string) string {
		parts := []string{head}
		if body != "" {
			parts = append(parts, body)
		}
		if link != "" {
			parts = append(parts, link)
		}
		return strings.Join(parts, "\n\n")
	}

	full := join(body)
	if len([]rune(full)) <= MaxMessageLength {
		return full
	}

	overhead := len([]rune(join("")))
	budget := MaxMessageLength - overhead - 2 - len([]rune(ellipsis)) // 2 for the body's separator
	if budget <= 0 {
		return join("")
	}
	runes := []rune(body)
	if budget > len(runes) {
		budget = len(runes)
	}
	return join(strings.TrimRight(string(runes[:budget]), " \n") + ellipsis)
}
