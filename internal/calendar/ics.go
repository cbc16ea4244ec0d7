package calendar

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"kairon/backend"
)

const (
	icsTimeFormat = "20060102T150405Z"
	prodID        = "-//kairon//kairon//EN"
	maxLineOctets = 75
)

// taskNamespace seeds deterministic event UIDs.
var taskNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://kairon.local/tasks"))

// UID returns the stable iCalendar UID of a task.
func UID(id int64) string {
	return uuid.NewSHA1(taskNamespace, []byte(strconv.FormatInt(id, 10))).String() + "@kairon"
}

// WriteICS writes a VCALENDAR with one VEVENT per task. now stamps DTSTAMP.
func WriteICS(w io.Writer, tasks []backend.Task, now time.Time) error {
	bw := bufio.NewWriter(w)
	write := func(line string) {
		_, _ = bw.WriteString(fold(line))
	}

	write("BEGIN:VCALENDAR")
	write("VERSION:2.0")
	write("PRODID:" + prodID)
	write("CALSCALE:GREGORIAN")
	write("METHOD:PUBLISH")

	dtstamp := now.UTC().Format(icsTimeFormat)
	for _, t := range tasks {
		write("BEGIN:VEVENT")
		write("UID:" + UID(t.ID))
		write("DTSTAMP:" + dtstamp)
		write("DTSTART:" + t.Due.UTC().Format(icsTimeFormat))
		write("SUMMARY:" + escapeText(t.Title))
		write("DESCRIPTION:" + escapeText(description(t)))
		if t.Category != "" {
			write("CATEGORIES:" + escapeText(t.Category))
		}
		if p := icsPriority(t.Priority); p > 0 {
			write(fmt.Sprintf("PRIORITY:%d", p))
		}
		if rule := rrule(t.Recurrence); rule != "" {
			write("RRULE:" + rule)
		}
		write("STATUS:CONFIRMED")
		write("X-KAIRON-STATUS:" + string(t.Status))
		if t.CompletedAt != nil {
			write("X-KAIRON-COMPLETED:" + t.CompletedAt.UTC().Format(icsTimeFormat))
		}
		write("END:VEVENT")
	}

	write("END:VCALENDAR")
	return bw.Flush()
}

// description joins notes, tags and the checklist into one text value.
func description(t backend.Task) string {
	var parts []string
	if t.Notes != "" {
		parts = append(parts, t.Notes)
	}
	if len(t.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(t.Tags, ", "))
	}
	for _, s := range t.Subtasks {
		box := "[ ]"
		if s.Completed {
			box = "[x]"
		}
		parts = append(parts, box+" "+s.Text)
	}
	return strings.Join(parts, "\n")
}

func icsPriority(p backend.Priority) int {
	switch p {
	case backend.PriorityHigh:
		return 1
	case backend.PriorityMedium:
		return 5
	case backend.PriorityLow:
		return 9
	}
	return 0
}

func rrule(r backend.Recurrence) string {
	switch r {
	case backend.RecurrenceDaily:
		return "FREQ=DAILY"
	case backend.RecurrenceWeekly:
		return "FREQ=WEEKLY"
	case backend.RecurrenceMonthly:
		return "FREQ=MONTHLY"
	}
	return ""
}

// escapeText escapes a TEXT value per RFC 5545 section 3.3.11.
func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
		"\r", `\n`,
	)
	return r.Replace(s)
}

// fold splits a content line into CRLF-terminated chunks of at most 75
// octets, continuation chunks starting with a space. UTF-8 sequences are
// never split.
func fold(line string) string {
	var b strings.Builder
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
		limit = maxLineOctets - 1
	}
	b.WriteString(line)
	b.WriteString("\r\n")
	return b.String()
}
