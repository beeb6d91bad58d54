package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/metrics"
)

var (
	mailColor  = color.New(color.FgCyan)
	eventColor = color.New(color.FgYellow)
	askColor   = color.New(color.FgMagenta, color.Bold)
	okColor    = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed)
)

func printStatus(w io.Writer, symbol, message string, c *color.Color) {
	_, _ = c.Fprintf(w, "%s ", symbol)
	_, _ = fmt.Fprintln(w, message)
}

func printMail(w io.Writer, m core.Mail) {
	summary := m.Text()
	if t, ok := m.TaskBody(); ok {
		summary = fmt.Sprintf("[%s] %s", t.Status, t.Goal)
		if t.Result != "" {
			summary += " => " + t.Result
		}
	}
	if c, ok := m.ConversationBody(); ok {
		summary = c.Topic
		if n := len(c.History); n > 0 {
			last := c.History[n-1]
			summary += ": " + last.Speaker + ": " + last.Text
		}
	}
	_, _ = mailColor.Fprintf(w, "✉ %s → %s %s", m.From, m.To, m.Subject)
	_, _ = fmt.Fprintf(w, " %s\n", truncate(summary, 160))
}

func printEvent(w io.Writer, ev core.Event) {
	where := ev.Source
	if ev.EnvironmentID != "" {
		where = ev.EnvironmentID + "/" + ev.Source
	}
	keys := make([]string, 0, len(ev.Data))
	for k := range ev.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ev.Data[k]))
	}
	_, _ = eventColor.Fprintf(w, "⚡ %s", ev.Name)
	_, _ = fmt.Fprintf(w, " (%s) %s\n", where, strings.Join(parts, " "))
}

func printTasks(w io.Writer, tasks []core.Task) {
	for _, t := range tasks {
		c := okColor
		switch t.Status {
		case core.TaskFailed:
			c = failColor
		case core.TaskCompleted:
		default:
			c = eventColor
		}
		_, _ = c.Fprintf(w, "  %-14s", t.Status)
		_, _ = fmt.Fprintf(w, " %-12s %s\n", t.Assignee, truncate(t.Goal, 100))
	}
}

func printReport(w io.Writer, r metrics.Report) {
	c := okColor
	if r.FailedTasks > 0 || r.PendingTasks > 0 {
		c = failColor
	}
	_, _ = fmt.Fprintln(w)
	printStatus(w, "■", "Run report", c)
	_, _ = fmt.Fprintf(w, "  tasks:      %d (%d completed, %d failed, %d open)\n",
		r.TotalTasks, r.CompletedTasks, r.FailedTasks, r.PendingTasks)
	_, _ = fmt.Fprintf(w, "  reasoning:  %d calls, %d errors\n", r.ReasoningCalls, r.ReasoningErrors)
	if r.CallsRemaining >= 0 {
		_, _ = fmt.Fprintf(w, "  budget:     %d model calls left\n", r.CallsRemaining)
	}
	_, _ = fmt.Fprintf(w, "  success:    %.0f%%\n", r.SuccessRate()*100)
	_, _ = fmt.Fprintf(w, "  duration:   %s\n", r.Duration.Round(time.Millisecond))
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
