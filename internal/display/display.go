package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dyike/CortexTrade/internal/audit"
	"github.com/dyike/CortexTrade/internal/decision"
	"github.com/dyike/CortexTrade/internal/storage/sqlite"
	"github.com/dyike/CortexTrade/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	buyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	sellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	holdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

func actionStyle(a models.Action) lipgloss.Style {
	switch a {
	case models.ActionBuy:
		return buyStyle
	case models.ActionSell:
		return sellStyle
	default:
		return holdStyle
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func price(p *float64) string {
	if p == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func tally(v models.VoteTally) string {
	return fmt.Sprintf("%d/%d/%d", v.Buy, v.Sell, v.Hold)
}

func short(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Report renders one decision cycle.
func Report(w io.Writer, r *decision.Report) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Cycle %s  PHS %.2f", r.CycleID, r.PHS)))

	t := newTable("Symbol", "Price", "Action", "Votes (b/s/h)", "Tx")
	for _, d := range r.Decisions {
		t.Row(d.Symbol, price(d.Price), actionStyle(d.Action).Render(string(d.Action)), tally(d.Votes), short(d.TxHash, 14))
	}
	fmt.Fprintln(w, t.Render())

	for _, d := range r.Decisions {
		fmt.Fprintln(w, headerStyle.Render(d.Symbol))
		for _, v := range d.Explanations {
			fmt.Fprintf(w, "  %s %s: %s\n", actionStyle(v.Action).Render(string(v.Action)), v.Agent, oneLine(v.Explanation))
		}
	}
}

// History renders stored decisions newest first.
func History(w io.Writer, items []sqlite.DecisionWithMeta) {
	if len(items) == 0 {
		Info(w, "no decisions recorded yet")
		return
	}
	t := newTable("#", "Decided", "Symbol", "Price", "Action", "Votes (b/s/h)", "PHS", "Tx")
	for _, it := range items {
		t.Row(
			strconv.FormatInt(it.RowID, 10),
			it.DecidedAt.Local().Format("2006-01-02 15:04:05"),
			it.Symbol,
			price(it.Price),
			actionStyle(it.Action).Render(string(it.Action)),
			tally(it.Votes),
			fmt.Sprintf("%.2f", it.PHS),
			short(it.TxHash, 14),
		)
	}
	fmt.Fprintln(w, t.Render())
}

// AuditEntries renders lines read back from the audit log.
func AuditEntries(w io.Writer, entries []audit.Entry) {
	if len(entries) == 0 {
		Info(w, "audit log is empty")
		return
	}
	t := newTable("Time", "Symbol", "Action", "PHS", "Tx", "Explanation")
	for _, e := range entries {
		tx := "-"
		if e.TxHash != nil {
			tx = short(*e.TxHash, 14)
		}
		t.Row(
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Symbol,
			actionStyle(e.Action).Render(string(e.Action)),
			fmt.Sprintf("%.2f", e.PHS),
			tx,
			short(oneLine(e.Explanation), 60),
		)
	}
	fmt.Fprintln(w, t.Render())
}

// Portfolio renders enriched rows with their priority, highest first as given.
func Portfolio(w io.Writer, records []models.PriorityRecord) {
	t := newTable("Symbol", "Qty", "Cost", "Price", "Sentiment", "Priority", "Headline")
	for _, r := range records {
		a := r.Data
		sentiment := "unknown"
		if a.Sentiment != nil {
			sentiment = fmt.Sprintf("%.2f", *a.Sentiment)
		}
		headline := ""
		if a.Headline != nil {
			headline = short(*a.Headline, 40)
		}
		t.Row(
			a.Symbol,
			strconv.Itoa(a.Quantity),
			strconv.FormatFloat(a.PurchasePrice, 'f', -1, 64),
			price(a.CurrentPrice),
			sentiment,
			fmt.Sprintf("%.3f", r.Priority),
			headline,
		)
	}
	fmt.Fprintln(w, t.Render())
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func Info(w io.Writer, msg string) {
	fmt.Fprintln(w, infoStyle.Render("ℹ "+msg))
}

func Success(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render("✓ "+msg))
}

func Error(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("✗ Error: "+err.Error()))
}

// Markdown renders a cycle report as a markdown document.
func Markdown(r *decision.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Decision cycle %s\n\n", r.CycleID)
	fmt.Fprintf(&b, "- Started: %s\n", r.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Portfolio health score: %.2f\n\n", r.PHS)
	b.WriteString("| Symbol | Price | Action | Buy | Sell | Hold | Tx |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, d := range r.Decisions {
		tx := d.TxHash
		if tx == "" {
			tx = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %d | %s |\n",
			d.Symbol, price(d.Price), d.Action, d.Votes.Buy, d.Votes.Sell, d.Votes.Hold, tx)
	}
	for _, d := range r.Decisions {
		fmt.Fprintf(&b, "\n## %s\n\n", d.Symbol)
		for _, v := range d.Explanations {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", v.Agent, v.Action, oneLine(v.Explanation))
		}
	}
	return b.String()
}
