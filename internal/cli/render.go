package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/framesource/internal/rows"
	"github.com/rshade/framesource/internal/source"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
)

const tabPadding = 2

// printer is the locale-aware message printer for number formatting.
//
//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

// formatCount formats n with thousand separators.
func formatCount(n int64) string {
	return printer.Sprintf("%d", n)
}

func validateOutput(format string) error {
	if format != outputTable && format != outputJSON {
		return fmt.Errorf("unsupported output format %q (want %s or %s)", format, outputTable, outputJSON)
	}
	return nil
}

// headerStyle renders table headers. Styling only applies on a terminal.
func headerStyle(w io.Writer) func(string) string {
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
		return func(s string) string { return style.Render(s) }
	}
	return func(s string) string { return s }
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderBundlesTable renders bundles with a total line.
func renderBundlesTable(w io.Writer, bundles []source.Bundle) error {
	style := headerStyle(w)
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)

	fmt.Fprintln(tw, style("Bundle\tStart\tStop\tWeight"))
	fmt.Fprintln(tw, "------\t-----\t----\t------")

	var total int64
	for i, b := range bundles {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", i, b.Start, b.Stop, formatCount(int64(b.Weight)))
		total += b.Size()
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s bundles covering %s rows\n",
		formatCount(int64(len(bundles))), formatCount(total))
	return err
}

// rowView is the JSON shape of one read row.
type rowView struct {
	Offset int64             `json:"offset"`
	Values map[string]string `json:"values"`
}

// renderRowsTable renders records with their offsets.
func renderRowsTable(w io.Writer, columns []string, records []rows.Record) error {
	style := headerStyle(w)
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)

	header := append([]string{"Offset"}, columns...)
	fmt.Fprintln(tw, style(strings.Join(header, "\t")))

	for i, rec := range records {
		fmt.Fprintf(tw, "%d\t%s\n", i, strings.Join(rec.Values(), "\t"))
	}
	return tw.Flush()
}

func renderRowsJSON(w io.Writer, records []rows.Record) error {
	views := make([]rowView, len(records))
	for i, rec := range records {
		views[i] = rowView{Offset: int64(i), Values: rec.Map()}
	}
	return renderJSON(w, views)
}
