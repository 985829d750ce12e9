// Package report renders dataset statistics for people.
package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"OnionHarvester/internal/domain"
	"OnionHarvester/internal/extract"
)

// Summary is everything the report shows, computed once from the records.
type Summary struct {
	domain.Stats
	V2            int       `json:"v2"`
	V3            int       `json:"v3"`
	V3Valid       int       `json:"v3ValidChecksum"`
	OtherVersions int       `json:"otherVersions"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// Summarize computes dataset statistics plus the onion version breakdown of
// the unique addresses.
func Summarize(records []domain.PasteRecord, now time.Time) Summary {
	s := Summary{Stats: domain.ComputeStats(records), GeneratedAt: now}
	for _, addr := range s.UniqueAddresses {
		info := extract.Inspect(addr)
		switch info.Version {
		case extract.VersionV2:
			s.V2++
		case extract.VersionV3:
			s.V3++
			if info.ChecksumValid {
				s.V3Valid++
			}
		default:
			s.OtherVersions++
		}
	}
	return s
}

// MarkdownWriter outputs a Summary as a Markdown document.
type MarkdownWriter struct {
	output io.Writer
	title  cases.Caser
}

// NewMarkdownWriter creates a MarkdownWriter that writes to output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output, title: cases.Title(language.English)}
}

// Write renders the report.
func (w *MarkdownWriter) Write(s Summary) error {
	md := markdown.NewMarkdown(w.output)

	md.H1("Onion Harvest Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Generated", s.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST")},
			{"Pastes", strconv.Itoa(s.TotalPastes)},
			{"Links", strconv.Itoa(s.TotalLinks)},
			{"Unique links", strconv.Itoa(s.UniqueLinks)},
			{"Classified", strconv.Itoa(s.Classified)},
		},
	})
	md.PlainText("")

	w.writeVersions(md, s)
	w.writeCategories(md, s)

	if s.TotalPastes == 0 {
		md.Note("The dataset is empty. Run a harvest cycle first.")
	}
	return md.Build()
}

func (w *MarkdownWriter) writeVersions(md *markdown.Markdown, s Summary) {
	md.H2("Onion Versions")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Version", "Unique links"},
		Rows: [][]string{
			{"v3", strconv.Itoa(s.V3)},
			{"v3 with valid checksum", strconv.Itoa(s.V3Valid)},
			{"v2 (deprecated)", strconv.Itoa(s.V2)},
			{"Other", strconv.Itoa(s.OtherVersions)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeCategories(md *markdown.Markdown, s Summary) {
	md.H2("Categories")
	md.PlainText("")
	if s.Classified == 0 {
		md.PlainText("No classified links.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(domain.Categories))
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Classified Links by Category"),
		piechart.WithShowData(true),
	)
	for _, c := range domain.Categories {
		n := s.ByCategory[c]
		if n == 0 {
			continue
		}
		label := w.DisplayName(c)
		rows = append(rows, []string{label, strconv.Itoa(n)})
		chart.LabelAndIntValue(label, uint64(n))
	}
	md.Table(markdown.TableSet{Header: []string{"Category", "Unique links"}, Rows: rows})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// DisplayName turns a category identifier into a title, e.g. "Search Engine".
func (w *MarkdownWriter) DisplayName(c domain.Category) string {
	return w.title.String(strings.ReplaceAll(string(c), "_", " "))
}
