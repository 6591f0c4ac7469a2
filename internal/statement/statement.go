// Package statement reads PrivatBank HTML statement exports.
package statement

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cleared-dev/uatax/internal/model"
)

// ExpectedHeader is the header row of the transactions table, in order.
var ExpectedHeader = []string{
	"№",
	"Дата проводки",
	"Час проводки",
	"Сума",
	"Валюта",
	"Призначення платежу",
	"ЄДРПОУ",
	"Назва контрагента",
	"Рахунок контрагента",
	"МФО контрагента",
	"Референс",
}

const (
	dateFormat = "2.1.2006"

	// transactionsTable is the index of the transactions table among the
	// tables directly under <body>.
	transactionsTable = 1

	// Data rows split "Сума" into credit and debit cells, so columns after
	// colAmount are shifted by one relative to the header.
	colDate      = 1
	colAmount    = 3
	colCurrency  = 5
	colReference = 11
)

var (
	ErrNoTable           = errors.New("transactions table not found")
	ErrUnexpectedHeader  = errors.New("unexpected header")
	ErrRowShape          = errors.New("unexpected row shape")
	ErrNonPositiveAmount = errors.New("expected positive amount")
)

// Statement is a parsed statement document with a validated header.
type Statement struct {
	header []string
	rows   [][]*html.Node // data rows, header and footer split off
}

// Open reads and parses the statement at path.
func Open(path string) (*Statement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	st, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return st, nil
}

// Parse reads the whole document and validates the transactions table header.
func Parse(r io.Reader) (*Statement, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("reading HTML: %w", err)
	}

	body := findElement(doc, atom.Body)
	if body == nil {
		return nil, fmt.Errorf("%w: document has no body", ErrNoTable)
	}

	var tables []*html.Node
	for c := range body.ChildNodes() {
		if isElement(c, atom.Table) {
			tables = append(tables, c)
		}
	}
	if len(tables) <= transactionsTable {
		return nil, fmt.Errorf("%w: want at least %d tables, got %d", ErrNoTable, transactionsTable+1, len(tables))
	}

	rows := tableRows(tables[transactionsTable])
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: want header and footer rows, got %d rows", ErrNoTable, len(rows))
	}

	header := make([]string, 0, len(rows[0]))
	for _, cell := range rows[0] {
		header = append(header, cellText(cell))
	}
	if !slices.Equal(header, ExpectedHeader) {
		return nil, fmt.Errorf("%w: got %q", ErrUnexpectedHeader, header)
	}

	return &Statement{
		header: header,
		rows:   rows[1 : len(rows)-1],
	}, nil
}

// Header returns the validated header row.
func (s *Statement) Header() []string {
	return slices.Clone(s.header)
}

// Rows returns the number of candidate data rows.
func (s *Statement) Rows() int {
	return len(s.rows)
}

// Payments yields payments in document order. Rows with an empty amount
// cell are skipped. The first bad row yields its error and ends the
// sequence; payments yielded before it are not retracted.
func (s *Statement) Payments() iter.Seq2[model.Payment, error] {
	return func(yield func(model.Payment, error) bool) {
		for i, row := range s.rows {
			p, ok, err := parseRow(row, len(s.header)+1)
			if err != nil {
				// Row 1 is the header.
				yield(model.Payment{}, fmt.Errorf("row %d: %w", i+2, err))
				return
			}
			if !ok {
				continue
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

// parseRow returns ok=false for rows without an amount.
func parseRow(row []*html.Node, numCells int) (model.Payment, bool, error) {
	// Every row carries two amount cells, one more than the header.
	if len(row) != numCells {
		return model.Payment{}, false, fmt.Errorf("%w: want %d cells, got %d", ErrRowShape, numCells, len(row))
	}

	rawAmount := cellText(row[colAmount])
	if rawAmount == "" {
		return model.Payment{}, false, nil
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return model.Payment{}, false, fmt.Errorf("parsing amount %q: %w", rawAmount, err)
	}
	if !amount.IsPositive() {
		return model.Payment{}, false, fmt.Errorf("%w, got %s", ErrNonPositiveAmount, amount)
	}

	rawDate := cellText(row[colDate])
	date, err := time.Parse(dateFormat, rawDate)
	if err != nil {
		return model.Payment{}, false, fmt.Errorf("parsing date %q: %w", rawDate, err)
	}

	return model.Payment{
		Date:      date,
		Amount:    amount,
		Currency:  cellText(row[colCurrency]),
		Reference: cellText(row[colReference]),
	}, true, nil
}

// tableRows returns the cells of each row of t. Rows may sit directly under
// the table or inside row groups; the HTML5 parser always inserts <tbody>.
func tableRows(t *html.Node) [][]*html.Node {
	var rows [][]*html.Node
	addRow := func(tr *html.Node) {
		var cells []*html.Node
		for c := range tr.ChildNodes() {
			if isElement(c, atom.Td) || isElement(c, atom.Th) {
				cells = append(cells, c)
			}
		}
		rows = append(rows, cells)
	}

	for c := range t.ChildNodes() {
		switch {
		case isElement(c, atom.Tr):
			addRow(c)
		case isElement(c, atom.Thead), isElement(c, atom.Tbody), isElement(c, atom.Tfoot):
			for tr := range c.ChildNodes() {
				if isElement(tr, atom.Tr) {
					addRow(tr)
				}
			}
		}
	}
	return rows
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	for d := range n.Descendants() {
		if isElement(d, a) {
			return d
		}
	}
	return nil
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n.Type == html.ElementNode && n.DataAtom == a
}

// cellText returns the trimmed text content of a cell.
func cellText(n *html.Node) string {
	var sb strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			sb.WriteString(d.Data)
		}
	}
	return strings.TrimSpace(sb.String())
}
