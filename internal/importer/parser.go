package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	enc "github.com/MrJamesThe3rd/dealflow/internal/encoding"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

var ErrNoHeader = errors.New("no header row found: expected at least title and value columns")

// Row is one data line of an import file, already mapped onto form fields.
type Row struct {
	Line  int // 1-based line in the file
	Input opportunity.CreateInput
}

// Parser reads opportunity spreadsheets exported from CRMs or office suites.
// The header row may be preceded by report metadata and columns may come in
// any order.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]Row, error) {
	decoded, err := enc.Detect(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	br := bufio.NewReader(decoded)

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, lines, err := readAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	slog.Debug("parsed import file", "charset", decoded.Charset, "delimiter", string(reader.Comma), "records", len(records))

	if len(records) == 0 {
		return nil, nil
	}

	cols, headerIdx, ok := findHeader(records)
	if !ok {
		return nil, ErrNoHeader
	}

	var rows []Row

	for i := headerIdx + 1; i < len(records); i++ {
		if blankRecord(records[i]) {
			continue
		}

		rows = append(rows, Row{
			Line:  lines[i],
			Input: toInput(cols, records[i]),
		})
	}

	return rows, nil
}

// readAll is csv.Reader.ReadAll keeping the file line of every record, since
// blank lines are skipped by the reader.
func readAll(reader *csv.Reader) ([][]string, []int, error) {
	var (
		records [][]string
		lines   []int
	)

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return records, lines, nil
		}

		if err != nil {
			return nil, nil, err
		}

		line, _ := reader.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
}

// sniffDelimiter picks ';' when the first line has more semicolons than commas.
func sniffDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(br.Size())

	if i := strings.IndexByte(string(line), '\n'); i >= 0 {
		line = line[:i]
	}

	if strings.Count(string(line), ";") > strings.Count(string(line), ",") {
		return ';'
	}

	return ','
}

func findHeader(records [][]string) (colIndex, int, bool) {
	for i, rec := range records {
		if cols, ok := matchHeader(rec); ok {
			return cols, i, true
		}
	}

	return nil, 0, false
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}

	return true
}

func cell(cols colIndex, rec []string, field string) string {
	i, ok := cols[field]
	if !ok || i >= len(rec) {
		return ""
	}

	return strings.TrimSpace(rec[i])
}

func toInput(cols colIndex, rec []string) opportunity.CreateInput {
	return opportunity.CreateInput{
		Title:             cell(cols, rec, opportunity.FieldTitle),
		Company:           cell(cols, rec, opportunity.FieldCompany),
		Contact:           cell(cols, rec, opportunity.FieldContact),
		Value:             normalizeValue(cell(cols, rec, opportunity.FieldValue)),
		Currency:          cell(cols, rec, opportunity.FieldCurrency),
		Probability:       normalizeProbability(cell(cols, rec, opportunity.FieldProbability)),
		ExpectedCloseDate: normalizeDate(cell(cols, rec, opportunity.FieldExpectedCloseDate)),
		Owner:             cell(cols, rec, opportunity.FieldOwner),
		Description:       cell(cols, rec, opportunity.FieldDescription),
		DecisionMaker:     cell(cols, rec, opportunity.FieldDecisionMaker),
		ProposalPDF:       cell(cols, rec, opportunity.FieldProposalPDF),
	}
}
