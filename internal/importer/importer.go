package importer

import (
	"io"
)

// Importer turns an uploaded spreadsheet into form rows.
type Importer interface {
	Parse(r io.Reader) ([]Row, error)
}
