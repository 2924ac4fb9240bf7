package report

import (
	"bytes"
	"encoding/xml"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// Marshal renders doc as an indented XML document with a trailing newline
func Marshal(doc *Document) ([]byte, error) {
	if doc == nil || doc.Root == nil {
		return nil, errors.New("empty document")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if doc.Doctype != "" {
		buf.WriteString(doc.Doctype)
		buf.WriteByte('\n')
	}

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc.Root); err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s report", doc.Kind)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s report", doc.Kind)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Write marshals doc to w
func Write(w io.Writer, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile marshals doc to path
func WriteFile(path string, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
