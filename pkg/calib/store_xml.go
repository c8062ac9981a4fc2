package calib

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

func (n xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n xmlNode) child(name string) (xmlNode, bool) {
	for _, c := range n.Nodes {
		if c.XMLName.Local == name {
			return c, true
		}
	}
	return xmlNode{}, false
}

func encodeXML(w io.Writer, entries []entry) error {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\"?>\n<opencv_storage>\n")
	for _, e := range entries {
		if e.matrix != nil {
			fmt.Fprintf(&b, "<%s type_id=\"%s\">\n", e.key, opencvMatrixName)
			fmt.Fprintf(&b, "  <rows>%d</rows>\n  <cols>%d</cols>\n  <dt>%s</dt>\n  <data>\n   ", e.matrix.Rows, e.matrix.Cols, e.matrix.DT)
			for i, v := range e.matrix.Data {
				if i > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(formatReal(v))
			}
			fmt.Fprintf(&b, "</data></%s>\n", e.key)
			continue
		}

		val := e.scalar
		if e.quoted {
			val = "\"" + val + "\""
		}
		fmt.Fprintf(&b, "<%s>", e.key)
		if err := xml.EscapeText(&b, []byte(val)); err != nil {
			return fmt.Errorf("encode xml: %w", err)
		}
		fmt.Fprintf(&b, "</%s>\n", e.key)
	}
	b.WriteString("</opencv_storage>\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write xml: %w", err)
	}
	return nil
}

func decodeXML(data []byte) ([]entry, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	if root.XMLName.Local != "opencv_storage" {
		return nil, fmt.Errorf("parse xml: root element is %q, want opencv_storage", root.XMLName.Local)
	}

	var entries []entry
	for _, n := range root.Nodes {
		key := n.XMLName.Local
		if n.attr("type_id") == opencvMatrixName {
			m, err := parseXMLMatrix(n)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			entries = append(entries, entry{key: key, matrix: m})
			continue
		}
		if len(n.Nodes) > 0 {
			continue
		}
		val := strings.TrimSpace(n.Content)
		quoted := len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"'
		if quoted {
			val = val[1 : len(val)-1]
		}
		entries = append(entries, entry{key: key, scalar: val, quoted: quoted})
	}
	return entries, nil
}

func parseXMLMatrix(n xmlNode) (*Matrix, error) {
	m := &Matrix{DT: "d"}

	rows, okR := n.child("rows")
	cols, okC := n.child("cols")
	data, okD := n.child("data")
	if !okR || !okC || !okD {
		return nil, fmt.Errorf("opencv-matrix needs rows, cols and data")
	}
	var err error
	if m.Rows, err = strconv.Atoi(strings.TrimSpace(rows.Content)); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if m.Cols, err = strconv.Atoi(strings.TrimSpace(cols.Content)); err != nil {
		return nil, fmt.Errorf("cols: %w", err)
	}
	if dt, ok := n.child("dt"); ok {
		m.DT = strings.TrimSpace(dt.Content)
	}

	fields := strings.Fields(data.Content)
	m.Data = make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := parseReal(f)
		if err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
		m.Data = append(m.Data, v)
	}
	if len(m.Data) != m.Rows*m.Cols {
		return nil, fmt.Errorf("data has %d values for %dx%d", len(m.Data), m.Rows, m.Cols)
	}
	return m, nil
}
