package calib

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	yamlHeader       = "%YAML:1.0\n---\n"
	opencvMatrixTag  = "tag:yaml.org,2002:opencv-matrix"
	opencvMatrixName = "opencv-matrix"
)

func encodeYAML(w io.Writer, entries []entry) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range entries {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: e.key}

		var val *yaml.Node
		if e.matrix != nil {
			val = yamlMatrix(e.matrix)
		} else {
			val = &yaml.Node{Kind: yaml.ScalarNode, Value: e.scalar}
			if e.quoted {
				val.Style = yaml.DoubleQuotedStyle
			}
		}
		root.Content = append(root.Content, key, val)
	}

	if _, err := io.WriteString(w, yamlHeader); err != nil {
		return fmt.Errorf("write yaml header: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(3)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func yamlMatrix(m *Matrix) *yaml.Node {
	data := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range m.Data {
		data.Content = append(data.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: formatReal(v)})
	}

	scalar := func(v string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
	}
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  opencvMatrixTag,
		Content: []*yaml.Node{
			scalar("rows"), scalar(strconv.Itoa(m.Rows)),
			scalar("cols"), scalar(strconv.Itoa(m.Cols)),
			scalar("dt"), scalar(m.DT),
			scalar("data"), data,
		},
	}
}

func decodeYAML(data []byte) ([]entry, error) {
	// OpenCV writes a "%YAML:1.0" directive that is not valid YAML 1.1/1.2.
	if bytes.HasPrefix(data, []byte("%YAML")) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		} else {
			data = nil
		}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrNoMatrix
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse yaml: top level is not a mapping")
	}

	var entries []entry
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			entries = append(entries, entry{key: key, scalar: val.Value})
		case yaml.MappingNode:
			if !strings.Contains(val.Tag, opencvMatrixName) && yamlField(val, "data") == nil {
				continue
			}
			m, err := parseYAMLMatrix(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			entries = append(entries, entry{key: key, matrix: m})
		}
	}
	return entries, nil
}

func yamlField(n *yaml.Node, name string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == name {
			return n.Content[i+1]
		}
	}
	return nil
}

func parseYAMLMatrix(n *yaml.Node) (*Matrix, error) {
	m := &Matrix{DT: "d"}

	rows, cols, data := yamlField(n, "rows"), yamlField(n, "cols"), yamlField(n, "data")
	if rows == nil || cols == nil || data == nil {
		return nil, fmt.Errorf("opencv-matrix needs rows, cols and data")
	}
	var err error
	if m.Rows, err = strconv.Atoi(rows.Value); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if m.Cols, err = strconv.Atoi(cols.Value); err != nil {
		return nil, fmt.Errorf("cols: %w", err)
	}
	if dt := yamlField(n, "dt"); dt != nil {
		m.DT = dt.Value
	}
	if data.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("data is not a sequence")
	}

	m.Data = make([]float64, 0, len(data.Content))
	for _, v := range data.Content {
		f, err := parseReal(v.Value)
		if err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
		m.Data = append(m.Data, f)
	}
	if len(m.Data) != m.Rows*m.Cols {
		return nil, fmt.Errorf("data has %d values for %dx%d", len(m.Data), m.Rows, m.Cols)
	}
	return m, nil
}
