package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how tables are written
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %q", s)
	}
}

// WriteEdges writes the edge table to w in format
func WriteEdges(w io.Writer, edges Edges, format Format) error {
	if edges == nil {
		edges = Edges{}
	}
	switch format {
	case FormatTable:
		RenderEdges(w, edges)
		return nil
	case FormatCSV:
		return WriteEdgesCSV(w, edges)
	default:
		return encode(w, edges, format)
	}
}

// WriteNodes writes the node table to w in format
func WriteNodes(w io.Writer, nodes Nodes, format Format) error {
	if nodes == nil {
		nodes = Nodes{}
	}
	switch format {
	case FormatTable:
		RenderNodes(w, nodes)
		return nil
	case FormatCSV:
		return WriteNodesCSV(w, nodes)
	default:
		return encode(w, nodes, format)
	}
}

func encode(w io.Writer, value interface{}, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %q", format)
	}
}
