package csvfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gromoveveryday/essay-grader/internal/evaluator"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/text/encoding/charmap"
)

const defaultEssayType = 2

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// columnAliases maps each required column to the header spellings uploads
// come with in practice.
var columnAliases = map[string][]string{
	"essay_text": {"reference_text", "текст", "text", "сочинение"},
	"task_text":  {"task", "задание", "prompt"},
}

var requiredColumns = []string{"essay_text", "task_text"}

// Load reads a CSV file of essays from disk. Missing required columns, an
// empty file, or an unreadable encoding fail the whole file.
func Load(path string) ([]evaluator.Essay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading csv file: %w", err)
	}
	return Parse(data)
}

// Parse decodes raw CSV bytes into essays. Encodings are tried in order:
// utf-8, windows-1251, latin-1.
func Parse(data []byte) ([]evaluator.Essay, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("csv file is empty")
	}

	text, err := decode(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	columns, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row %d: %w", line, err)
		}

		row := make(map[string]any, len(columns))
		for i, name := range columns {
			if name == "" || i >= len(record) {
				continue
			}
			row[name] = strings.TrimSpace(record[i])
		}

		if value, ok := row["essay_type"].(string); !ok || value == "" {
			row["essay_type"] = defaultEssayType
		}

		rows = append(rows, row)
	}

	var essays []evaluator.Essay
	cfg := &mapstructure.DecoderConfig{
		Result:           &essays,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("building row decoder: %w", err)
	}
	if err := decoder.Decode(rows); err != nil {
		return nil, fmt.Errorf("decoding csv rows: %w", err)
	}

	return essays, nil
}

// decode attempts the supported encodings in order. Uploads from Excel on
// Russian Windows commonly arrive as cp1251.
func decode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	if decoded, err := charmap.Windows1251.NewDecoder().Bytes(data); err == nil {
		return string(decoded), nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.New("could not decode csv file: expected utf-8, windows-1251 or latin-1")
	}

	return string(decoded), nil
}

// resolveColumns normalizes header names, applies aliases and verifies the
// required columns are present. The returned slice maps column index to the
// canonical name, keeping unknown columns out.
func resolveColumns(header []string) ([]string, error) {
	normalized := make([]string, len(header))
	for i, name := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(name))
	}

	known := map[string]string{
		"essay_id":   "essay_id",
		"essay_text": "essay_text",
		"task_text":  "task_text",
		"essay_type": "essay_type",
	}
	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			known[alias] = canonical
		}
	}

	columns := make([]string, len(normalized))
	present := make(map[string]bool)
	for i, name := range normalized {
		canonical, ok := known[name]
		if !ok {
			continue
		}
		// First occurrence wins.
		if present[canonical] {
			continue
		}
		columns[i] = canonical
		present[canonical] = true
	}

	var missing []string
	for _, required := range requiredColumns {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv file is missing required columns: %s (found: %s)",
			strings.Join(missing, ", "), strings.Join(normalized, ", "))
	}

	return columns, nil
}
