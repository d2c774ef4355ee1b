package rows

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader errors.
var (
	ErrEmptyInput        = errors.New("input contains no header or records")
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrNotScalar         = errors.New("value is not a scalar")
	ErrNotMapping        = errors.New("record is not a mapping")
)

// maxLineBytes bounds a single JSON-lines record.
const maxLineBytes = 4 * 1024 * 1024

// Frame is an in-memory table: a fixed list of column names and the records
// under them. It implements Collection[Record] and is never mutated after
// loading.
type Frame struct {
	columns []string
	index   map[string]int
	records [][]string
}

// NewFrame builds a frame from column names and row values. Each row must have
// exactly len(columns) values.
func NewFrame(columns []string, values [][]string) (*Frame, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}
	for i, v := range values {
		if len(v) != len(columns) {
			return nil, fmt.Errorf("record %d has %d values, want %d", i, len(v), len(columns))
		}
	}
	return &Frame{columns: columns, index: index, records: values}, nil
}

// Len returns the number of records.
func (f *Frame) Len() int { return len(f.records) }

// At returns the record at offset i.
func (f *Frame) At(i int) Record {
	return Record{frame: f, values: f.records[i]}
}

// Columns returns a copy of the column names.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Record is one row of a Frame.
type Record struct {
	frame  *Frame
	values []string
}

// Get returns the value stored under column.
func (r Record) Get(column string) (string, bool) {
	if r.frame == nil {
		return "", false
	}
	i, ok := r.frame.index[column]
	if !ok {
		return "", false
	}
	return r.values[i], true
}

// Values returns a copy of the record's values in column order.
func (r Record) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// Map returns the record keyed by column name.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	if r.frame == nil {
		return out
	}
	for i, c := range r.frame.columns {
		out[c] = r.values[i]
	}
	return out
}

// LoadFile reads a dataset from path, choosing the parser by extension:
// .csv, .yaml/.yml, or .jsonl/.ndjson.
func LoadFile(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer f.Close()

	var frame *Frame
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		frame, err = ReadCSV(f)
	case ".yaml", ".yml":
		frame, err = ReadYAML(f)
	case ".jsonl", ".ndjson":
		frame, err = ReadJSONLines(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("loading dataset %s: %w", path, err)
	}
	return frame, nil
}

// ReadCSV parses CSV with a mandatory header row.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	var values [][]string
	for {
		rec, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading csv: %w", readErr)
		}
		values = append(values, rec)
	}
	return NewFrame(header, values)
}

// ReadYAML parses a YAML sequence of mappings. Columns appear in the order
// they are first seen; a record missing a column gets an empty value.
func ReadYAML(r io.Reader) (*Frame, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyInput
		}
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("parsing yaml: expected a list of records at line %d", root.Line)
	}

	b := newFrameBuilder()
	for i, node := range root.Content {
		if err := b.add(node); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return b.build()
}

// ReadJSONLines parses one JSON object per line. Blank lines are skipped.
// Columns follow key order, as in ReadYAML.
func ReadJSONLines(r io.Reader) (*Frame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	b := newFrameBuilder()
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields, err := decodeJSONObject(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b.addFields(fields)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading json lines: %w", err)
	}
	return b.build()
}

// field is one key/value pair of a record in source order.
type field struct {
	key   string
	value string
	null  bool
}

// decodeJSONObject walks the tokens of a single flat JSON object.
func decodeJSONObject(text string) ([]field, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotMapping
	}

	var fields []field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing json: %w", err)
		}
		key, _ := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing json: %w", err)
		}
		f := field{key: key}
		switch v := valTok.(type) {
		case json.Delim:
			return nil, fmt.Errorf("column %q: %w", key, ErrNotScalar)
		case nil:
			f.null = true
		case string:
			f.value = v
		case json.Number:
			f.value = v.String()
		case bool:
			f.value = strconv.FormatBool(v)
		}
		fields = append(fields, f)
	}

	// Closing brace, then nothing else on the line.
	if _, err = dec.Token(); err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}
	if _, err = dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("parsing json: unexpected data after object")
	}
	return fields, nil
}

// frameBuilder collects records whose key sets may differ.
type frameBuilder struct {
	columns []string
	index   map[string]int
	rows    []map[int]string
}

func newFrameBuilder() *frameBuilder {
	return &frameBuilder{index: make(map[string]int)}
}

// add converts a YAML mapping node into fields.
func (b *frameBuilder) add(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w at line %d", ErrNotMapping, node.Line)
	}

	fields := make([]field, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("column %q: %w at line %d", key.Value, ErrNotScalar, val.Line)
		}
		fields = append(fields, field{key: key.Value, value: val.Value, null: val.Tag == "!!null"})
	}
	b.addFields(fields)
	return nil
}

// addFields appends one record. Unseen keys become new trailing columns.
func (b *frameBuilder) addFields(fields []field) {
	row := make(map[int]string, len(fields))
	for _, f := range fields {
		col, ok := b.index[f.key]
		if !ok {
			col = len(b.columns)
			b.index[f.key] = col
			b.columns = append(b.columns, f.key)
		}
		if !f.null {
			row[col] = f.value
		}
	}
	b.rows = append(b.rows, row)
}

func (b *frameBuilder) build() (*Frame, error) {
	if len(b.rows) == 0 {
		return nil, ErrEmptyInput
	}
	values := make([][]string, len(b.rows))
	for i, row := range b.rows {
		v := make([]string, len(b.columns))
		for col, s := range row {
			v[col] = s
		}
		values[i] = v
	}
	return NewFrame(b.columns, values)
}
