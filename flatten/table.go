package flatten

// Table is the flat form of a record batch. Every row has exactly
// len(Headers) cells and Rows[i][j] belongs to Headers[j].
type Table struct {
	Headers []string
	Rows    [][]string
}

// Index returns the column of header.
func (t Table) Index(header string) (int, bool) {
	for i, h := range t.Headers {
		if h == header {
			return i, true
		}
	}
	return -1, false
}

// Cell returns the value of header in row i, or "" when either is unknown.
func (t Table) Cell(i int, header string) string {
	j, ok := t.Index(header)
	if !ok || i < 0 || i >= len(t.Rows) {
		return ""
	}
	return t.Rows[i][j]
}

// cell is one populated slot of a row under construction.
type cell struct {
	header string
	value  string
}

// builder accumulates the header union and the rows.
type builder struct {
	headers []string
	index   map[string]int
	rows    [][]string
}

func newBuilder() *builder {
	return &builder{index: make(map[string]int)}
}

func (b *builder) column(header string) int {
	if i, ok := b.index[header]; ok {
		return i
	}
	b.index[header] = len(b.headers)
	b.headers = append(b.headers, header)
	return len(b.headers) - 1
}

// addRow unions the row's headers into the table in the order they appear
// and stores the cells. A header seen twice in one row keeps the last value.
func (b *builder) addRow(cells []cell) {
	row := make([]string, len(b.headers))
	for _, c := range cells {
		j := b.column(c.header)
		for len(row) <= j {
			row = append(row, "")
		}
		row[j] = c.value
	}
	b.rows = append(b.rows, row)
}

func (b *builder) table() Table {
	width := len(b.headers)
	for i, row := range b.rows {
		for len(row) < width {
			row = append(row, "")
		}
		b.rows[i] = row
	}
	headers := b.headers
	if headers == nil {
		headers = []string{}
	}
	rows := b.rows
	if rows == nil {
		rows = [][]string{}
	}
	return Table{Headers: headers, Rows: rows}
}
