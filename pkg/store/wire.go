package store

// Wire envelope of the statement-over-HTTP protocol:
//
//	POST <endpoint>   {"statements":[{"q":"SELECT ...","params":[...]}]}
//	200 OK            [{"results":{"columns":[...],"rows":[[...],...]}}]
//	                  [{"error":{"message":"..."}}]

// Request is the body posted to the engine endpoint.
type Request struct {
	Statements []Statement `json:"statements"`
}

// Statement is a single SQL statement with positional parameters.
type Statement struct {
	Q      string `json:"q"`
	Params []any  `json:"params"`
}

// StatementResult is one element of the response array.
type StatementResult struct {
	Error   *StatementError `json:"error,omitempty"`
	Results *ResultSet      `json:"results,omitempty"`
}

// StatementError is the engine-reported failure of a statement.
type StatementError struct {
	Message string `json:"message"`
}

// ResultSet holds parallel column names and row tuples.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Result reshapes positional row tuples into column-keyed rows.
func (rs *ResultSet) Result() *Result {
	res := &Result{Columns: rs.Columns, Rows: make([]Row, 0, len(rs.Rows))}
	for _, tuple := range rs.Rows {
		row := make(Row, len(rs.Columns))
		for i, col := range rs.Columns {
			if i < len(tuple) {
				row[col] = tuple[i]
			} else {
				row[col] = nil
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}
