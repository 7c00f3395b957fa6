package zorm

import (
	"database/sql"
)

// bindRecords scans every remaining row into a loaded Record of model.
// Driver byte slices are converted to strings so attribute values compare
// the same way across drivers.
func bindRecords(conn *Connection, model *ModelDef, rows *sql.Rows) ([]*Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var (
		records []*Record
		values  = make([]any, len(columns))
		dest    = make([]any, len(columns))
	)
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		attrs := make(map[string]any, len(columns))
		for i, column := range columns {
			switch v := values[i].(type) {
			case []byte:
				attrs[column] = string(v)
			default:
				attrs[column] = v
			}
		}

		records = append(records, newRecord(conn, model, attrs, true))
	}

	return records, rows.Err()
}
