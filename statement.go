package boreal

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/rudderlabs/boreal-sql-go/jsonrs"
	"github.com/rudderlabs/boreal-sql-go/logfield"
)

// Statement type identifiers reported by the warehouse.
const (
	statementTypeDML              = int64(0x3000)
	statementTypeInsert           = statementTypeDML + 0x100
	statementTypeUpdate           = statementTypeDML + 0x200
	statementTypeDelete           = statementTypeDML + 0x300
	statementTypeMerge            = statementTypeDML + 0x400
	statementTypeMultiTableInsert = statementTypeDML + 0x500
)

// isDMLType reports whether a statement type identifier names a data
// modifying statement class.
func isDMLType(id int64) bool {
	switch id {
	case statementTypeDML, statementTypeInsert, statementTypeUpdate,
		statementTypeDelete, statementTypeMerge, statementTypeMultiTableInsert:
		return true
	}
	return false
}

// Statement owns one prepared SQL text and everything its execution produced:
// bindings, column descriptors and the buffered result rows. Prepare resets
// all of it, so a statement is reusable indefinitely.
type Statement struct {
	conn *Connection
	log  logger.Logger

	sql        string
	requestID  string
	queryID    string
	sequenceID int64

	params  map[int]BindInput
	results map[int]BindOutput

	columns     []ColumnDescriptor
	rowset      []gjson.Result
	totalRows   int64
	totalFields int
	rowIndex    int64
	dml         bool

	errs errorSlot
}

// NewStatement creates a Statement bound to this connection, drawing its
// sequence number from the connection's counter.
func (c *Connection) NewStatement() *Statement {
	return &Statement{
		conn:        c,
		log:         c.log.Child("statement"),
		sequenceID:  c.sequence.Add(1),
		requestID:   uuid.New().String(),
		totalRows:   -1,
		totalFields: -1,
		rowIndex:    -1,
	}
}

// Prepare installs new SQL text, resetting every piece of per-statement state
// left over from a previous execution.
func (s *Statement) Prepare(sql string) error {
	s.reset()
	if sql == "" {
		return s.errs.set(ErrCodeBadRequest, "SQL text cannot be empty.", "", "")
	}
	s.sql = sql
	return nil
}

// reset returns the statement to idle: bindings, descriptors, buffered rows
// and the error slot are released and the request identifier is regenerated.
func (s *Statement) reset() {
	s.errs.clear()
	s.sql = ""
	s.requestID = uuid.New().String()
	s.queryID = ""
	s.params = nil
	s.results = nil
	s.columns = nil
	s.rowset = nil
	s.totalRows = -1
	s.totalFields = -1
	s.rowIndex = -1
	s.dml = false
}

// BindParam stores one input binding at its 1-based index, overwriting any
// previous binding there. Indices may be sparse; only bound positions are
// serialized at execute.
func (s *Statement) BindParam(in BindInput) error {
	s.errs.clear()
	normalized, err := normalizeBindInput(in)
	if err != nil {
		return s.errs.setf(ErrCodeBadRequest, "", "", "%v", err)
	}
	if s.params == nil {
		s.params = make(map[int]BindInput)
	}
	s.params[normalized.Index] = normalized
	return nil
}

// BindResult stores one output binding at its 1-based index, overwriting any
// previous binding there.
func (s *Statement) BindResult(out BindOutput) error {
	s.errs.clear()
	if err := validateBindOutput(out); err != nil {
		return s.errs.setf(ErrCodeBadRequest, "", "", "%v", err)
	}
	if s.results == nil {
		s.results = make(map[int]BindOutput)
	}
	s.results[out.Index] = out
	return nil
}

// Execute runs the prepared SQL against the session. It requires a prior
// successful Connect; without session tokens it fails before touching the
// network.
func (s *Statement) Execute(ctx context.Context) error {
	s.errs.clear()

	if s.conn.sessionToken == "" || s.conn.masterToken == "" {
		return s.errs.set(ErrCodeBadConnectionParams,
			"Missing session or master token. Try running Connect.", "", "")
	}
	if s.sql == "" {
		return s.errs.set(ErrCodeBadRequest, "No SQL text prepared.", "", "")
	}

	req := execRequest{SQLText: s.sql, AsyncExec: false, SequenceID: s.sequenceID}
	if len(s.params) > 0 {
		bindings, err := s.serializeBindings()
		if err != nil {
			return s.errs.setf(ErrCodeBadRequest, "", "", "%v", err)
		}
		req.Bindings = bindings
	}
	payload, err := jsonrs.Marshal(req)
	if err != nil {
		return s.errs.setf(ErrCodeBadRequest, "", "", "serializing query request: %v", err)
	}

	params := url.Values{}
	params.Set("requestId", s.requestID)

	rc := s.conn.restClient()
	if rc.debug {
		rc.log.Debugw("executing",
			logfield.SQLText, s.sql,
			logfield.SequenceID, s.sequenceID,
			logfield.RequestID, s.requestID,
		)
	}
	body, err := rc.postJSON(ctx, "query", s.conn.buildURL(queryRequestPath, params), payload, s.conn.networkTimeout)
	if err != nil {
		return s.errs.setf(ErrCodeBadRequest, "", "", "query request failed: %v", err)
	}

	env := parseEnvelope(body)
	data := env.data()
	// The server assigns a query id even to rejected statements; keep it so
	// the failure stays addressable server-side.
	s.queryID = data.Get("queryId").String()
	if !env.success() {
		msg := env.message()
		if msg == "" {
			msg = "Query execution was rejected by the server."
		}
		code := env.code()
		if code == 0 {
			code = ErrCodeBadResponse
		}
		return s.errs.set(code, msg, data.Get("sqlState").String(), s.queryID)
	}
	if !data.Exists() {
		return s.errs.set(ErrCodeBadResponse,
			"Missing data object from response.", SQLStateConnectionReject, "")
	}

	s.adoptSessionNames(data)

	if stid := data.Get("statementTypeId"); stid.Exists() {
		s.dml = isDMLType(stid.Int())
	}

	if err := s.buildDescriptors(data); err != nil {
		return s.errs.setf(ErrCodeBadResponse, SQLStateConnectionReject, s.queryID, "%v", err)
	}

	rowset := data.Get("rowset")
	if !rowset.IsArray() {
		return s.errs.set(ErrCodeBadResponse,
			"Missing rowset from response. No results found.",
			SQLStateConnectionReject, s.queryID)
	}
	s.rowset = rowset.Array()
	if total := data.Get("total"); total.Exists() {
		s.totalRows = total.Int()
	} else {
		s.totalRows = int64(len(s.rowset))
	}
	s.rowIndex = 0

	s.log.Debugw("query executed",
		logfield.QueryID, s.queryID,
		logfield.SequenceID, s.sequenceID,
		logfield.RowCount, s.totalRows,
		logfield.FieldCount, s.totalFields,
	)
	return nil
}

// adoptSessionNames copies the resolved database, schema, warehouse and role
// back onto the connection. Each may be absent; absence is logged, not fatal.
func (s *Statement) adoptSessionNames(data gjson.Result) {
	names := []struct {
		key  string
		dest *string
	}{
		{"finalDatabaseName", &s.conn.database},
		{"finalSchemaName", &s.conn.schema},
		{"finalWarehouseName", &s.conn.warehouse},
		{"finalRoleName", &s.conn.role},
	}
	for _, n := range names {
		if v := data.Get(n.key); v.Exists() && v.Type != gjson.Null {
			*n.dest = v.String()
		} else {
			s.log.Warnw("response carries no "+n.key, logfield.QueryID, s.queryID)
		}
	}
}

// buildDescriptors decodes rowtype into column descriptors. A column type the
// driver does not know degrades to TEXT so its values stay reachable as
// strings.
func (s *Statement) buildDescriptors(data gjson.Result) error {
	rowtype := data.Get("rowtype")
	if !rowtype.IsArray() {
		s.columns = nil
		s.totalFields = 0
		return nil
	}
	var rowTypes []execResponseRowType
	if err := jsonrs.Unmarshal([]byte(rowtype.Raw), &rowTypes); err != nil {
		return fmt.Errorf("decoding rowtype: %w", err)
	}
	s.columns = make([]ColumnDescriptor, 0, len(rowTypes))
	for i, rt := range rowTypes {
		sqlType, ok := sqlTypeFromString(rt.Type)
		if !ok {
			s.log.Warnw("unknown column type in rowtype",
				logfield.QueryID, s.queryID,
				logfield.ColumnType, rt.Type,
			)
			sqlType = TypeText
		}
		s.columns = append(s.columns, ColumnDescriptor{
			Index:      i + 1,
			Name:       rt.Name,
			Type:       sqlType,
			NativeKind: defaultNativeKind(sqlType, rt.Scale),
			Precision:  rt.Precision,
			Scale:      rt.Scale,
			Length:     rt.Length,
			Nullable:   rt.Nullable,
		})
	}
	s.totalFields = len(s.columns)
	return nil
}

// serializeBindings renders the sparse input bindings into the wire map,
// walking positions in ascending order.
func (s *Statement) serializeBindings() (map[string]execBindParameter, error) {
	indices := lo.Keys(s.params)
	sort.Ints(indices)
	out := make(map[string]execBindParameter, len(indices))
	for _, idx := range indices {
		in := s.params[idx]
		value, err := bindParamValue(in)
		if err != nil {
			return nil, err
		}
		out[strconv.Itoa(idx)] = execBindParameter{
			Type:  bindSQLType(in.Kind).String(),
			Value: value,
		}
	}
	return out, nil
}

// Fetch moves the cursor one row forward, converting each field with a bound
// output into its destination. Every bound output is validated against its
// column descriptor before anything is consumed; a mismatch aborts with the
// row queue untouched, so the caller can rebind and fetch the same row again.
// An empty queue returns io.EOF and mutates nothing.
func (s *Statement) Fetch() error {
	s.errs.clear()
	if len(s.rowset) == 0 {
		return io.EOF
	}

	for _, col := range s.columns {
		out, ok := s.results[col.Index]
		if !ok {
			continue
		}
		if out.Kind != col.NativeKind && out.Kind != KindString {
			return s.errs.setf(ErrCodeTypeMismatch, "", s.queryID,
				"Output at index %d is bound as %s, column %q wants %s or STRING.",
				col.Index, out.Kind, col.Name, col.NativeKind)
		}
	}

	row := s.rowset[0]
	s.rowset = s.rowset[1:]
	s.rowIndex++
	fields := row.Array()

	for _, col := range s.columns {
		out, ok := s.results[col.Index]
		if !ok {
			continue
		}
		var field gjson.Result
		if col.Index-1 < len(fields) {
			field = fields[col.Index-1]
		}
		if err := writeFetchValue(out, field, col); err != nil {
			return s.errs.setf(ErrCodeTypeMismatch, "", s.queryID, "%v", err)
		}
	}
	return nil
}

// AffectedRows returns the row count of the last execution. For DML it
// consumes the single summary row and sums its fields, so it yields its
// answer once and -1 afterwards, or -1 when nothing is buffered. For queries
// it returns the recorded total row count without touching the buffer.
func (s *Statement) AffectedRows() int64 {
	s.errs.clear()
	if s.dml {
		if len(s.rowset) == 0 {
			return -1
		}
		row := s.rowset[0]
		s.rowset = s.rowset[1:]
		var sum int64
		for _, field := range row.Array() {
			sum += parseWireInt(field.String())
		}
		return sum
	}
	return s.totalRows
}

// Query prepares and executes sql in one call.
func (s *Statement) Query(ctx context.Context, sql string) error {
	if err := s.Prepare(sql); err != nil {
		return err
	}
	return s.Execute(ctx)
}

// QueryID returns the server-assigned identifier of the last execution.
func (s *Statement) QueryID() string { return s.queryID }

// SequenceID returns this statement's position in the connection's statement
// order.
func (s *Statement) SequenceID() int64 { return s.sequenceID }

// RowCount returns the total row count recorded by the last execution, -1
// before any.
func (s *Statement) RowCount() int64 { return s.totalRows }

// FieldCount returns the number of result columns, -1 before any execution.
func (s *Statement) FieldCount() int { return s.totalFields }

// IsDML reports whether the last execution was classified as data modifying.
func (s *Statement) IsDML() bool { return s.dml }

// Columns returns a copy of the column descriptors of the last execution.
func (s *Statement) Columns() []ColumnDescriptor {
	cols := make([]ColumnDescriptor, len(s.columns))
	copy(cols, s.columns)
	return cols
}

// LastError returns the error recorded by the most recent failing operation
// on this statement, or nil.
func (s *Statement) LastError() *Error { return s.errs.last() }

// Close releases everything the statement owns.
func (s *Statement) Close() error {
	s.reset()
	return nil
}
