package logfield

const (
	Account       = "account"
	User          = "user"
	Host          = "host"
	Port          = "port"
	Protocol      = "protocol"
	Database      = "database"
	Schema        = "schema"
	Warehouse     = "warehouse"
	Role          = "role"
	Endpoint      = "endpoint"
	RequestID     = "requestID"
	QueryID       = "queryID"
	SequenceID    = "sequenceID"
	SQLText       = "sqlText"
	SQLState      = "sqlState"
	StatusCode    = "statusCode"
	RowCount      = "rowCount"
	FieldCount    = "fieldCount"
	StatementType = "statementType"
	ColumnType    = "columnType"
	Attribute     = "attribute"
	Payload       = "payload"
	Elapsed       = "elapsed"
	Error         = "error"
)
