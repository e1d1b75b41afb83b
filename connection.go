package boreal

import (
	"context"
	"net"
	"net/url"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/spf13/cast"
	"github.com/tidwall/sjson"

	"github.com/rudderlabs/boreal-sql-go/jsonrs"
	"github.com/rudderlabs/boreal-sql-go/logfield"
)

// Connection holds the account attributes and session state of one warehouse
// session. It is not safe for concurrent use: the token fields mutate in
// place. Statements keep a reference to their Connection and must not outlive
// it.
type Connection struct {
	env *Environment
	log logger.Logger

	account            string
	user               string
	password           []byte
	passcode           []byte
	passcodeInPassword bool
	database           string
	schema             string
	warehouse          string
	role               string
	host               string
	port               int
	protocol           string
	insecureMode       bool
	loginTimeout       time.Duration
	networkTimeout     time.Duration
	autocommit         bool

	requestID    string
	sessionToken string
	masterToken  string
	sequence     atomic.Int64

	errs errorSlot
}

// SetAttribute stores one connection attribute, coercing value to the
// attribute's type. Unknown attributes fail without touching any state.
// Credentials are kept in owned byte buffers so Connect can zero them.
func (c *Connection) SetAttribute(attr Attribute, value any) error {
	c.errs.clear()
	var err error
	switch attr {
	case AttrAccount:
		c.account, err = cast.ToStringE(value)
	case AttrUser:
		c.user, err = cast.ToStringE(value)
	case AttrPassword:
		var s string
		if s, err = cast.ToStringE(value); err == nil {
			c.password = []byte(s)
		}
	case AttrPasscode:
		var s string
		if s, err = cast.ToStringE(value); err == nil {
			c.passcode = []byte(s)
		}
	case AttrDatabase:
		c.database, err = cast.ToStringE(value)
	case AttrSchema:
		c.schema, err = cast.ToStringE(value)
	case AttrWarehouse:
		c.warehouse, err = cast.ToStringE(value)
	case AttrRole:
		c.role, err = cast.ToStringE(value)
	case AttrHost:
		c.host, err = cast.ToStringE(value)
	case AttrPort:
		c.port, err = cast.ToIntE(value)
	case AttrProtocol:
		c.protocol, err = cast.ToStringE(value)
	case AttrPasscodeInPassword:
		c.passcodeInPassword, err = cast.ToBoolE(value)
	case AttrInsecureMode:
		c.insecureMode, err = cast.ToBoolE(value)
	case AttrLoginTimeout:
		c.loginTimeout, err = toDuration(value)
	case AttrNetworkTimeout:
		c.networkTimeout, err = toDuration(value)
	case AttrAutocommit:
		c.autocommit, err = cast.ToBoolE(value)
	default:
		return c.errs.set(ErrCodeBadAttribute, "Invalid attribute type", "", "")
	}
	if err != nil {
		return c.errs.setf(ErrCodeBadAttribute, "", "", "invalid value for attribute %s: %v", attr, err)
	}
	return nil
}

// GetAttribute reads one connection attribute. Resolved names written back by
// Execute (database, schema, warehouse, role) are visible here.
func (c *Connection) GetAttribute(attr Attribute) (any, error) {
	c.errs.clear()
	switch attr {
	case AttrAccount:
		return c.account, nil
	case AttrUser:
		return c.user, nil
	case AttrPassword:
		return string(c.password), nil
	case AttrPasscode:
		return string(c.passcode), nil
	case AttrDatabase:
		return c.database, nil
	case AttrSchema:
		return c.schema, nil
	case AttrWarehouse:
		return c.warehouse, nil
	case AttrRole:
		return c.role, nil
	case AttrHost:
		return c.host, nil
	case AttrPort:
		return c.port, nil
	case AttrProtocol:
		return c.protocol, nil
	case AttrPasscodeInPassword:
		return c.passcodeInPassword, nil
	case AttrInsecureMode:
		return c.insecureMode, nil
	case AttrLoginTimeout:
		return c.loginTimeout, nil
	case AttrNetworkTimeout:
		return c.networkTimeout, nil
	case AttrAutocommit:
		return c.autocommit, nil
	default:
		return nil, c.errs.set(ErrCodeBadAttribute, "Invalid attribute type", "", "")
	}
}

// toDuration accepts a time.Duration or a scalar number of seconds.
func toDuration(value any) (time.Duration, error) {
	if d, ok := value.(time.Duration); ok {
		return d, nil
	}
	secs, err := cast.ToInt64E(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// Connect authenticates against the session endpoint and installs the
// session and master tokens. The password and passcode buffers are zeroed
// and released before returning on every path, success or failure.
func (c *Connection) Connect(ctx context.Context) error {
	c.errs.clear()
	defer c.scrubCredentials()

	if c.account == "" || c.user == "" {
		return c.errs.set(ErrCodeBadConnectionParams,
			"Missing essential connection parameters. Account and user must be set.",
			SQLStateUnableToConnect, "")
	}

	payload, err := jsonrs.Marshal(authRequest{Data: authRequestData{
		AccountName:      c.account,
		LoginName:        c.user,
		Password:         string(c.password),
		ClientAppID:      clientAppID,
		ClientAppVersion: SDKVersion,
		ClientEnvironment: clientEnvironment{
			Application: clientAppID,
			OS:          runtime.GOOS,
		},
	}})
	if err != nil {
		return c.errs.setf(ErrCodeBadRequest, SQLStateUnableToConnect, "",
			"serializing authentication request: %v", err)
	}
	defer zeroBytes(payload)

	params := url.Values{}
	params.Set("request_id", c.requestID)
	if c.database != "" {
		params.Set("databaseName", c.database)
	}
	if c.schema != "" {
		params.Set("schemaName", c.schema)
	}
	if c.warehouse != "" {
		params.Set("warehouse", c.warehouse)
	}
	if c.role != "" {
		params.Set("roleName", c.role)
	}

	rc := c.restClient()
	if rc.debug {
		redacted, _ := sjson.SetBytes(payload, "data.PASSWORD", "********")
		rc.log.Debugw("authenticating",
			logfield.Account, c.account,
			logfield.User, c.user,
			logfield.RequestID, c.requestID,
			logfield.Payload, string(redacted),
		)
	}

	body, err := rc.postJSON(ctx, "login", c.buildURL(loginRequestPath, params), payload, c.loginTimeout)
	if err != nil {
		return c.errs.setf(ErrCodeBadRequest, SQLStateUnableToConnect, "",
			"authentication request failed: %v", err)
	}

	env := parseEnvelope(body)
	if !env.success() {
		msg := env.message()
		if msg == "" {
			msg = "Authentication was rejected by the server."
		}
		code := env.code()
		if code == 0 {
			code = ErrCodeBadResponse
		}
		return c.errs.set(code, msg, SQLStateUnableToConnect, "")
	}
	data := env.data()
	if !data.Exists() {
		return c.errs.set(ErrCodeBadResponse,
			"Missing data object from authentication response.",
			SQLStateUnableToConnect, "")
	}
	c.sessionToken = data.Get("token").String()
	c.masterToken = data.Get("masterToken").String()

	c.log.Infow("session established",
		logfield.Account, c.account,
		logfield.User, c.user,
		logfield.Host, c.host,
		logfield.RequestID, c.requestID,
	)
	return nil
}

// Close releases the connection's owned state. Credentials still held by a
// connection that never connected are zeroed here.
func (c *Connection) Close() error {
	c.scrubCredentials()
	c.sessionToken = ""
	c.masterToken = ""
	c.errs.clear()
	return nil
}

// Begin is a no-op: transaction control travels as SQL text on this protocol.
func (c *Connection) Begin(context.Context) error {
	c.errs.clear()
	return nil
}

// Commit is a no-op, see Begin.
func (c *Connection) Commit(context.Context) error {
	c.errs.clear()
	return nil
}

// Rollback is a no-op, see Begin.
func (c *Connection) Rollback(context.Context) error {
	c.errs.clear()
	return nil
}

// PropagateError copies stmt's error into the connection's error slot. The
// message is duplicated, so resetting the statement afterwards leaves the
// connection's copy intact.
func (c *Connection) PropagateError(stmt *Statement) {
	c.errs.copyFrom(stmt.errs.last())
}

// LastError returns the error recorded by the most recent failing operation
// on this connection, or nil.
func (c *Connection) LastError() *Error { return c.errs.last() }

// scrubCredentials zeroes and releases the password and passcode buffers.
func (c *Connection) scrubCredentials() {
	zeroBytes(c.password)
	zeroBytes(c.passcode)
	c.password = nil
	c.passcode = nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func (c *Connection) buildURL(path string, params url.Values) string {
	host := c.host
	if c.port > 0 {
		host = net.JoinHostPort(c.host, strconv.Itoa(c.port))
	}
	u := url.URL{Scheme: c.protocol, Host: host, Path: path, RawQuery: params.Encode()}
	return u.String()
}

func (c *Connection) restClient() *restClient {
	return &restClient{
		client: c.env.clientFor(c.insecureMode),
		log:    c.log,
		stats:  c.env.stats,
		debug:  c.env.debugEnabled(),
	}
}
