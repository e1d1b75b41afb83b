package boreal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/rudderlabs/rudder-go-kit/config"
)

const loginOKBody = `{"success":true,"data":{"token":"session-token","masterToken":"master-token"}}`

type stubRequest struct {
	Path  string
	Query url.Values
	Body  []byte
}

// stubWarehouse is an in-process warehouse endpoint. Bodies are returned
// verbatim for their endpoint and every request is captured for inspection.
type stubWarehouse struct {
	srv *httptest.Server

	mu        sync.Mutex
	loginBody string
	queryBody string
	requests  []stubRequest
}

func newStubWarehouse(t *testing.T) *stubWarehouse {
	t.Helper()
	s := &stubWarehouse{loginBody: loginOKBody}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		s.mu.Lock()
		s.requests = append(s.requests, stubRequest{Path: r.URL.Path, Query: r.URL.Query(), Body: body})
		loginBody, queryBody := s.loginBody, s.queryBody
		s.mu.Unlock()

		switch r.URL.Path {
		case loginRequestPath:
			_, _ = io.WriteString(w, loginBody)
		case queryRequestPath:
			_, _ = io.WriteString(w, queryBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *stubWarehouse) setLoginBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginBody = body
}

func (s *stubWarehouse) setQueryBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryBody = body
}

func (s *stubWarehouse) hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (s *stubWarehouse) lastRequest(t *testing.T, path string) stubRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Path == path {
			return s.requests[i]
		}
	}
	t.Fatalf("no request captured for %s", path)
	return stubRequest{}
}

// dial points a fresh connection of env at the stub with test credentials.
func (s *stubWarehouse) dial(t *testing.T, env *Environment) *Connection {
	t.Helper()
	u, err := url.Parse(s.srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	conn := env.NewConnection()
	require.NoError(t, conn.SetAttribute(AttrProtocol, "http"))
	require.NoError(t, conn.SetAttribute(AttrHost, u.Hostname()))
	require.NoError(t, conn.SetAttribute(AttrPort, port))
	require.NoError(t, conn.SetAttribute(AttrAccount, "testacct"))
	require.NoError(t, conn.SetAttribute(AttrUser, "tester"))
	require.NoError(t, conn.SetAttribute(AttrPassword, "hunter2"))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *stubWarehouse) newConnection(t *testing.T) *Connection {
	t.Helper()
	return s.dial(t, newTestEnv(t, nil))
}

func TestConnectionAttributes(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.NewConnection()

	t.Run("set and get round trip", func(t *testing.T) {
		require.NoError(t, conn.SetAttribute(AttrAccount, "acme"))
		require.NoError(t, conn.SetAttribute(AttrUser, "wile"))
		require.NoError(t, conn.SetAttribute(AttrPassword, "s3cret"))
		require.NoError(t, conn.SetAttribute(AttrDatabase, "analytics"))
		require.NoError(t, conn.SetAttribute(AttrAutocommit, true))

		for attr, want := range map[Attribute]any{
			AttrAccount:    "acme",
			AttrUser:       "wile",
			AttrPassword:   "s3cret",
			AttrDatabase:   "analytics",
			AttrAutocommit: true,
		} {
			got, err := conn.GetAttribute(attr)
			require.NoError(t, err, attr.String())
			require.Equal(t, want, got, attr.String())
		}
	})

	t.Run("coerces scalar values", func(t *testing.T) {
		require.NoError(t, conn.SetAttribute(AttrPort, "8443"))
		got, err := conn.GetAttribute(AttrPort)
		require.NoError(t, err)
		require.Equal(t, 8443, got)

		require.NoError(t, conn.SetAttribute(AttrLoginTimeout, 30))
		got, err = conn.GetAttribute(AttrLoginTimeout)
		require.NoError(t, err)
		require.Equal(t, 30*time.Second, got)

		require.NoError(t, conn.SetAttribute(AttrNetworkTimeout, 5*time.Second))
		got, err = conn.GetAttribute(AttrNetworkTimeout)
		require.NoError(t, err)
		require.Equal(t, 5*time.Second, got)
	})

	t.Run("uncoercible value", func(t *testing.T) {
		err := conn.SetAttribute(AttrPort, "eighty")
		require.Error(t, err)
		var de *Error
		require.ErrorAs(t, err, &de)
		require.Equal(t, ErrCodeBadAttribute, de.Code)
		require.Contains(t, de.Message, "invalid value for attribute port")
		require.Same(t, de, conn.LastError())
	})

	t.Run("unknown attribute", func(t *testing.T) {
		err := conn.SetAttribute(Attribute(99), "x")
		var de *Error
		require.ErrorAs(t, err, &de)
		require.Equal(t, ErrCodeBadAttribute, de.Code)
		require.Equal(t, "Invalid attribute type", de.Message)

		_, err = conn.GetAttribute(Attribute(99))
		require.ErrorAs(t, err, &de)
		require.Equal(t, "Invalid attribute type", de.Message)
		require.Same(t, de, conn.LastError())
	})

	t.Run("a successful operation clears the parked error", func(t *testing.T) {
		require.Error(t, conn.SetAttribute(Attribute(99), "x"))
		require.NotNil(t, conn.LastError())
		require.NoError(t, conn.SetAttribute(AttrRole, "sysadmin"))
		require.Nil(t, conn.LastError())
	})
}

func TestConnectRequiresAccountAndUser(t *testing.T) {
	stub := newStubWarehouse(t)
	env := newTestEnv(t, nil)

	u, err := url.Parse(stub.srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	conn := env.NewConnection()
	require.NoError(t, conn.SetAttribute(AttrProtocol, "http"))
	require.NoError(t, conn.SetAttribute(AttrHost, u.Hostname()))
	require.NoError(t, conn.SetAttribute(AttrPort, port))
	require.NoError(t, conn.SetAttribute(AttrUser, "tester"))

	err = conn.Connect(context.Background())
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, ErrCodeBadConnectionParams, de.Code)
	require.Equal(t, "Missing essential connection parameters. Account and user must be set.", de.Message)
	require.Equal(t, SQLStateUnableToConnect, de.SQLState)
	require.Zero(t, stub.hits(loginRequestPath), "must fail before any network traffic")
}

func TestConnect(t *testing.T) {
	stub := newStubWarehouse(t)
	conn := stub.newConnection(t)
	require.NoError(t, conn.SetAttribute(AttrDatabase, "analytics"))
	require.NoError(t, conn.SetAttribute(AttrSchema, "public"))
	require.NoError(t, conn.SetAttribute(AttrWarehouse, "compute_wh"))
	require.NoError(t, conn.SetAttribute(AttrRole, "sysadmin"))

	require.NoError(t, conn.Connect(context.Background()))
	require.Equal(t, "session-token", conn.sessionToken)
	require.Equal(t, "master-token", conn.masterToken)
	require.Nil(t, conn.LastError())

	req := stub.lastRequest(t, loginRequestPath)

	_, err := uuid.Parse(req.Query.Get("request_id"))
	require.NoError(t, err, "request_id must be a UUID")
	require.Equal(t, "analytics", req.Query.Get("databaseName"))
	require.Equal(t, "public", req.Query.Get("schemaName"))
	require.Equal(t, "compute_wh", req.Query.Get("warehouse"))
	require.Equal(t, "sysadmin", req.Query.Get("roleName"))

	body := gjson.ParseBytes(req.Body)
	require.Equal(t, "testacct", body.Get("data.ACCOUNT_NAME").String())
	require.Equal(t, "tester", body.Get("data.LOGIN_NAME").String())
	require.Equal(t, "hunter2", body.Get("data.PASSWORD").String())
	require.Equal(t, clientAppID, body.Get("data.CLIENT_APP_ID").String())
	require.Equal(t, SDKVersion, body.Get("data.CLIENT_APP_VERSION").String())
	require.Equal(t, clientAppID, body.Get("data.CLIENT_ENVIRONMENT.APPLICATION").String())
	require.Equal(t, runtime.GOOS, body.Get("data.CLIENT_ENVIRONMENT.OS").String())

	t.Run("scope parameters are omitted when unset", func(t *testing.T) {
		conn := stub.newConnection(t)
		require.NoError(t, conn.Connect(context.Background()))

		req := stub.lastRequest(t, loginRequestPath)
		require.NotEmpty(t, req.Query.Get("request_id"))
		require.False(t, req.Query.Has("databaseName"))
		require.False(t, req.Query.Has("schemaName"))
		require.False(t, req.Query.Has("warehouse"))
		require.False(t, req.Query.Has("roleName"))
	})
}

func TestConnectScrubsCredentials(t *testing.T) {
	zeroed := func(t *testing.T, buf []byte) {
		t.Helper()
		require.NotEmpty(t, buf)
		require.Equal(t, make([]byte, len(buf)), buf, "credential buffer must be zeroed")
	}

	t.Run("on success", func(t *testing.T) {
		stub := newStubWarehouse(t)
		conn := stub.newConnection(t)
		require.NoError(t, conn.SetAttribute(AttrPasscode, "123456"))
		password, passcode := conn.password, conn.passcode

		require.NoError(t, conn.Connect(context.Background()))
		zeroed(t, password)
		zeroed(t, passcode)
		require.Nil(t, conn.password)
		require.Nil(t, conn.passcode)
	})

	t.Run("on server rejection", func(t *testing.T) {
		stub := newStubWarehouse(t)
		stub.setLoginBody(`{"success":false,"message":"nope","code":"390100"}`)
		conn := stub.newConnection(t)
		password := conn.password

		require.Error(t, conn.Connect(context.Background()))
		zeroed(t, password)
		require.Nil(t, conn.password)
	})

	t.Run("on parameter validation failure", func(t *testing.T) {
		env := newTestEnv(t, nil)
		conn := env.NewConnection()
		require.NoError(t, conn.SetAttribute(AttrPassword, "hunter2"))
		password := conn.password

		require.Error(t, conn.Connect(context.Background()))
		zeroed(t, password)
		require.Nil(t, conn.password)
	})
}

func TestConnectRejected(t *testing.T) {
	stub := newStubWarehouse(t)
	stub.setLoginBody(`{"success":false,"message":"Incorrect username or password was specified.","code":"390100"}`)
	conn := stub.newConnection(t)

	err := conn.Connect(context.Background())
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, 390100, de.Code, "server code passes through")
	require.Equal(t, "Incorrect username or password was specified.", de.Message)
	require.Equal(t, SQLStateUnableToConnect, de.SQLState)

	t.Run("rejection without a message", func(t *testing.T) {
		stub.setLoginBody(`{"success":false}`)
		conn := stub.newConnection(t)

		err := conn.Connect(context.Background())
		var de *Error
		require.ErrorAs(t, err, &de)
		require.Equal(t, ErrCodeBadResponse, de.Code)
		require.Equal(t, "Authentication was rejected by the server.", de.Message)
	})
}

func TestConnectMissingData(t *testing.T) {
	stub := newStubWarehouse(t)
	stub.setLoginBody(`{"success":true}`)
	conn := stub.newConnection(t)

	err := conn.Connect(context.Background())
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, ErrCodeBadResponse, de.Code)
	require.Equal(t, "Missing data object from authentication response.", de.Message)
	require.Equal(t, SQLStateUnableToConnect, de.SQLState)
}

func TestConnectTransportError(t *testing.T) {
	stub := newStubWarehouse(t)
	conn := stub.newConnection(t)
	stub.srv.Close() // nothing listens anymore

	err := conn.Connect(context.Background())
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, ErrCodeBadRequest, de.Code)
	require.Contains(t, de.Message, "authentication request failed")
	require.Equal(t, SQLStateUnableToConnect, de.SQLState)
}

func TestConnectDebugPayloadRedaction(t *testing.T) {
	conf := config.New()
	conf.Set("Boreal.Global.debug", true)
	env := newTestEnv(t, conf)

	stub := newStubWarehouse(t)
	conn := stub.dial(t, env)
	require.NoError(t, conn.Connect(context.Background()))

	// Redaction happens on a copy for the log line; the wire payload still
	// carries the real password.
	req := stub.lastRequest(t, loginRequestPath)
	require.Equal(t, "hunter2", gjson.ParseBytes(req.Body).Get("data.PASSWORD").String())
}

func TestConnectionClose(t *testing.T) {
	stub := newStubWarehouse(t)
	conn := stub.newConnection(t)
	require.NoError(t, conn.Connect(context.Background()))
	require.NotEmpty(t, conn.sessionToken)

	require.NoError(t, conn.Close())
	require.Empty(t, conn.sessionToken)
	require.Empty(t, conn.masterToken)

	stmt := conn.NewStatement()
	require.NoError(t, stmt.Prepare("select 1"))
	err := stmt.Execute(context.Background())
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, "Missing session or master token. Try running Connect.", de.Message)
}

func TestTransactionControlNoOps(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.NewConnection()
	ctx := context.Background()

	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Commit(ctx))
	require.NoError(t, conn.Rollback(ctx))

	t.Run("clear a parked error", func(t *testing.T) {
		for name, op := range map[string]func(context.Context) error{
			"Begin":    conn.Begin,
			"Commit":   conn.Commit,
			"Rollback": conn.Rollback,
		} {
			require.Error(t, conn.SetAttribute(Attribute(99), "x"))
			require.NotNil(t, conn.LastError(), name)
			require.NoError(t, op(ctx), name)
			require.Nil(t, conn.LastError(), name)
		}
	})
}
