package boreal

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	"github.com/tidwall/gjson"

	"github.com/rudderlabs/boreal-sql-go/logfield"
	"github.com/rudderlabs/boreal-sql-go/utils/httputil"
)

// REST surface of the warehouse.
const (
	loginRequestPath = "/session/v1/login-request"
	queryRequestPath = "/queries/v1/query-request"
)

// responseBodyLimit caps how much of a response body the driver buffers.
const responseBodyLimit = int64(64 << 20) // 64MB

type authRequest struct {
	Data authRequestData `json:"data"`
}

type authRequestData struct {
	AccountName       string            `json:"ACCOUNT_NAME"`
	LoginName         string            `json:"LOGIN_NAME"`
	Password          string            `json:"PASSWORD"`
	ClientAppID       string            `json:"CLIENT_APP_ID"`
	ClientAppVersion  string            `json:"CLIENT_APP_VERSION"`
	ClientEnvironment clientEnvironment `json:"CLIENT_ENVIRONMENT"`
}

type clientEnvironment struct {
	Application string `json:"APPLICATION"`
	OS          string `json:"OS"`
}

type execRequest struct {
	SQLText    string                       `json:"sqlText"`
	AsyncExec  bool                         `json:"asyncExec"`
	SequenceID int64                        `json:"sequenceId"`
	Bindings   map[string]execBindParameter `json:"bindings,omitempty"`
}

type execBindParameter struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type execResponseRowType struct {
	Name       string `json:"name"`
	ByteLength int64  `json:"byteLength"`
	Length     int64  `json:"length"`
	Type       string `json:"type"`
	Precision  int64  `json:"precision"`
	Scale      int64  `json:"scale"`
	Nullable   bool   `json:"nullable"`
}

// envelope is the wrapper every endpoint responds with: a success flag, an
// optional data document and optional message/code fields. It stays a parsed
// document so callers can detach pieces of it without re-decoding.
type envelope struct {
	doc gjson.Result
}

func parseEnvelope(body []byte) envelope {
	return envelope{doc: gjson.ParseBytes(body)}
}

func (e envelope) success() bool { return e.doc.Get("success").Bool() }

func (e envelope) data() gjson.Result { return e.doc.Get("data") }

func (e envelope) message() string { return e.doc.Get("message").String() }

// code returns the server's numeric error code, 0 when absent. The wire
// carries it as a numeric string.
func (e envelope) code() int {
	return int(e.doc.Get("code").Int())
}

// restClient performs one JSON POST per public driver operation.
type restClient struct {
	client *http.Client
	log    logger.Logger
	stats  stats.Stats
	debug  bool
}

// postJSON sends payload to u and returns the raw response body. The returned
// error covers transport and non-2xx failures; envelope-level rejection is
// the caller's to interpret.
func (rc *restClient) postJSON(ctx context.Context, endpoint, u string, payload []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := rc.client.Do(req)
	rc.stats.NewTaggedStat("boreal_request_duration_seconds", stats.TimerType, stats.Tags{
		"endpoint": endpoint,
	}).Since(start)
	if err != nil {
		rc.countRequest(endpoint, false)
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}

	body, err := httputil.ReadAndClose(resp, responseBodyLimit)
	if err != nil {
		rc.countRequest(endpoint, false)
		return nil, fmt.Errorf("%s response: %w", endpoint, err)
	}
	if !httputil.IsSuccessStatus(resp.StatusCode) {
		rc.countRequest(endpoint, false)
		rc.log.Errorw("request rejected",
			logfield.Endpoint, endpoint,
			logfield.StatusCode, resp.StatusCode,
		)
		return nil, fmt.Errorf("%s request: unexpected status %d", endpoint, resp.StatusCode)
	}

	rc.countRequest(endpoint, true)
	rc.log.Debugw("request completed",
		logfield.Endpoint, endpoint,
		logfield.StatusCode, resp.StatusCode,
		logfield.Elapsed, time.Since(start),
	)
	return body, nil
}

func (rc *restClient) countRequest(endpoint string, success bool) {
	rc.stats.NewTaggedStat("boreal_requests_total", stats.CountType, stats.Tags{
		"endpoint": endpoint,
		"success":  strconv.FormatBool(success),
	}).Increment()
}
