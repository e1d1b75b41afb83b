package boreal

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	"github.com/spf13/cast"
)

// GlobalAttribute enumerates the process-wide configuration surface.
type GlobalAttribute int

const (
	GlobalCABundleFile GlobalAttribute = iota
	GlobalDisableVerifyPeer
	GlobalTLSVersionFloor
	GlobalDebug
	GlobalLogPath
)

var globalAttributeNames = map[GlobalAttribute]string{
	GlobalCABundleFile:      "caBundleFile",
	GlobalDisableVerifyPeer: "disableVerifyPeer",
	GlobalTLSVersionFloor:   "tlsVersionFloor",
	GlobalDebug:             "debug",
	GlobalLogPath:           "logPath",
}

func (a GlobalAttribute) String() string {
	if name, ok := globalAttributeNames[a]; ok {
		return name
	}
	return fmt.Sprintf("GlobalAttribute(%d)", int(a))
}

// Environment carries the process-wide driver state: TLS material, the shared
// HTTP clients, the logging and metrics sinks. Create one with Init, release
// it with Term, and thread it through explicitly; nothing here lives in
// package globals.
type Environment struct {
	conf  *config.Config
	log   logger.Logger
	stats stats.Stats

	mu                sync.Mutex
	caBundleFile      string
	disableVerifyPeer bool
	tlsVersionFloor   uint16
	debug             bool
	logPath           string

	httpClient         *http.Client
	insecureHTTPClient *http.Client
	customClient       bool
}

// EnvOption customizes Init.
type EnvOption func(*Environment)

func WithConfig(conf *config.Config) EnvOption {
	return func(e *Environment) { e.conf = conf }
}

func WithLogger(log logger.Logger) EnvOption {
	return func(e *Environment) { e.log = log }
}

func WithStats(st stats.Stats) EnvOption {
	return func(e *Environment) { e.stats = st }
}

// WithHTTPClient installs a caller-owned HTTP client, bypassing the TLS
// configuration the environment would otherwise build from its attributes.
func WithHTTPClient(client *http.Client) EnvOption {
	return func(e *Environment) {
		e.httpClient = client
		e.customClient = true
	}
}

// Init builds the process-wide environment. TLS and debug settings come from
// configuration under Boreal.Global.*; the log path falls back to the
// BOREAL_LOG_PATH environment variable when not configured.
func Init(opts ...EnvOption) (*Environment, error) {
	e := &Environment{
		conf:  config.Default,
		log:   logger.NewLogger().Child("boreal"),
		stats: stats.Default,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.caBundleFile = e.conf.GetString("Boreal.Global.caBundleFile", "")
	e.disableVerifyPeer = e.conf.GetBool("Boreal.Global.disableVerifyPeer", false)
	floor, err := parseTLSVersion(e.conf.GetString("Boreal.Global.tlsVersionFloor", "1.2"))
	if err != nil {
		return nil, err
	}
	e.tlsVersionFloor = floor
	e.debug = e.conf.GetBool("Boreal.Global.debug", false)
	e.logPath = e.conf.GetString("Boreal.Global.logPath", "")
	if e.logPath == "" {
		e.logPath = os.Getenv("BOREAL_LOG_PATH")
	}

	if err := e.rebuildClients(); err != nil {
		return nil, err
	}
	e.log.Debugw("environment initialized")
	return e, nil
}

// parseTLSVersion maps the configured floor to a crypto/tls version. The
// driver never negotiates below TLS 1.2.
func parseTLSVersion(s string) (uint16, error) {
	switch s {
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version floor %q", s)
	}
}

// rebuildClients derives the shared HTTP clients from the current TLS
// attributes. Callers hold e.mu or have exclusive access to e.
func (e *Environment) rebuildClients() error {
	if e.customClient {
		return nil
	}
	tlsConfig := &tls.Config{MinVersion: e.tlsVersionFloor}
	if e.disableVerifyPeer {
		tlsConfig.InsecureSkipVerify = true
	}
	if e.caBundleFile != "" {
		pem, err := os.ReadFile(e.caBundleFile)
		if err != nil {
			return fmt.Errorf("reading CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return fmt.Errorf("CA bundle %s holds no usable certificates", e.caBundleFile)
		}
		tlsConfig.RootCAs = pool
	}
	insecure := tlsConfig.Clone()
	insecure.InsecureSkipVerify = true
	e.httpClient = &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyFromEnvironment, TLSClientConfig: tlsConfig},
	}
	e.insecureHTTPClient = &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyFromEnvironment, TLSClientConfig: insecure},
	}
	return nil
}

// Term releases the environment. Close connections first; transports held by
// live connections keep working until their requests finish.
func (e *Environment) Term() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.httpClient != nil {
		e.httpClient.CloseIdleConnections()
	}
	if e.insecureHTTPClient != nil {
		e.insecureHTTPClient.CloseIdleConnections()
	}
	e.log.Debugw("environment terminated")
}

// SetAttribute updates one process-wide attribute. TLS-affecting attributes
// rebuild the shared clients; connections created afterwards observe the new
// settings. Unknown attributes fail without touching any state.
func (e *Environment) SetAttribute(attr GlobalAttribute, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch attr {
	case GlobalCABundleFile:
		v, err := cast.ToStringE(value)
		if err != nil {
			return badGlobalAttributeValue(attr, err)
		}
		prev := e.caBundleFile
		e.caBundleFile = v
		if err := e.rebuildClients(); err != nil {
			e.caBundleFile = prev
			return badGlobalAttributeValue(attr, err)
		}
		return nil
	case GlobalDisableVerifyPeer:
		v, err := cast.ToBoolE(value)
		if err != nil {
			return badGlobalAttributeValue(attr, err)
		}
		prev := e.disableVerifyPeer
		e.disableVerifyPeer = v
		if err := e.rebuildClients(); err != nil {
			e.disableVerifyPeer = prev
			return badGlobalAttributeValue(attr, err)
		}
		return nil
	case GlobalTLSVersionFloor:
		s, err := cast.ToStringE(value)
		if err != nil {
			return badGlobalAttributeValue(attr, err)
		}
		floor, err := parseTLSVersion(s)
		if err != nil {
			return badGlobalAttributeValue(attr, err)
		}
		prev := e.tlsVersionFloor
		e.tlsVersionFloor = floor
		if err := e.rebuildClients(); err != nil {
			e.tlsVersionFloor = prev
			return badGlobalAttributeValue(attr, err)
		}
		return nil
	case GlobalDebug:
		v, err := cast.ToBoolE(value)
		if err != nil {
			return badGlobalAttributeValue(attr, err)
		}
		e.debug = v
	case GlobalLogPath:
		v, err := cast.ToStringE(value)
		if err != nil {
			return badGlobalAttributeValue(attr, err)
		}
		e.logPath = v
	default:
		return &Error{Code: ErrCodeBadAttribute, Message: "Invalid attribute type"}
	}
	return nil
}

func badGlobalAttributeValue(attr GlobalAttribute, err error) error {
	return &Error{
		Code:    ErrCodeBadAttribute,
		Message: fmt.Sprintf("invalid value for global attribute %s: %v", attr, err),
	}
}

// GetAttribute reads one process-wide attribute.
func (e *Environment) GetAttribute(attr GlobalAttribute) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch attr {
	case GlobalCABundleFile:
		return e.caBundleFile, nil
	case GlobalDisableVerifyPeer:
		return e.disableVerifyPeer, nil
	case GlobalTLSVersionFloor:
		if e.tlsVersionFloor == tls.VersionTLS13 {
			return "1.3", nil
		}
		return "1.2", nil
	case GlobalDebug:
		return e.debug, nil
	case GlobalLogPath:
		return e.logPath, nil
	default:
		return nil, &Error{Code: ErrCodeBadAttribute, Message: "Invalid attribute type"}
	}
}

// NewConnection allocates an unconnected Connection with secure-transport
// defaults: https, a 120s login timeout, no network timeout, autocommit off
// and a fresh request identifier.
func (e *Environment) NewConnection() *Connection {
	return &Connection{
		env:          e,
		log:          e.log.Child("connection"),
		protocol:     "https",
		loginTimeout: e.conf.GetDuration("Boreal.Client.loginTimeout", 120, time.Second),
		requestID:    uuid.New().String(),
	}
}

func (e *Environment) clientFor(insecure bool) *http.Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	if insecure && !e.customClient {
		return e.insecureHTTPClient
	}
	return e.httpClient
}

func (e *Environment) debugEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.debug
}
