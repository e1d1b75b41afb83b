// Package jsonrs routes JSON marshalling through a configurable
// implementation so the codec can be swapped without touching call sites.
package jsonrs

import (
	"encoding/json"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/rudderlabs/rudder-go-kit/config"
)

const (
	// JsoniterLib selects the json-iterator implementation, the default.
	JsoniterLib = "jsoniter"
	// StdLib selects the standard library implementation.
	StdLib = "std"
)

// JSON is the interface every implementation satisfies.
type JSON interface {
	Marshal(v any) ([]byte, error)
	MarshalIndent(v any, prefix, indent string) ([]byte, error)
	MarshalToString(v any) (string, error)
	Unmarshal(data []byte, v any) error
	NewDecoder(r io.Reader) Decoder
	NewEncoder(w io.Writer) Encoder
}

// Decoder decodes values from a JSON stream.
type Decoder interface {
	Decode(v any) error
}

// Encoder encodes values into a JSON stream.
type Encoder interface {
	Encode(v any) error
}

// Default is the process-wide JSON implementation.
var Default = New(config.Default)

// New returns the implementation named by the Boreal.Json.library key.
func New(conf *config.Config) JSON {
	switch conf.GetString("Boreal.Json.library", JsoniterLib) {
	case StdLib:
		return stdJSON{}
	default:
		return jsoniterJSON{}
	}
}

func Marshal(v any) ([]byte, error) { return Default.Marshal(v) }

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return Default.MarshalIndent(v, prefix, indent)
}

func MarshalToString(v any) (string, error) { return Default.MarshalToString(v) }

func Unmarshal(data []byte, v any) error { return Default.Unmarshal(data, v) }

func NewDecoder(r io.Reader) Decoder { return Default.NewDecoder(r) }

func NewEncoder(w io.Writer) Encoder { return Default.NewEncoder(w) }

var fastestConfig = jsoniter.ConfigCompatibleWithStandardLibrary

// jsoniterJSON implements JSON on github.com/json-iterator/go.
type jsoniterJSON struct{}

func (jsoniterJSON) Marshal(v any) ([]byte, error) { return fastestConfig.Marshal(v) }

func (jsoniterJSON) MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return fastestConfig.MarshalIndent(v, prefix, indent)
}

func (jsoniterJSON) MarshalToString(v any) (string, error) {
	return fastestConfig.MarshalToString(v)
}

func (jsoniterJSON) Unmarshal(data []byte, v any) error { return fastestConfig.Unmarshal(data, v) }

func (jsoniterJSON) NewDecoder(r io.Reader) Decoder { return fastestConfig.NewDecoder(r) }

func (jsoniterJSON) NewEncoder(w io.Writer) Encoder { return fastestConfig.NewEncoder(w) }

// stdJSON implements JSON on encoding/json.
type stdJSON struct{}

func (stdJSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (stdJSON) MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(v, prefix, indent)
}

func (stdJSON) MarshalToString(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (stdJSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (stdJSON) NewDecoder(r io.Reader) Decoder { return json.NewDecoder(r) }

func (stdJSON) NewEncoder(w io.Writer) Encoder { return json.NewEncoder(w) }
