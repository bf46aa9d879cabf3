// Package operation implements the inscription-payload JSON parser (C5):
// turning an inscription's content-type + body into a typed protocol
// operation, or a local (non-fatal) parse failure.
package operation

import (
	"strings"
	"unicode/utf8"

	"github.com/segmentio/encoding/json"

	"github.com/okx/brc20index/errors"
)

// Protocol literals recognised in the `p` field (§4.5).
const (
	ProtocolBRC20   = "brc-20"
	ProtocolBRC20S  = "brc20-s"
	ProtocolBRCZero = "brc-zero"
)

// MinBodyLength is the §4.5(2) minimum body size.
const MinBodyLength = 40

// Operation is implemented by every parsed protocol message
// (Deploy, Mint, Transfer, PoolDeploy, ..., PoolTransfer, Evm).
type Operation interface {
	// Protocol is one of the Protocol* constants above.
	Protocol() string
	// Op is the operation's `op` discriminator (e.g. "deploy", "mint").
	Op() string
}

// Parse runs the §4.5 pipeline: content-type check, UTF-8/length check,
// protocol-literal check, then dispatches on `op` to a protocol-specific
// decoder. Every failure here is local to the resolver: the caller drops
// the inscription and emits no Message (§7).
func Parse(contentType string, body []byte) (Operation, error) {
	if !acceptedContentType(contentType) {
		return nil, errors.New(errors.ERR_UNSUPPORTED_CONTENT_TYPE, "unsupported content type %q", contentType)
	}

	if len(body) < MinBodyLength {
		return nil, errors.New(errors.ERR_NOT_PROTOCOL_JSON, "body too short: %d bytes", len(body))
	}

	if !utf8.Valid(body) {
		return nil, errors.New(errors.ERR_NOT_PROTOCOL_JSON, "body is not valid UTF-8")
	}

	var envelope struct {
		P  string `json:"p"`
		Op string `json:"op"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.New(errors.ERR_NOT_PROTOCOL_JSON, "body is not a JSON object", err)
	}

	switch envelope.P {
	case ProtocolBRC20:
		return parseBRC20(envelope.Op, body)
	case ProtocolBRC20S:
		return parseBRC20S(envelope.Op, body)
	case ProtocolBRCZero:
		return parseBRCZero(envelope.Op, body)
	default:
		return nil, errors.New(errors.ERR_NOT_PROTOCOL_JSON, "unrecognised protocol %q", envelope.P)
	}
}

func acceptedContentType(contentType string) bool {
	switch contentType {
	case "text/plain", "text/plain;charset=utf-8", "text/plain;charset=UTF-8", "application/json":
		return true
	}
	return strings.HasPrefix(contentType, "text/plain;")
}
