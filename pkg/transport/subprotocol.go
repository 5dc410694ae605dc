package transport

import (
	"fmt"
	"regexp"

	masterminds "github.com/Masterminds/semver/v3"
)

// DefaultSubprotocolRange accepts any OCPP 1.6 revision ("ocpp1.6").
const DefaultSubprotocolRange = "~1.6"

var subprotocolRegex = regexp.MustCompile(`^ocpp(\d+(?:\.\d+){0,2})$`)

// SubprotocolVersion extracts the OCPP version from a WebSocket subprotocol
// token such as "ocpp1.6".
func SubprotocolVersion(token string) (*masterminds.Version, error) {
	m := subprotocolRegex.FindStringSubmatch(token)
	if m == nil {
		return nil, fmt.Errorf("%s - not an OCPP subprotocol: %q", logPrefix, token)
	}
	v, err := masterminds.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("%s - invalid OCPP version in %q: %w", logPrefix, token, err)
	}
	return v, nil
}

// Negotiator picks the subprotocol to accept from the ones a station offers.
type Negotiator struct {
	constraint *masterminds.Constraints
}

// NewNegotiator accepts subprotocols whose version satisfies rangeStr.
func NewNegotiator(rangeStr string) (*Negotiator, error) {
	if rangeStr == "" {
		rangeStr = DefaultSubprotocolRange
	}
	c, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid subprotocol range %q: %w", logPrefix, rangeStr, err)
	}
	return &Negotiator{constraint: c}, nil
}

// Select returns the first offered subprotocol the negotiator accepts.
func (n *Negotiator) Select(offered []string) (string, bool) {
	for _, token := range offered {
		v, err := SubprotocolVersion(token)
		if err != nil {
			continue
		}
		if n.constraint.Check(v) {
			return token, true
		}
	}
	return "", false
}
