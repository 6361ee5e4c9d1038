package collab

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type (
	// Verifier turns a presented credential into a verified identity.
	Verifier interface {
		Verify(token string) (Identity, error)
	}

	// Gateway admits inbound connections. A connection that fails
	// verification is refused before any room event can be processed.
	Gateway struct {
		verifier Verifier
	}
)

func NewGateway(verifier Verifier) *Gateway {
	return &Gateway{verifier: verifier}
}

// Admit verifies the credential and binds the resulting identity to a new
// connection. It touches no room state.
func (g *Gateway) Admit(token string, peer Peer) (*Conn, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	identity, err := g.verifier.Verify(token)
	if err != nil {
		logrus.WithError(err).Debug("connection refused")
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": identity.ID,
		"name":    identity.Name,
	}).Info("User connected")
	return newConn(identity, peer), nil
}
