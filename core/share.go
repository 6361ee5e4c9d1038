package core

import (
	"bytes"
	"context"
)

type (
	// Share is an immutable canvas export published under an anonymous id.
	Share struct {
		Data bytes.Buffer
	}

	ShareStore interface {
		FindID(ctx context.Context, id string) (*Share, error)
		Publish(ctx context.Context, share *Share) (string, error)
	}
)
