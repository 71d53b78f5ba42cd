//go:build !linux

package netstat

import (
	"context"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// Default returns an enumerator that reports ErrUnsupported; only Linux tables are parsed.
func Default() Enumerator {
	return EnumeratorFunc(func(ctx context.Context) ([]Connection, error) {
		return nil, sharedErrors.ErrUnsupported
	})
}
