package projector

import (
	"fmt"

	"github.com/cuemby/gridfabric/pkg/container"
)

// decodeContainer decodes a state-change value as a {Entity}List using the
// same container framing the CORE's transaction families write with.
func decodeContainer[T container.Item](value []byte, newItem func() T) ([]T, error) {
	items, err := container.Decode(value, newItem)
	if err != nil {
		return nil, fmt.Errorf("projector: decode container: %w", err)
	}
	return items, nil
}
