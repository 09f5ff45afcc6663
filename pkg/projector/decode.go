package projector

import (
	"fmt"

	"github.com/cuemby/gridfabric/pkg/address"
)

// prefixLength is the number of leading key characters a decoder dispatches
// on: the six-character family namespace plus the two-character resource
// sub-type. Dispatching on the namespace alone isn't enough, since every
// family with more than one resource type needs the sub-type byte too to
// pick the right decoder.
const prefixLength = 8

// decodeFunc decodes one Set state change's value into the flattened rows
// it projects to. key is passed through for decoders that need the full
// address (Product keys the row, rather than the entity, by address).
type decodeFunc func(key string, value []byte) ([]Row, error)

// deleteFunc resolves a Delete state change's key to the rows it retires.
type deleteFunc func(key string) ([]RowRef, error)

// RowRef names one projected row by table and natural key, for explicit
// retirement on a Delete state change.
type RowRef struct {
	Table      string
	NaturalKey string
}

var setDispatch = map[string]decodeFunc{
	address.NamespacePike + "00": decodePikeAgents,
	address.NamespacePike + "01": decodePikeOrganizations,
	address.NamespaceSchema:      decodeGridSchemas,
	address.NamespaceTrackAndTrace + "00": decodeRecords,
	address.NamespaceTrackAndTrace + "01": decodeProperties,
	address.NamespaceTrackAndTrace + "02": decodeReportedValues,
	address.NamespaceTrackAndTrace + "03": decodeProposals,
	address.NamespaceProduct:             decodeProducts,
}

var deleteDispatch = map[string]deleteFunc{
	address.NamespaceProduct: deleteProduct,
}

// dispatchKey returns the prefix a Set/Delete state change dispatches on.
// NamespaceSchema and NamespaceProduct carry no sub-type byte, so their
// dispatch key is the plain six-character namespace; every other family
// keys off namespace+subtype.
func dispatchKey(key string) string {
	if len(key) < prefixLength {
		return key
	}
	ns := key[:address.NamespaceLength]
	if ns == address.NamespaceSchema || ns == address.NamespaceProduct {
		return ns
	}
	return key[:prefixLength]
}

// DecodeSet dispatches a Set state change to its per-family decoder,
// returning an error for any namespace/sub-type combination the projector
// doesn't recognize: an unrecognized namespace key is a fatal
// event-processing error.
func DecodeSet(key string, value []byte) ([]Row, error) {
	fn, ok := setDispatch[dispatchKey(key)]
	if !ok {
		return nil, fmt.Errorf("projector: unrecognized namespace key %q", key)
	}
	return fn(key, value)
}

// DecodeDelete dispatches a Delete state change to the rows it retires.
func DecodeDelete(key string) ([]RowRef, error) {
	fn, ok := deleteDispatch[dispatchKey(key)]
	if !ok {
		return nil, fmt.Errorf("projector: unexpected delete of key %q", key)
	}
	return fn(key)
}
