package repositories

import (
	"chat-relay/errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// Timestamps keep their nanoseconds, the default unix mode truncates to seconds.
var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func readValue(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, v)
	})
}

func writeValue(txn *badger.Txn, key []byte, v any) error {
	data, err := encMode.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// translate maps badger errors onto the error taxonomy.
// A missing key becomes notFound, anything else is a persistence failure.
func translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return notFound
	case errors.Is(err, errors.ErrNotFound), errors.Is(err, errors.ErrValidation):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
}
