package repositories

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// Record is one decoded store entry, flattened for diagnostics.
type Record struct {
	Key    string
	Kind   string
	At     time.Time
	Detail string
}

// Scan walks every key under prefix and decodes the value by its key family.
// Undecodable values are reported as Kind "raw" rather than aborting the scan.
func Scan(db *badger.DB, prefix string, fn func(Record) error) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(decodeRecord(key, value)); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeRecord(key string, value []byte) Record {
	record := Record{Key: key}
	family, _, _ := strings.Cut(key, ":")
	switch family {
	case "user":
		var u User
		if err := cbor.Unmarshal(value, &u); err != nil {
			return raw(record, value)
		}
		record.Kind, record.At = "USER", u.CreatedAt
		record.Detail = fmt.Sprintf("%s <%s> last seen %s", u.Username, u.Email, u.LastSeen.Format(time.DateTime))
	case "room":
		var dr diskRoom
		if err := cbor.Unmarshal(value, &dr); err != nil {
			return raw(record, value)
		}
		record.Kind, record.At = "ROOM", dr.CreatedAt
		record.Detail = fmt.Sprintf("%s private=%t max=%d", dr.Name, dr.Private, dr.MaxUsers)
	case "msg":
		var dm diskMessage
		if err := cbor.Unmarshal(value, &dm); err != nil {
			return raw(record, value)
		}
		record.Kind, record.At = "MESSAGE", time.Unix(0, dm.CreatedAt).UTC()
		record.Detail = fmt.Sprintf("#%d %s: %s", dm.Seq, dm.Username, dm.Content)
	case "member":
		record.Kind = "MEMBER"
	case "seq":
		record.Kind = "SEQUENCE"
	case "user_email", "room_name":
		record.Kind, record.Detail = "INDEX", string(value)
	default:
		return raw(record, value)
	}
	return record
}

func raw(record Record, value []byte) Record {
	record.Kind = "raw"
	record.Detail = fmt.Sprintf("%d bytes", len(value))
	return record
}
