package index

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/tierdb/pkg/zerocopy"
)

// addToSet inserts id into the set stored under key. It reports whether the
// set changed.
func addToSet(txn *badger.Txn, key []byte, id string) (bool, error) {
	var (
		encoded []byte
		changed bool
	)
	found, err := zerocopy.ViewArchive(txn, key, zerocopy.IDSet{}, func(v zerocopy.IDSetView) error {
		var err error
		encoded, changed, err = v.WithInsert(id)
		return err
	})
	if err != nil {
		return false, err
	}
	if !found {
		encoded, err = zerocopy.EncodeIDSet([]string{id})
		if err != nil {
			return false, err
		}
		changed = true
	}
	if !changed {
		return false, nil
	}
	return true, zerocopy.PutAligned(txn, key, encoded)
}

// removeFromSet removes id from the set under key, deleting the key when the
// set becomes empty. A missing key or member is not an error.
func removeFromSet(txn *badger.Txn, key []byte, id string) (bool, error) {
	var (
		encoded        []byte
		changed, empty bool
	)
	found, err := zerocopy.ViewArchive(txn, key, zerocopy.IDSet{}, func(v zerocopy.IDSetView) error {
		var err error
		encoded, changed, empty, err = v.WithRemove(id)
		return err
	})
	if err != nil || !found || !changed {
		return false, err
	}
	if empty {
		return true, zerocopy.Delete(txn, key)
	}
	return true, zerocopy.PutAligned(txn, key, encoded)
}

// keyExists reports whether key is present in txn's snapshot.
func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch err {
	case nil:
		return true, nil
	case badger.ErrKeyNotFound:
		return false, nil
	}
	return false, err
}
