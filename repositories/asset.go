package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"chatkit/domain"
	chaterrors "chatkit/errors"
)

// Assets live next to the records, keyed by a uuid-prefixed name so two
// uploads under the same logical name never collide. The content type
// is sniffed from the bytes rather than trusted from the caller.

func assetKey(name string) []byte {
	return []byte("asset:" + name)
}

func assetMetaKey(name string) []byte {
	return []byte("assetmeta:" + name)
}

func (s *RecordStore) UploadAsset(ctx context.Context, name string, data []byte) (domain.AssetRef, error) {
	if len(data) == 0 {
		return domain.AssetRef{}, chaterrors.Validation("asset %q is empty", name)
	}
	ref := domain.AssetRef{
		Name:        fmt.Sprintf("%s-%s", uuid.NewString(), name),
		ContentType: mimetype.Detect(data).String(),
		Size:        int64(len(data)),
	}
	meta, err := json.Marshal(ref)
	if err != nil {
		return domain.AssetRef{}, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(assetKey(ref.Name), data); err != nil {
			return err
		}
		return txn.Set(assetMetaKey(ref.Name), meta)
	})
	if err != nil {
		return domain.AssetRef{}, err
	}
	return ref, nil
}

func (s *RecordStore) FetchAsset(ctx context.Context, name string) ([]byte, domain.AssetRef, error) {
	var data []byte
	var ref domain.AssetRef
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(assetKey(name))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("asset %q: %w", name, chaterrors.ErrNotFound)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(assetMetaKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &ref)
		})
	})
	if err != nil {
		return nil, domain.AssetRef{}, err
	}
	return data, ref, nil
}
