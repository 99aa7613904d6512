//go:build js && wasm

package tonkcore

import (
	"context"

	"github.com/tonk-labs/tonk-sub000/storage"
)

func init() {
	newIndexedDBAdapter = func(ctx context.Context, namespace string) (storage.Adapter, error) {
		return storage.NewIndexedDB(ctx, namespace)
	}
}
