package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gitmatrixmax/google-dictionary/internal/images"
)

// ImageCache is an images.Cache backed by the image_cache table. Rows are
// replaced on write and never purged; the cascade decides what is stale.
type ImageCache struct {
	store *Store
}

func (store *Store) ImageCache() *ImageCache {
	return &ImageCache{store: store}
}

func (ic *ImageCache) Get(key string) (images.Entry, bool) {
	row := ic.store.db.QueryRow("SELECT data, stored_at FROM image_cache WHERE term = ?", key)
	var data []byte
	var storedAt int64
	if err := row.Scan(&data, &storedAt); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			ic.store.log.Error("Image cache read failed", zap.String("term", key), zap.Error(err))
		}
		return images.Entry{}, false
	}

	var results []images.ImageResult
	if err := json.Unmarshal(data, &results); err != nil {
		ic.store.log.Error("Problems decoding cached images", zap.String("term", key), zap.Error(err))
		return images.Entry{}, false
	}
	return images.Entry{Data: results, StoredAt: time.Unix(0, storedAt)}, true
}

func (ic *ImageCache) Set(key string, entry images.Entry) {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		ic.store.log.Error("Problems encoding images", zap.String("term", key), zap.Error(err))
		return
	}
	_, err = ic.store.db.Exec("INSERT OR REPLACE INTO image_cache VALUES (?,?,?)",
		key,
		data,
		entry.StoredAt.UnixNano(),
	)
	if err != nil {
		ic.store.log.Error("Image cache write failed", zap.String("term", key), zap.Error(err))
	}
}
