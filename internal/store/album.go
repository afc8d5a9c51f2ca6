package store

import (
	"encoding/json"

	"github.com/castline/scheduler/internal/model"
)

func encodeAlbum(items []model.AlbumItem) ([]byte, error) {
	return json.Marshal(items)
}

func decodeAlbum(data []byte) ([]model.AlbumItem, error) {
	var items []model.AlbumItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}
