package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/beamline/signage-server-go/internal/model"
)

// PlaylistRepository is a read-only boundary: the playback core consumes
// playlists, it does not author them.
type PlaylistRepository interface {
	FindByID(ctx context.Context, id string) (*model.Playlist, error)
	// FindByIDWithItems loads the playlist, its items in position order,
	// and each item's media record.
	FindByIDWithItems(ctx context.Context, id string) (*model.Playlist, error)
}

type playlistRepo struct {
	db *sqlx.DB
}

func NewPlaylistRepository(db *sqlx.DB) PlaylistRepository {
	return &playlistRepo{db: db}
}

func (r *playlistRepo) FindByID(ctx context.Context, id string) (*model.Playlist, error) {
	var pl model.Playlist
	err := r.db.GetContext(ctx, &pl, `
		SELECT * FROM playlists WHERE id = $1
	`, id)
	return HandleNotFound(&pl, err)
}

func (r *playlistRepo) FindByIDWithItems(ctx context.Context, id string) (*model.Playlist, error) {
	pl, err := r.FindByID(ctx, id)
	if err != nil || pl == nil {
		return pl, err
	}

	var items []model.PlaylistItem
	err = r.db.SelectContext(ctx, &items, `
		SELECT * FROM playlist_items
		WHERE playlist_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}

	if len(items) > 0 {
		mediaIDs := make([]string, 0, len(items))
		for _, item := range items {
			mediaIDs = append(mediaIDs, item.MediaID)
		}

		query, args, err := sqlx.In(`SELECT * FROM media WHERE id IN (?)`, mediaIDs)
		if err != nil {
			return nil, err
		}

		var records []model.MediaRecord
		if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
			return nil, err
		}

		byID := make(map[string]*model.MediaRecord, len(records))
		for i := range records {
			byID[records[i].ID] = &records[i]
		}
		for i := range items {
			items[i].Media = byID[items[i].MediaID]
		}
	}

	pl.Items = items
	return pl, nil
}
