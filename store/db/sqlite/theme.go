package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tsudoi-io/tsudoi/store"
)

func (d *DB) UpsertThemeVocab(ctx context.Context, upsert *store.ThemeVocab) (*store.ThemeVocab, error) {
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = time.Now().Unix()
	}

	stmt := `INSERT INTO theme_vocab (name, created_ts)
		VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET name = excluded.name
		RETURNING id, created_ts`

	err := d.db.QueryRowContext(ctx, stmt, upsert.Name, upsert.CreatedTs).Scan(&upsert.ID, &upsert.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert theme vocab")
	}
	return upsert, nil
}

func (d *DB) UpsertThemeEmbedding(ctx context.Context, upsert *store.ThemeEmbedding) (*store.ThemeEmbedding, error) {
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = time.Now().Unix()
	}

	current := 0
	if upsert.Current {
		current = 1
	}

	stmt := `INSERT INTO theme_embedding (theme_id, model, embedding, current, created_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (theme_id, model) DO UPDATE SET
			embedding = excluded.embedding,
			current = excluded.current
		RETURNING id, created_ts`

	err := d.db.QueryRowContext(ctx, stmt,
		upsert.ThemeID,
		upsert.Model,
		vectorToBLOB(upsert.Embedding),
		current,
		upsert.CreatedTs,
	).Scan(&upsert.ID, &upsert.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert theme embedding")
	}
	return upsert, nil
}

func (d *DB) ListThemeCandidates(ctx context.Context, find *store.FindThemeCandidates) ([]*store.ThemeCandidate, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.Current {
		where = append(where, "te.current = 1")
	}
	if find.Model != nil {
		where, args = append(where, "te.model = ?"), append(args, *find.Model)
	}

	query := `SELECT tv.name, te.embedding
		FROM theme_embedding te
		JOIN theme_vocab tv ON tv.id = te.theme_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY tv.name`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list theme candidates")
	}
	defer rows.Close()

	list := []*store.ThemeCandidate{}
	for rows.Next() {
		var candidate store.ThemeCandidate
		var blob []byte
		if err := rows.Scan(&candidate.Name, &blob); err != nil {
			return nil, errors.Wrap(err, "failed to scan theme candidate")
		}
		if candidate.Embedding, err = blobToVector(blob); err != nil {
			return nil, err
		}
		list = append(list, &candidate)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
