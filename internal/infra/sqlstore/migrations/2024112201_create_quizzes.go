package migrations

import (
	"context"
	"encoding/json"

	"github.com/uptrace/bun"
)

type quiz20241122 struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID         string          `bun:"id,pk"`
	OwnerID    string          `bun:"owner_id,notnull"`
	Title      string          `bun:"title,notnull"`
	AccessCode string          `bun:"access_code,nullzero"`
	Data       json.RawMessage `bun:"data,type:jsonb,notnull"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if _, err := db.NewCreateTable().
				Model((*quiz20241122)(nil)).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
			_, err := db.NewCreateIndex().
				Model((*quiz20241122)(nil)).
				Index("quizzes_access_code_idx").
				Unique().
				Column("access_code").
				IfNotExists().
				Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.NewDropTable().Model((*quiz20241122)(nil)).IfExists().Exec(ctx)
			return err
		},
	)
}
