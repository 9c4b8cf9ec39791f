//go:build testutil

package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"IMS-backend/internal/platform/db"
)

// DBHandle: マイグレーション済みの使い捨て MySQL
type DBHandle struct {
	DB     *sql.DB
	cancel func()
	stop   func(context.Context) error
}

func (h *DBHandle) Close() {
	if h.DB != nil {
		_ = h.DB.Close()
	}
	if h.stop != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.stop(ctx)
	}
	if h.cancel != nil {
		h.cancel()
	}
}

func Start(ctx context.Context, loc *time.Location) (*DBHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)

	c, err := mysql.RunContainer(ctx,
		tc.WithImage("mysql:8.0.36"),
		mysql.WithDatabase("ims"),
		mysql.WithUsername("ims"),
		mysql.WithPassword("ims"),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start mysql: %w", err)
	}
	fail := func(err error) (*DBHandle, error) {
		_ = c.Terminate(context.Background())
		cancel()
		return nil, err
	}

	if loc == nil {
		loc = time.UTC
	}
	dsn, err := c.ConnectionString(ctx, "parseTime=true", "loc="+url.QueryEscape(loc.String()))
	if err != nil {
		return fail(err)
	}
	conn, err := db.Open(ctx, dsn)
	if err != nil {
		return fail(err)
	}
	if err := db.Migrate(conn); err != nil {
		_ = conn.Close()
		return fail(err)
	}
	return &DBHandle{DB: conn, cancel: cancel, stop: c.Terminate}, nil
}
