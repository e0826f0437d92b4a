package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	chstore "candy-gallery/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the database named in dsn when missing and
// applies every embedded ClickHouse file. The returned connection targets that database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	database := strings.Trim(u.Path, "/")
	if database == "" {
		return nil, fmt.Errorf("clickhouse dsn %q names no database", u.Redacted())
	}

	if err := ensureDatabase(ctx, dsn, database); err != nil {
		return nil, err
	}

	files, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, database)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse %s: %w", database, err)
	}
	for _, m := range files {
		stmts, err := m.statements()
		if err != nil {
			conn.Close()
			return nil, err
		}
		// One statement per Exec on the native protocol.
		for i, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s statement %d: %w", m.name, i+1, err)
			}
		}
	}
	return conn, nil
}

func ensureDatabase(ctx context.Context, dsn, database string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse server: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+database); err != nil {
		return fmt.Errorf("create database %s: %w", database, err)
	}
	return nil
}

// statements splits the file on top-level semicolons. Quoted text and
// -- line comments are respected; comments are dropped from the output.
func (m migration) statements() ([]string, error) {
	var (
		out     []string
		current strings.Builder
		quote   byte
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			out = append(out, stmt)
		}
		current.Reset()
	}

	src := m.sql
	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch {
		case quote != 0:
			current.WriteByte(ch)
			if ch == '\\' && i+1 < len(src) {
				i++
				current.WriteByte(src[i])
			} else if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
			current.WriteByte(ch)
		case ch == '-' && strings.HasPrefix(src[i:], "--"):
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				i = len(src)
			} else {
				i += end - 1
			}
		case ch == ';':
			flush()
		default:
			current.WriteByte(ch)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("migration %s: unterminated %c quote", m.name, quote)
	}
	flush()
	return out, nil
}
