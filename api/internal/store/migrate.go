package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version supported by Migrate.
const SchemaVersion = 2

var migrations = map[int][]string{
	1: {
		`create table if not exists user_profiles (
			uid             text primary key,
			email           text not null default '',
			name            text not null default '',
			role            text not null default 'user',
			bio             text not null default '',
			profile_pic_url text not null default '',
			updated_at      timestamptz not null default now()
		)`,
		`create table if not exists readings (
			id                    text primary key,
			user_id               text not null,
			created_at            timestamptz not null default now(),
			updated_at            timestamptz not null default now(),
			image_urls            jsonb not null default '[]',
			user_question         text not null default '',
			user_symbol_names     jsonb not null default '[]',
			ai_result             jsonb not null,
			manual_symbols        jsonb not null default '[]',
			manual_interpretation text not null default ''
		)`,
		`create index if not exists readings_user_created on readings(user_id, created_at desc)`,
		`create table if not exists personalized_requests (
			id                     text primary key,
			reading_id             text not null references readings(id),
			user_id                text not null,
			tassologist_id         text not null default '',
			user_question          text not null default '',
			status                 text not null,
			price_cents            bigint not null default 0,
			currency               text not null default 'USD',
			payment_status         text not null default 'pending',
			transcription_status   text not null default 'not_requested',
			transcription_op       text not null default '',
			transcription_error    text not null default '',
			transcription_updated  timestamptz,
			requested_at           timestamptz not null default now(),
			updated_at             timestamptz not null default now(),
			completed_at           timestamptz,
			read_at                timestamptz
		)`,
		`create index if not exists personalized_requests_status on personalized_requests(status, requested_at)`,
		`create index if not exists personalized_requests_user on personalized_requests(user_id, requested_at desc)`,
	},
	2: {
		`create table if not exists tiles (
			id          text primary key,
			title       text not null,
			description text not null default '',
			link_url    text not null default '',
			image_url   text not null default '',
			sort_order  int not null default 0,
			active      boolean not null default true
		)`,
		`create table if not exists audio_tracks (
			id         text primary key,
			title      text not null,
			url        text not null,
			sort_order int not null default 0,
			active     boolean not null default true
		)`,
	},
}

// Migrate ensures the schema exists and is upgraded to SchemaVersion.
// Each version is applied in its own transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}
	if _, err := db.ExecContext(ctx, `create table if not exists schema_migrations (version int primary key, applied_at timestamptz not null default now())`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `select coalesce(max(version), 0) from schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}

	for v := current + 1; v <= SchemaVersion; v++ {
		if err := applyVersion(ctx, db, v); err != nil {
			return err
		}
	}
	return nil
}

func applyVersion(ctx context.Context, db *sql.DB, v int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin v%d: %w", v, err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range migrations[v] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: v%d statement %d: %w", v, i+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `insert into schema_migrations(version) values ($1)`, v); err != nil {
		return fmt.Errorf("migrate: record v%d: %w", v, err)
	}
	return tx.Commit()
}
