package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL database
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	// Set connection pool settings
	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err = PostgresDB.Ping(); err != nil {
		return err
	}

	log.Println("✅ Connected to PostgreSQL")

	// Initialize tables
	if err = InitPostgresTables(); err != nil {
		return err
	}

	return nil
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables() error {
	queries := []string{
		// Profiles table (id matches the external auth service's user id)
		`CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY,
			username VARCHAR(30) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL,
			profile_image VARCHAR(255) NOT NULL DEFAULT 'cat-profile-1.png',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Cat listings table
		`CREATE TABLE IF NOT EXISTS cats (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			name VARCHAR(255) NOT NULL,
			breed VARCHAR(255),
			gender VARCHAR(50),
			age VARCHAR(50),
			description TEXT,
			location VARCHAR(255),
			condition JSONB,
			contact JSONB,
			status VARCHAR(20) NOT NULL DEFAULT 'available',
			is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE
		)`,

		// Cat media table (at most one is_primary=true row per cat)
		`CREATE TABLE IF NOT EXISTS cat_media (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			cat_id UUID NOT NULL REFERENCES cats(id) ON DELETE CASCADE,
			file_path TEXT NOT NULL,
			media_type VARCHAR(10) NOT NULL,
			is_primary BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		// Cat reports table (one report per user per listing)
		`CREATE TABLE IF NOT EXISTS cat_reports (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			cat_id UUID NOT NULL REFERENCES cats(id) ON DELETE CASCADE,
			user_id UUID NOT NULL,
			reason TEXT,
			UNIQUE(cat_id, user_id)
		)`,

		// Create indexes for better performance
		`CREATE INDEX IF NOT EXISTS idx_profiles_username ON profiles(username)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_username_lower ON profiles(LOWER(username))`,
		`CREATE INDEX IF NOT EXISTS idx_cats_user_id ON cats(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cats_created_at ON cats(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_cats_is_hidden ON cats(is_hidden)`,
		`CREATE INDEX IF NOT EXISTS idx_cat_media_cat_id ON cat_media(cat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cat_media_is_primary ON cat_media(cat_id, is_primary)`,
		`CREATE INDEX IF NOT EXISTS idx_cat_reports_cat_id ON cat_reports(cat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cat_reports_user_id ON cat_reports(user_id)`,
	}

	for _, query := range queries {
		if _, err := PostgresDB.Exec(query); err != nil {
			return err
		}
	}

	log.Println("✅ PostgreSQL tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
