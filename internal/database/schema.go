package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the CREATE TABLE statements for every table the service
// owns.  Statements are idempotent so EnsureSchema can run on every
// startup.  parking_spots.vehicle_id deliberately has no ON DELETE
// action: vehicle deletion is handled in application code so that the
// occupied flag and the occupant reference always change together.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		phone VARCHAR(32) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'USER',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_refresh_tokens_hash (token_hash),
		CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		brand VARCHAR(100) NOT NULL,
		model VARCHAR(100) NOT NULL,
		year INT UNSIGNED NOT NULL,
		license_plate VARCHAR(32) NOT NULL,
		is_parked TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_vehicles_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS parking_spots (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		floor INT UNSIGNED NOT NULL,
		label VARCHAR(8) NOT NULL,
		is_occupied TINYINT(1) NOT NULL DEFAULT 0,
		vehicle_id BIGINT UNSIGNED NULL,
		start_time DATETIME NULL,
		end_time DATETIME NULL,
		UNIQUE KEY uq_parking_spots_floor_label (floor, label)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS parking_history (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		floor INT UNSIGNED NOT NULL,
		label VARCHAR(8) NOT NULL,
		fee_huf BIGINT NOT NULL,
		vehicle_id BIGINT UNSIGNED NOT NULL,
		vehicle_brand VARCHAR(100) NOT NULL,
		vehicle_model VARCHAR(100) NOT NULL,
		license_plate VARCHAR(32) NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		user_name VARCHAR(201) NOT NULL,
		user_email VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_parking_history_user (user_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		invoice_number VARCHAR(32) NOT NULL UNIQUE,
		issue_date DATETIME NOT NULL,
		due_date DATETIME NOT NULL,
		amount_huf BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'CREATED',
		customer_name VARCHAR(201) NOT NULL,
		customer_email VARCHAR(255) NOT NULL,
		history_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		email_sent TINYINT(1) NOT NULL DEFAULT 0,
		email_sent_at DATETIME NULL,
		document_path VARCHAR(512) NOT NULL DEFAULT '',
		description VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_invoices_email (customer_email),
		CONSTRAINT fk_invoices_history FOREIGN KEY (history_id) REFERENCES parking_history (id)
	) ENGINE=InnoDB`,
}

// EnsureSchema creates all tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SeedSpots provisions the fixed garage topology once: floors 1-3,
// rows A-D, five spots per row ("A01".."D05"), sixty spots in total.
// Spots are never created or deleted after provisioning, so the seed
// is a no-op when the table already has rows.
func SeedSpots(ctx context.Context, db *sql.DB) error {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_spots`).Scan(&n); err != nil {
		return fmt.Errorf("seed spots: %w", err)
	}
	if n > 0 {
		return nil
	}
	const q = `INSERT INTO parking_spots (floor, label, is_occupied) VALUES (?, ?, 0)`
	for floor := 1; floor <= 3; floor++ {
		for row := 0; row < 4; row++ {
			for col := 1; col <= 5; col++ {
				label := fmt.Sprintf("%c%02d", 'A'+row, col)
				if _, err := db.ExecContext(ctx, q, floor, label); err != nil {
					return fmt.Errorf("seed spots: %w", err)
				}
			}
		}
	}
	return nil
}
