package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/config"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

// Database represents a database connection
type Database struct {
	DB     *sqlx.DB
	logger logger.Logger
}

// New creates a new database connection
func New(cfg *config.Config, logger logger.Logger) (*Database, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return &Database{
		DB:     db,
		logger: logger,
	}, nil
}

// Ping checks the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// RunMigrations creates the schema. Tables are created directly here; a
// dedicated migration tool is not worth it at this size.
func (d *Database) RunMigrations() error {
	schema := `
	CREATE TABLE IF NOT EXISTS loads (
		id VARCHAR(50) PRIMARY KEY,
		client_id VARCHAR(50) NOT NULL,
		origin_address TEXT NOT NULL,
		destination_address TEXT NOT NULL,
		trailer_type VARCHAR(20) NOT NULL,
		weight_lbs INT NOT NULL,
		pickup_date DATE NOT NULL,
		pickup_time VARCHAR(10),
		delivery_date DATE,
		delivery_time VARCHAR(10),
		delivery_asap BOOLEAN NOT NULL DEFAULT FALSE,
		status VARCHAR(30) NOT NULL DEFAULT 'pending',
		assigned_at TIMESTAMP,
		arrived_at TIMESTAMP,
		loaded_at TIMESTAMP,
		in_transit_at TIMESTAMP,
		arrived_at_delivery_at TIMESTAMP,
		delivered_at TIMESTAMP,
		driver_id VARCHAR(50),
		driver_name VARCHAR(100),
		truck_number VARCHAR(50),
		price_cents BIGINT,
		eta TIMESTAMP,
		client_signature_url TEXT,
		signature_timestamp TIMESTAMP,
		payment_required BOOLEAN NOT NULL DEFAULT FALSE,
		payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
		payment_intent_id VARCHAR(100),
		paid_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_loads_client_id ON loads(client_id);
	CREATE INDEX IF NOT EXISTS idx_loads_driver_id ON loads(driver_id);
	CREATE INDEX IF NOT EXISTS idx_loads_status ON loads(status);

	CREATE TABLE IF NOT EXISTS drivers (
		id VARCHAR(50) PRIMARY KEY,
		account_id VARCHAR(50) NOT NULL,
		account_linked BOOLEAN NOT NULL DEFAULT FALSE,
		invite_email VARCHAR(255) NOT NULL,
		name VARCHAR(100) NOT NULL,
		truck_type VARCHAR(20) NOT NULL,
		truck_number VARCHAR(50) NOT NULL,
		availability_status VARCHAR(20) NOT NULL DEFAULT 'available',
		available_at TIMESTAMP,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_drivers_account_id ON drivers(account_id);
	CREATE INDEX IF NOT EXISTS idx_drivers_availability ON drivers(availability_status);

	CREATE TABLE IF NOT EXISTS clients (
		id VARCHAR(50) PRIMARY KEY,
		account_id VARCHAR(50) NOT NULL,
		account_linked BOOLEAN NOT NULL DEFAULT FALSE,
		invite_email VARCHAR(255) NOT NULL,
		name VARCHAR(100) NOT NULL,
		company_name VARCHAR(100),
		phone VARCHAR(30),
		email VARCHAR(255),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_clients_account_id ON clients(account_id);

	CREATE TABLE IF NOT EXISTS user_roles (
		user_id VARCHAR(50) PRIMARY KEY,
		role VARCHAR(20) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_user_roles_role ON user_roles(role);

	CREATE TABLE IF NOT EXISTS notifications (
		id VARCHAR(50) PRIMARY KEY,
		recipient_id VARCHAR(50) NOT NULL,
		type VARCHAR(40) NOT NULL,
		title VARCHAR(200) NOT NULL,
		message TEXT NOT NULL,
		load_id VARCHAR(50),
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, read);

	CREATE TABLE IF NOT EXISTS push_subscriptions (
		id VARCHAR(50) PRIMARY KEY,
		user_id VARCHAR(50) NOT NULL,
		endpoint TEXT NOT NULL,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, endpoint)
	);

	CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user ON push_subscriptions(user_id);

	CREATE TABLE IF NOT EXISTS outbox_messages (
		id SERIAL PRIMARY KEY,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(50) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMP,
		processing_attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status);
	CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages(aggregate_type, aggregate_id);
	`

	_, err := d.DB.Exec(schema)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}
