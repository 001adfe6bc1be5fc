// Package storage provides primitives for connecting to and interacting with data storage systems.
// It defines the Storage interface along with a PostgreSQL implementation that manages the coin
// catalogue, the item inventory, and user accounts.
package storage

import (
	"context"
	"database/sql"
	"time"

	"stack_tracker/internal/models"
	"stack_tracker/internal/pkg/logger"

	"github.com/shopspring/decimal"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	listCoinsQuery      = `SELECT id, name, weight, actual_weight, metal, country, ngc_url, pcgs_url, jm_url, apmex_url, shinybars_url, provident_url, current_ngc, current_pcgs, current_jm, current_apmex, current_shinybars, current_provident FROM content.coins ORDER BY id;`
	listCoinsByNameQuery = `SELECT id, name, weight, actual_weight, metal, country, ngc_url, pcgs_url, jm_url, apmex_url, shinybars_url, provident_url, current_ngc, current_pcgs, current_jm, current_apmex, current_shinybars, current_provident FROM content.coins WHERE name = ANY($1) ORDER BY id;`
	getCoinByNameQuery  = `SELECT id, name, weight, actual_weight, metal, country, ngc_url, pcgs_url, jm_url, apmex_url, shinybars_url, provident_url, current_ngc, current_pcgs, current_jm, current_apmex, current_shinybars, current_provident FROM content.coins WHERE name = $1;`
	createCoinQuery     = `INSERT INTO content.coins (name, weight, actual_weight, metal, country, ngc_url, pcgs_url, jm_url, apmex_url, shinybars_url, provident_url) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id;`
	updateCoinQuery     = `UPDATE content.coins SET weight = $2, actual_weight = $3, metal = $4, country = $5, ngc_url = $6, pcgs_url = $7, jm_url = $8, apmex_url = $9, shinybars_url = $10, provident_url = $11, current_ngc = $12, current_pcgs = $13, current_jm = $14, current_apmex = $15, current_shinybars = $16, current_provident = $17 WHERE id = $1;`
	deleteCoinQuery     = `DELETE FROM content.coins WHERE name = $1;`

	listItemsQuery     = `SELECT i.id, i.coin_id, c.name, i.year, i.purchase_price, i.purchase_date, i.purchased_from, i.purchase_spot, i.sold, i.sold_price, i.sold_date, i.sold_to, i.sold_spot, i.shipping_charged, i.shipping_cost FROM content.items i JOIN content.coins c ON i.coin_id = c.id ORDER BY i.id;`
	listItemsByIDQuery = `SELECT i.id, i.coin_id, c.name, i.year, i.purchase_price, i.purchase_date, i.purchased_from, i.purchase_spot, i.sold, i.sold_price, i.sold_date, i.sold_to, i.sold_spot, i.shipping_charged, i.shipping_cost FROM content.items i JOIN content.coins c ON i.coin_id = c.id WHERE i.id = ANY($1) ORDER BY i.id;`
	getItemQuery       = `SELECT i.id, i.coin_id, c.name, i.year, i.purchase_price, i.purchase_date, i.purchased_from, i.purchase_spot, i.sold, i.sold_price, i.sold_date, i.sold_to, i.sold_spot, i.shipping_charged, i.shipping_cost FROM content.items i JOIN content.coins c ON i.coin_id = c.id WHERE i.id = $1;`
	createItemQuery    = `INSERT INTO content.items (coin_id, year, purchase_price, purchase_date, purchased_from, purchase_spot, sold, sold_price, sold_date, sold_to, sold_spot, shipping_charged, shipping_cost) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id;`
	updateItemQuery    = `UPDATE content.items SET year = $2, purchase_price = $3, purchase_date = $4, purchased_from = $5, purchase_spot = $6, sold = $7, sold_price = $8, sold_date = $9, sold_to = $10, sold_spot = $11, shipping_charged = $12, shipping_cost = $13 WHERE id = $1;`
	deleteItemQuery    = `DELETE FROM content.items WHERE id = $1;`

	getUserQuery    = `SELECT email, password_hash, is_admin, confirmed, authenticated FROM content.users WHERE email = $1;`
	createUserQuery = `INSERT INTO content.users (email, password_hash, is_admin, confirmed, authenticated) VALUES ($1, $2, $3, $4, $5);`
	updateUserQuery = `UPDATE content.users SET password_hash = $2, is_admin = $3, confirmed = $4, authenticated = $5 WHERE email = $1;`
	deleteUserQuery = `DELETE FROM content.users WHERE email = $1;`
)

// createSchemaStatements bootstraps an empty application database.
// The items→coins foreign key is RESTRICT so a coin with recorded items
// cannot be deleted.
var createSchemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS content;`,
	`CREATE TABLE IF NOT EXISTS content.coins (
		id SERIAL PRIMARY KEY,
		name VARCHAR(60) NOT NULL UNIQUE,
		weight NUMERIC NOT NULL CHECK (weight > 0),
		actual_weight NUMERIC NOT NULL CHECK (actual_weight > 0),
		metal VARCHAR(15) NOT NULL,
		country VARCHAR(30) NOT NULL,
		ngc_url VARCHAR(200) NOT NULL DEFAULT '',
		pcgs_url VARCHAR(200) NOT NULL DEFAULT '',
		jm_url VARCHAR(200) NOT NULL DEFAULT '',
		apmex_url VARCHAR(200) NOT NULL DEFAULT '',
		shinybars_url VARCHAR(200) NOT NULL DEFAULT '',
		provident_url VARCHAR(200) NOT NULL DEFAULT '',
		current_ngc NUMERIC,
		current_pcgs NUMERIC,
		current_jm NUMERIC,
		current_apmex NUMERIC,
		current_shinybars NUMERIC,
		current_provident NUMERIC
	);`,
	`CREATE TABLE IF NOT EXISTS content.items (
		id SERIAL PRIMARY KEY,
		coin_id INTEGER NOT NULL REFERENCES content.coins(id) ON DELETE RESTRICT,
		year INTEGER,
		purchase_price NUMERIC NOT NULL,
		purchase_date DATE NOT NULL,
		purchased_from VARCHAR(60) NOT NULL,
		purchase_spot NUMERIC NOT NULL,
		sold BOOLEAN NOT NULL DEFAULT FALSE,
		sold_price NUMERIC,
		sold_date DATE,
		sold_to VARCHAR(60),
		sold_spot NUMERIC,
		shipping_charged NUMERIC,
		shipping_cost NUMERIC
	);`,
	`CREATE TABLE IF NOT EXISTS content.users (
		email VARCHAR(254) PRIMARY KEY,
		password_hash TEXT NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		authenticated BOOLEAN NOT NULL DEFAULT FALSE
	);`,
}

// Storage defines the methods required for data storage operations.
type Storage interface {
	// Close closes the database connection.
	Close()

	// InitSchema creates the application schema if it does not exist.
	InitSchema(ctx context.Context) error

	// Coin catalogue methods.
	ListCoins(ctx context.Context, names []string) ([]models.Coin, error)
	GetCoinByName(ctx context.Context, name string) (*models.Coin, error)
	CreateCoin(ctx context.Context, coin *models.Coin) error
	UpdateCoin(ctx context.Context, coin *models.Coin) error
	DeleteCoin(ctx context.Context, name string) error

	// Item inventory methods.
	ListItems(ctx context.Context, ids []int32) ([]models.Item, error)
	GetItem(ctx context.Context, id int32) (*models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	UpdateItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, id int32) error

	// User account methods.
	GetUser(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, email string) error
}

// PostgreSQL implements the Storage interface using a PostgreSQL database.
type PostgreSQL struct {
	db  *sql.DB        // Connection to the database.
	log *logger.Logger // Logger for recording events and errors.
}

// NewPostgreSQL creates a new PostgreSQL instance with the provided connection string and logger.
// It opens the connection and pings the database to ensure connectivity.
func NewPostgreSQL(configDBString string, l *logger.Logger) (*PostgreSQL, error) {
	db, err := sql.Open("pgx", configDBString)
	if err != nil {
		l.Sugar().Errorf("Failed to open a database: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	const defaultTimeout = 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		l.Sugar().Errorf("Database ping failed: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	return &PostgreSQL{db: db, log: l}, nil
}

// Close closes the database connection if it is open.
func (postgresql *PostgreSQL) Close() {
	if postgresql.db != nil {
		postgresql.db.Close()
	}
}

// InitSchema creates the content schema and its tables when absent.
func (postgresql *PostgreSQL) InitSchema(ctx context.Context) error {
	for _, stmt := range createSchemaStatements {
		if _, err := postgresql.db.ExecContext(ctx, stmt); err != nil {
			postgresql.log.Sugar().Errorf("Failed to execute a schema statement: %s", err)
			return err
		}
	}
	return nil
}

// scanCoin reads one coin row from the given scanner.
func scanCoin(row interface{ Scan(dest ...any) error }) (*models.Coin, error) {
	coin := &models.Coin{}
	err := row.Scan(&coin.ID, &coin.Name, &coin.Weight, &coin.ActualWeight, &coin.Metal, &coin.Country,
		&coin.NGCURL, &coin.PCGSURL, &coin.JMURL, &coin.ApmexURL, &coin.ShinybarsURL, &coin.ProvidentURL,
		&coin.CurrentNGC, &coin.CurrentPCGS, &coin.CurrentJM, &coin.CurrentApmex, &coin.CurrentShinybars, &coin.CurrentProvident)
	if err != nil {
		return nil, err
	}
	return coin, nil
}

// ListCoins returns the coins matching the given names, or every coin when
// the filter is empty.
func (postgresql *PostgreSQL) ListCoins(ctx context.Context, names []string) ([]models.Coin, error) {
	var rows *sql.Rows
	var err error
	if len(names) == 0 {
		rows, err = postgresql.db.QueryContext(ctx, listCoinsQuery)
	} else {
		rows, err = postgresql.db.QueryContext(ctx, listCoinsByNameQuery, names)
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query listCoinsQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	const initialCoinCapacity = 10
	coins := make([]models.Coin, 0, initialCoinCapacity)

	for rows.Next() {
		coin, err := scanCoin(rows)
		if err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan coin row in ListCoins method: %s", err)
			return nil, err
		}
		coins = append(coins, *coin)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in ListCoins method: %s", err)
		return coins, err
	}

	return coins, nil
}

// GetCoinByName retrieves a single coin by its unique name.
func (postgresql *PostgreSQL) GetCoinByName(ctx context.Context, name string) (*models.Coin, error) {
	coin, err := scanCoin(postgresql.db.QueryRowContext(ctx, getCoinByNameQuery, name))
	if err != nil {
		if err != sql.ErrNoRows {
			postgresql.log.Sugar().Errorf("Failed to execute a query getCoinByNameQuery: %s", err)
		}
		return nil, err
	}
	return coin, nil
}

// CreateCoin inserts a new coin and fills in its generated id.
// A duplicate name surfaces as a unique-violation PgError.
func (postgresql *PostgreSQL) CreateCoin(ctx context.Context, coin *models.Coin) error {
	err := postgresql.db.QueryRowContext(ctx, createCoinQuery,
		coin.Name, coin.Weight, coin.ActualWeight, coin.Metal, coin.Country,
		coin.NGCURL, coin.PCGSURL, coin.JMURL, coin.ApmexURL, coin.ShinybarsURL, coin.ProvidentURL).Scan(&coin.ID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createCoinQuery: %s", err)
		return err
	}
	return nil
}

// UpdateCoin overwrites every mutable column of the coin row identified by
// coin.ID. The caller is expected to have applied a patch to a fetched coin.
func (postgresql *PostgreSQL) UpdateCoin(ctx context.Context, coin *models.Coin) error {
	result, err := postgresql.db.ExecContext(ctx, updateCoinQuery,
		coin.ID, coin.Weight, coin.ActualWeight, coin.Metal, coin.Country,
		coin.NGCURL, coin.PCGSURL, coin.JMURL, coin.ApmexURL, coin.ShinybarsURL, coin.ProvidentURL,
		coin.CurrentNGC, coin.CurrentPCGS, coin.CurrentJM, coin.CurrentApmex, coin.CurrentShinybars, coin.CurrentProvident)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query updateCoinQuery: %s", err)
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute RowsAffected in updateCoinQuery: %s", err)
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// DeleteCoin removes the coin with the given name. A missing coin returns
// sql.ErrNoRows; dependent items surface as a foreign-key-violation PgError.
func (postgresql *PostgreSQL) DeleteCoin(ctx context.Context, name string) error {
	result, err := postgresql.db.ExecContext(ctx, deleteCoinQuery, name)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query deleteCoinQuery: %s", err)
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute RowsAffected in deleteCoinQuery: %s", err)
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// scanItem reads one item row, converting nullable columns to pointers.
func scanItem(row interface{ Scan(dest ...any) error }) (*models.Item, error) {
	item := &models.Item{}
	var year sql.NullInt32
	var soldPrice, soldSpot, shippingCharged, shippingCost decimal.NullDecimal
	var soldDate sql.NullTime
	var soldTo sql.NullString

	err := row.Scan(&item.ID, &item.CoinID, &item.CoinName, &year,
		&item.PurchasePrice, &item.PurchaseDate, &item.PurchasedFrom, &item.PurchaseSpot,
		&item.Sold, &soldPrice, &soldDate, &soldTo, &soldSpot, &shippingCharged, &shippingCost)
	if err != nil {
		return nil, err
	}

	if year.Valid {
		item.Year = &year.Int32
	}
	if soldPrice.Valid {
		item.SoldPrice = &soldPrice.Decimal
	}
	if soldDate.Valid {
		item.SoldDate = &soldDate.Time
	}
	if soldTo.Valid {
		item.SoldTo = &soldTo.String
	}
	if soldSpot.Valid {
		item.SoldSpot = &soldSpot.Decimal
	}
	if shippingCharged.Valid {
		item.ShippingCharged = &shippingCharged.Decimal
	}
	if shippingCost.Valid {
		item.ShippingCost = &shippingCost.Decimal
	}

	return item, nil
}

// nullDecimal converts an optional decimal to its database representation.
func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// nullTime converts an optional time to its database representation.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts an optional string to its database representation.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullInt32 converts an optional int32 to its database representation.
func nullInt32(i *int32) sql.NullInt32 {
	if i == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: *i, Valid: true}
}

// ListItems returns the items matching the given ids, or every item when
// the filter is empty. Each record carries the name of its coin type.
func (postgresql *PostgreSQL) ListItems(ctx context.Context, ids []int32) ([]models.Item, error) {
	var rows *sql.Rows
	var err error
	if len(ids) == 0 {
		rows, err = postgresql.db.QueryContext(ctx, listItemsQuery)
	} else {
		rows, err = postgresql.db.QueryContext(ctx, listItemsByIDQuery, ids)
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query listItemsQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	const initialItemCapacity = 10
	items := make([]models.Item, 0, initialItemCapacity)

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan item row in ListItems method: %s", err)
			return nil, err
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in ListItems method: %s", err)
		return items, err
	}

	return items, nil
}

// GetItem retrieves a single item by id.
func (postgresql *PostgreSQL) GetItem(ctx context.Context, id int32) (*models.Item, error) {
	item, err := scanItem(postgresql.db.QueryRowContext(ctx, getItemQuery, id))
	if err != nil {
		if err != sql.ErrNoRows {
			postgresql.log.Sugar().Errorf("Failed to execute a query getItemQuery: %s", err)
		}
		return nil, err
	}
	return item, nil
}

// CreateItem inserts a new inventory item and fills in its generated id.
func (postgresql *PostgreSQL) CreateItem(ctx context.Context, item *models.Item) error {
	err := postgresql.db.QueryRowContext(ctx, createItemQuery,
		item.CoinID, nullInt32(item.Year), item.PurchasePrice, item.PurchaseDate, item.PurchasedFrom, item.PurchaseSpot,
		item.Sold, nullDecimal(item.SoldPrice), nullTime(item.SoldDate), nullString(item.SoldTo), nullDecimal(item.SoldSpot),
		nullDecimal(item.ShippingCharged), nullDecimal(item.ShippingCost)).Scan(&item.ID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createItemQuery: %s", err)
		return err
	}
	return nil
}

// UpdateItem overwrites every mutable column of the item row identified by
// item.ID. The caller is expected to have applied a patch to a fetched item.
func (postgresql *PostgreSQL) UpdateItem(ctx context.Context, item *models.Item) error {
	result, err := postgresql.db.ExecContext(ctx, updateItemQuery,
		item.ID, nullInt32(item.Year), item.PurchasePrice, item.PurchaseDate, item.PurchasedFrom, item.PurchaseSpot,
		item.Sold, nullDecimal(item.SoldPrice), nullTime(item.SoldDate), nullString(item.SoldTo), nullDecimal(item.SoldSpot),
		nullDecimal(item.ShippingCharged), nullDecimal(item.ShippingCost))
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query updateItemQuery: %s", err)
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute RowsAffected in updateItemQuery: %s", err)
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// DeleteItem removes the item with the given id, returning sql.ErrNoRows
// when no such item exists.
func (postgresql *PostgreSQL) DeleteItem(ctx context.Context, id int32) error {
	result, err := postgresql.db.ExecContext(ctx, deleteItemQuery, id)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query deleteItemQuery: %s", err)
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute RowsAffected in deleteItemQuery: %s", err)
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// GetUser retrieves the account with the given email.
func (postgresql *PostgreSQL) GetUser(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := postgresql.db.QueryRowContext(ctx, getUserQuery, email).Scan(
		&user.Email, &user.PasswordHash, &user.IsAdmin, &user.Confirmed, &user.Authenticated)
	if err != nil {
		if err != sql.ErrNoRows {
			postgresql.log.Sugar().Errorf("Failed to execute a query getUserQuery: %s", err)
		}
		return nil, err
	}
	return user, nil
}

// CreateUser inserts a new account row.
func (postgresql *PostgreSQL) CreateUser(ctx context.Context, user *models.User) error {
	_, err := postgresql.db.ExecContext(ctx, createUserQuery,
		user.Email, user.PasswordHash, user.IsAdmin, user.Confirmed, user.Authenticated)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createUserQuery: %s", err)
		return err
	}
	return nil
}

// UpdateUser overwrites the mutable columns of the account row.
func (postgresql *PostgreSQL) UpdateUser(ctx context.Context, user *models.User) error {
	result, err := postgresql.db.ExecContext(ctx, updateUserQuery,
		user.Email, user.PasswordHash, user.IsAdmin, user.Confirmed, user.Authenticated)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query updateUserQuery: %s", err)
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute RowsAffected in updateUserQuery: %s", err)
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// DeleteUser removes the account with the given email.
func (postgresql *PostgreSQL) DeleteUser(ctx context.Context, email string) error {
	result, err := postgresql.db.ExecContext(ctx, deleteUserQuery, email)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query deleteUserQuery: %s", err)
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute RowsAffected in deleteUserQuery: %s", err)
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}
