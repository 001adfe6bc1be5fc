// Package app provides the core business logic for the stack tracker.
// It implements the coin catalogue and item inventory operations and the
// registration/login/confirmation workflow. The package integrates with the
// storage layer for data persistence, the auth package for token handling,
// and the mailer for confirmation delivery.
package app

import (
	"context"
	"database/sql"
	"errors"

	"stack_tracker/internal/mailer"
	"stack_tracker/internal/models"
	"stack_tracker/internal/pkg/auth"
	"stack_tracker/internal/pkg/logger"
	"stack_tracker/internal/pkg/security"
	"stack_tracker/internal/storage"

	"go.uber.org/zap"
)

// Predefined errors returned by the resource and auth operations.
var (
	// ErrCoinNotFound indicates that no coin with the requested name exists.
	ErrCoinNotFound = errors.New("app: coin does not exist")
	// ErrItemNotFound indicates that no item with the requested id exists.
	ErrItemNotFound = errors.New("app: item does not exist")
	// ErrUserExists indicates a registration attempt for an email that is already taken.
	ErrUserExists = errors.New("app: user already exists")
	// ErrBadCredentials covers both unknown email and wrong password so the
	// two causes stay indistinguishable to the client.
	ErrBadCredentials = errors.New("app: incorrect username or password")
	// ErrMissingEmailOrPassword indicates that either the email or password is not provided.
	ErrMissingEmailOrPassword = errors.New("app: missing email or password")
	// ErrUserNotFound indicates that no account with the given email exists.
	ErrUserNotFound = errors.New("app: user does not exist")
	// ErrConfirmationNotSent indicates the account mutation succeeded but the
	// confirmation email could not be delivered within the retry budget.
	ErrConfirmationNotSent = errors.New("app: confirmation email could not be sent")
)

// App encapsulates the application logic and dependencies required to process requests.
type App struct {
	db      storage.Storage
	mail    mailer.Sender
	tokens  *auth.Tokens
	baseURL string
	cost    int
	log     *logger.Logger
}

// NewApp creates and returns a new App instance with its injected dependencies:
// the storage layer, the mail sender, the token manager, the public base URL
// used in confirmation links, and the bcrypt cost.
func NewApp(db storage.Storage, mail mailer.Sender, tokens *auth.Tokens, baseURL string, cost int, log *logger.Logger) *App {
	return &App{db: db, mail: mail, tokens: tokens, baseURL: baseURL, cost: cost, log: log}
}

// GetUser fetches an account by email, satisfying auth.UserLoader so the
// session middleware can resolve cookies against current account state.
func (app *App) GetUser(ctx context.Context, email string) (*models.User, error) {
	return app.db.GetUser(ctx, email)
}

// ListCoins returns the coins matching the optional repeated name filter.
func (app *App) ListCoins(ctx context.Context, names []string) ([]models.Coin, error) {
	return app.db.ListCoins(ctx, names)
}

// CreateCoin persists a new coin type. A duplicate name surfaces as the
// storage layer's unique-violation error.
func (app *App) CreateCoin(ctx context.Context, coin *models.Coin) error {
	if err := app.db.CreateCoin(ctx, coin); err != nil {
		return err
	}
	app.log.Info("coin created", zap.String("name", coin.Name), zap.String("metal", coin.Metal))
	return nil
}

// UpdateCoin applies a partial update to the coin with the given name.
// The name only locates the target and is never altered.
func (app *App) UpdateCoin(ctx context.Context, name string, patch models.CoinPatch) error {
	coin, err := app.db.GetCoinByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCoinNotFound
		}
		return err
	}

	patch.Apply(coin)
	if err := app.db.UpdateCoin(ctx, coin); err != nil {
		return err
	}
	app.log.Info("coin updated", zap.String("name", name))
	return nil
}

// DeleteCoin removes the coin with the given name. Coins with recorded
// items cannot be deleted; that surfaces as the storage layer's
// foreign-key-violation error.
func (app *App) DeleteCoin(ctx context.Context, name string) error {
	if err := app.db.DeleteCoin(ctx, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCoinNotFound
		}
		return err
	}
	app.log.Info("coin deleted", zap.String("name", name))
	return nil
}

// ListItems returns the items matching the optional repeated id filter.
func (app *App) ListItems(ctx context.Context, ids []int32) ([]models.Item, error) {
	return app.db.ListItems(ctx, ids)
}

// CreateItem resolves the coin name to its id and persists a new item.
// An unknown coin name fails with ErrCoinNotFound and persists nothing.
func (app *App) CreateItem(ctx context.Context, coinName string, item *models.Item) error {
	coin, err := app.db.GetCoinByName(ctx, coinName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCoinNotFound
		}
		return err
	}

	item.CoinID = coin.ID
	item.CoinName = coin.Name
	if err := app.db.CreateItem(ctx, item); err != nil {
		return err
	}
	app.log.Info("item created", zap.Int32("id", item.ID), zap.String("coin", coin.Name))
	return nil
}

// UpdateItem applies a partial update to the item with the given id.
func (app *App) UpdateItem(ctx context.Context, id int32, patch models.ItemPatch) error {
	item, err := app.db.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrItemNotFound
		}
		return err
	}

	patch.Apply(item)
	if err := app.db.UpdateItem(ctx, item); err != nil {
		return err
	}
	app.log.Info("item updated", zap.Int32("id", id))
	return nil
}

// DeleteItem removes the item with the given id.
func (app *App) DeleteItem(ctx context.Context, id int32) error {
	if err := app.db.DeleteItem(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrItemNotFound
		}
		return err
	}
	app.log.Info("item deleted", zap.Int32("id", id))
	return nil
}

// Register creates an unconfirmed account, emails a confirmation link, and
// returns a session token so the new account starts authenticated.
// When the account is created but the email cannot be delivered, the token
// is returned together with ErrConfirmationNotSent.
func (app *App) Register(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", ErrMissingEmailOrPassword
	}

	if _, err := app.db.GetUser(ctx, email); err == nil {
		return "", ErrUserExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	hash, err := security.HashPassword(password, app.cost)
	if err != nil {
		return "", err
	}

	user := &models.User{
		Email:         email,
		PasswordHash:  hash,
		Authenticated: true,
	}
	if err := app.db.CreateUser(ctx, user); err != nil {
		return "", err
	}
	app.log.Info("user registered", zap.String("email", email))

	session, err := app.tokens.GenerateSession(email)
	if err != nil {
		return "", err
	}

	if err := app.sendConfirmation(ctx, email); err != nil {
		app.log.Error("confirmation email not delivered", zap.String("email", email), zap.Error(err))
		return session, ErrConfirmationNotSent
	}

	return session, nil
}

// sendConfirmation issues a fresh confirmation token and mails the link.
func (app *App) sendConfirmation(ctx context.Context, email string) error {
	token, err := app.tokens.GenerateConfirmation(email)
	if err != nil {
		return err
	}
	return app.mail.SendConfirmation(ctx, email, app.baseURL+"/confirm/"+token)
}

// Login verifies the credentials and starts an authenticated session.
// Unknown email and wrong password produce the same error.
func (app *App) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", ErrMissingEmailOrPassword
	}

	user, err := app.db.GetUser(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrBadCredentials
		}
		return "", err
	}

	if err := security.CheckPassword(user.PasswordHash, password); err != nil {
		return "", ErrBadCredentials
	}

	user.Authenticated = true
	if err := app.db.UpdateUser(ctx, user); err != nil {
		return "", err
	}
	app.log.Info("user logged in", zap.String("email", email))

	return app.tokens.GenerateSession(email)
}

// Logout clears the server-side session flag, invalidating any outstanding
// session tokens for the account.
func (app *App) Logout(ctx context.Context, email string) error {
	user, err := app.db.GetUser(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	user.Authenticated = false
	if err := app.db.UpdateUser(ctx, user); err != nil {
		return err
	}
	app.log.Info("user logged out", zap.String("email", email))
	return nil
}

// Confirm validates a confirmation token and marks the bound account as
// confirmed. It reports whether the account was already confirmed.
// Tampered and expired tokens both fail with auth.ErrInvalidToken.
func (app *App) Confirm(ctx context.Context, token string) (alreadyConfirmed bool, err error) {
	email, err := app.tokens.ParseConfirmation(token)
	if err != nil {
		return false, err
	}

	user, err := app.db.GetUser(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, auth.ErrInvalidToken
		}
		return false, err
	}

	if user.Confirmed {
		return true, nil
	}

	user.Confirmed = true
	if err := app.db.UpdateUser(ctx, user); err != nil {
		return false, err
	}
	app.log.Info("user confirmed", zap.String("email", email))
	return false, nil
}

// ResendConfirmation regenerates and re-sends the confirmation link through
// the same path registration uses.
func (app *App) ResendConfirmation(ctx context.Context, email string) error {
	if err := app.sendConfirmation(ctx, email); err != nil {
		app.log.Error("confirmation email not delivered", zap.String("email", email), zap.Error(err))
		return ErrConfirmationNotSent
	}
	return nil
}
