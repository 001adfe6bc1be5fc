// Package service contains the HTTP layer of the stack tracker: the JSON
// API for the coin and item resources, the server-rendered pages, and the
// router wiring. Handlers parse and coerce request arguments, call the
// business logic in the app package, translate errors (including
// database-specific errors), and write the appropriate responses.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"stack_tracker/internal/app"
	"stack_tracker/internal/models"
	"stack_tracker/internal/pkg/logger"

	pgconn "github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	pgx_pgconn "github.com/jackc/pgx/v5/pgconn"
)

const requestTimeout = 10 * time.Second

// handlers aggregates dependencies needed by HTTP handlers,
// including the application business logic and logger.
type handlers struct {
	app *app.App
	log *logger.Logger
}

// newHandlers initializes a new handlers instance with the provided app and logger dependencies.
func newHandlers(app *app.App, l *logger.Logger) *handlers {
	return &handlers{app: app, log: l}
}

// writeMessage writes the shared {"message": ...} payload with the given status code.
func writeMessage(res http.ResponseWriter, message string, statusCode int) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.MessageResponse{Message: message})
}

// writeJSON marshals the payload and writes it with a 200 status.
func writeJSON(res http.ResponseWriter, payload any) {
	result, err := json.Marshal(payload)
	if err != nil {
		writeMessage(res, err.Error(), http.StatusInternalServerError)
		return
	}
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(http.StatusOK)
	res.Write(result)
}

// pgErrorCode extracts the PostgreSQL error code from an error chain, if
// present. Both pgconn generations are checked since the driver stack has
// carried both.
func pgErrorCode(err error) string {
	var pgErr *pgx_pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pgErrV1 *pgconn.PgError
	if errors.As(err, &pgErrV1) {
		return pgErrV1.Code
	}
	return ""
}

// listCoinsHandler returns the coins matching the optional repeated name
// filter, or every coin when unfiltered. It always answers 200, possibly
// with an empty list.
func (handlers *handlers) listCoinsHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	form, err := newFormReader(req)
	if err != nil {
		writeMessage(res, err.Error(), http.StatusBadRequest)
		return
	}

	coins, err := handlers.app.ListCoins(ctx, form.list("name"))
	if err != nil {
		writeMessage(res, err.Error(), http.StatusInternalServerError)
		return
	}

	records := make([]models.CoinRecord, 0, len(coins))
	for i := range coins {
		records = append(records, models.NewCoinRecord(&coins[i]))
	}
	writeJSON(res, models.CoinsResponse{Coins: records})
}

// createCoinHandler persists a new coin type. Validation failures and
// duplicate names answer 400.
func (handlers *handlers) createCoinHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	form, err := newFormReader(req)
	if err != nil {
		writeMessage(res, err.Error(), http.StatusBadRequest)
		return
	}

	coin, err := parseNewCoin(form)
	if err != nil {
		writeMessage(res, "ERROR: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := handlers.app.CreateCoin(ctx, coin); err != nil {
		if pgErrorCode(err) == pgerrcode.UniqueViolation {
			writeMessage(res, "ERROR: A coin with that name already exists", http.StatusBadRequest)
			return
		}
		writeMessage(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeMessage(res, "Success", http.StatusOK)
}

// updateCoinHandler applies a partial update to the coin named in the
// request. Only present, truthy fields overwrite stored attributes.
func (handlers *handlers) updateCoinHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	form, err := newFormReader(req)
	if err != nil {
		writeMessage(res, err.Error(), http.StatusBadRequest)
		return
	}

	name, patch, err := parseCoinPatch(form)
	if err != nil {
		writeMessage(res, "ERROR: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := handlers.app.UpdateCoin(ctx, name, patch); err != nil {
		if errors.Is(err, app.ErrCoinNotFound) {
			writeMessage(res, "ERROR: That coin does not exist", http.StatusBadRequest)
			return
		}
		writeMessage(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeMessage(res, "Success", http.StatusOK)
}

// deleteCoinHandler removes the coin named in the request. Coins with
// recorded items are protected by the foreign key and answer 400.
func (handlers *handlers) deleteCoinHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	form, err := newFormReader(req)
	if err != nil {
		writeMessage(res, err.Error(), http.StatusBadRequest)
		return
	}

	name := form.str("name")
	if err := form.Err(); err != nil {
		writeMessage(res, "ERROR: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := handlers.app.DeleteCoin(ctx, name); err != nil {
		if errors.Is(err, app.ErrCoinNotFound) {
			writeMessage(res, "ERROR: Coin does not exist", http.StatusBadRequest)
			return
		}
		if pgErrorCode(err) == pgerrcode.ForeignKeyViolation {
			writeMessage(res, "ERROR: Coin has recorded items and cannot be deleted", http.StatusBadRequest)
			return
		}
		writeMessage(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeMessage(res, "Success", http.StatusOK)
}

// listItemsHandler returns the items matching the optional repeated id
// filter, or every item when unfiltered, with the full field projection.
func (handlers *handlers) listItemsHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	form, err := newFormReader(req)
	if err != nil {
		writeMessage(res, err.Error(), http.StatusBadRequest)
		return
	}

	ids := form.intList("id")
	if err := form.Err(); err != nil {
		writeMessage(res, "ERROR: "+err.Error(), http.StatusBadRequest)
		return
	}

	items, err := handlers.app.ListItems(ctx, ids)
	if err != nil {
		writeMessage(res, err.Error(), http.StatusInternalServerError)
		return
	}

	records := make([]models.ItemRecord, 0, len(items))
	for i := range items {
		records = append(records, models.NewItemRecord(&items[i]))
	}
	writeJSON(res, models.ItemsResponse{Items: records})
}

// createItemHandler persists a new inventory item, resolving the supplied
// coin name to its coin type. An unknown coin name answers 400 and
// persists nothing.
func (handlers *handlers) createItemHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	form, err := newFormReader(req)
	if err != nil {
		writeMessage(res, err.Error(), http.StatusBadRequest)
		return
	}

	coinName, item, err := parseNewItem(form)
	if err != nil {
		writeMessage(res, "ERROR: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := handlers.app.CreateItem(ctx, coinName, item); err != nil {
		if errors.Is(err, app.ErrCoinNotFound) {
			writeMessage(res, "ERROR: That coin does not exist", http.StatusBadRequest)
			return
		}
		writeMessage(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeMessage(res, "Success", http.StatusOK)
}

// updateItemHandler applies a partial update to the item identified by id.
func (handlers *handlers) updateItemHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	form, err := newFormReader(req)
	if err != nil {
		writeMessage(res, err.Error(), http.StatusBadRequest)
		return
	}

	id, patch, err := parseItemPatch(form)
	if err != nil {
		writeMessage(res, "ERROR: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := handlers.app.UpdateItem(ctx, id, patch); err != nil {
		if errors.Is(err, app.ErrItemNotFound) {
			writeMessage(res, "ERROR: That item does not exist", http.StatusBadRequest)
			return
		}
		writeMessage(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeMessage(res, "Success", http.StatusOK)
}

// deleteItemHandler removes the item identified by id.
func (handlers *handlers) deleteItemHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	form, err := newFormReader(req)
	if err != nil {
		writeMessage(res, err.Error(), http.StatusBadRequest)
		return
	}

	id := form.intReq("id")
	if err := form.Err(); err != nil {
		writeMessage(res, "ERROR: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := handlers.app.DeleteItem(ctx, id); err != nil {
		if errors.Is(err, app.ErrItemNotFound) {
			writeMessage(res, "ERROR: That item does not exist", http.StatusBadRequest)
			return
		}
		writeMessage(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeMessage(res, "Success", http.StatusOK)
}
