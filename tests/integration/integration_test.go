package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"stack_tracker/internal/app"
	"stack_tracker/internal/models"
	"stack_tracker/internal/pkg/auth"
	"stack_tracker/internal/pkg/logger"
	"stack_tracker/internal/service"
	"stack_tracker/internal/storage"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

var testDatabaseURI string

func init() {
	if err := godotenv.Load("../integration/.env"); err != nil {
		log.Println("No .env file found, using default values")
	}

	testDatabaseURI = os.Getenv("TEST_DATABASE_URI")
}

// discardSender stands in for Mailgun; the suite exercises the storage
// round trip, not email delivery.
type discardSender struct{}

func (discardSender) SendConfirmation(ctx context.Context, to, link string) error {
	return nil
}

type IntegrationTestSuite struct {
	suite.Suite
	server *httptest.Server
	client *http.Client
	db     *storage.PostgreSQL

	// suffix keeps names unique across runs against a shared database.
	suffix string
}

func (s *IntegrationTestSuite) SetupSuite() {
	if testDatabaseURI == "" {
		s.T().Skip("TEST_DATABASE_URI not set; skipping integration suite")
	}

	l, err := logger.CreateLogger("info")
	s.Require().NoError(err, "Error creating logger")

	s.db, err = storage.NewPostgreSQL(testDatabaseURI, l)
	s.Require().NoError(err, "Error connecting to test database")
	s.Require().NoError(s.db.InitSchema(context.Background()), "Error initializing schema")

	tokens := auth.NewTokens("integration-secret", "confirm-salt")
	appInstance := app.NewApp(s.db, discardSender{}, tokens, "http://localhost", bcrypt.MinCost, l)
	serviceInstance := service.NewService(appInstance, tokens, "localhost:0", l)

	s.server = httptest.NewServer(serviceInstance.NewRouter())
	s.client = s.server.Client()
	s.suffix = fmt.Sprintf("-%d", time.Now().UnixNano())
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func (s *IntegrationTestSuite) submitForm(method, path string, form url.Values) (*http.Response, string) {
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(form.Encode()))
	s.Require().NoError(err, "Error creating request")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	s.Require().NoError(err, "Error executing request")
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err, "Error reading response body")
	return resp, string(body)
}

func (s *IntegrationTestSuite) listCoins(name string) models.CoinsResponse {
	resp, err := s.client.Get(s.server.URL + "/api/coin?name=" + url.QueryEscape(name))
	s.Require().NoError(err, "Error listing coins")
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode, "Expected status 200 for coin list")

	var parsed models.CoinsResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&parsed), "Error decoding coin list")
	return parsed
}

func (s *IntegrationTestSuite) TestCoinRoundTrip() {
	name := "Gold Krugerrand" + s.suffix

	resp, body := s.submitForm(http.MethodPost, "/api/coin", url.Values{
		"name":          {name},
		"weight":        {"1"},
		"actual_weight": {"1.0909"},
		"metal":         {"gold"},
		"country":       {"South Africa"},
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode, "Expected status 200 for coin creation")
	s.Require().Equal("{\"message\":\"Success\"}\n", body)

	// Creating the same name again must conflict.
	resp, body = s.submitForm(http.MethodPost, "/api/coin", url.Values{
		"name":          {name},
		"weight":        {"1"},
		"actual_weight": {"1.0909"},
		"metal":         {"gold"},
		"country":       {"South Africa"},
	})
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode, "Expected status 400 for duplicate coin")
	s.Require().Contains(body, "A coin with that name already exists")

	listed := s.listCoins(name)
	s.Require().Len(listed.Coins, 1, "Expected exactly one coin after duplicate rejection")
	s.Require().Equal(name, listed.Coins[0].Name)
	s.Require().Equal("gold", listed.Coins[0].Metal)

	// A partial update touches only the supplied fields.
	resp, _ = s.submitForm(http.MethodPut, "/api/coin", url.Values{
		"name":    {name},
		"ngc_url": {"https://ngc.example/krugerrand"},
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode, "Expected status 200 for coin update")

	listed = s.listCoins(name)
	s.Require().Len(listed.Coins, 1)
	s.Require().Equal("https://ngc.example/krugerrand", listed.Coins[0].NGC)
	s.Require().Equal("gold", listed.Coins[0].Metal, "Untouched fields must survive the update")

	resp, _ = s.submitForm(http.MethodDelete, "/api/coin?name="+url.QueryEscape(name), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, "Expected status 200 for coin deletion")
	s.Require().Empty(s.listCoins(name).Coins, "Deleted coin must not be listed")
}

func (s *IntegrationTestSuite) TestItemLifecycleAndCoinProtection() {
	coinName := "Silver Eagle" + s.suffix

	resp, _ := s.submitForm(http.MethodPost, "/api/coin", url.Values{
		"name":          {coinName},
		"weight":        {"1"},
		"actual_weight": {"1"},
		"metal":         {"silver"},
		"country":       {"USA"},
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode, "Expected status 200 for coin creation")

	resp, _ = s.submitForm(http.MethodPost, "/api/item", url.Values{
		"coin_name":      {coinName},
		"purchase_price": {"25.10"},
		"purchase_date":  {"2020-05-04"},
		"purchased_from": {"JM Bullion"},
		"purchase_spot":  {"17.25"},
		"sold":           {"false"},
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode, "Expected status 200 for item creation")

	// Omitting the sold flag is a validation error, not a silent default.
	resp, body := s.submitForm(http.MethodPost, "/api/item", url.Values{
		"coin_name":      {coinName},
		"purchase_price": {"25.10"},
		"purchase_date":  {"2020-05-04"},
		"purchased_from": {"JM Bullion"},
		"purchase_spot":  {"17.25"},
	})
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode, "Expected status 400 without the sold flag")
	s.Require().Contains(body, "field 'sold' is required")

	// The coin now has recorded items and must refuse deletion.
	resp, body = s.submitForm(http.MethodDelete, "/api/coin?name="+url.QueryEscape(coinName), nil)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode, "Expected status 400 deleting a coin with items")
	s.Require().Contains(body, "Coin has recorded items and cannot be deleted")
	s.Require().Len(s.listCoins(coinName).Coins, 1, "Refused deletion must leave the coin in place")

	// Find the item through the full list; ids are assigned by the database.
	listResp, err := s.client.Get(s.server.URL + "/api/item")
	s.Require().NoError(err, "Error listing items")
	var items models.ItemsResponse
	s.Require().NoError(json.NewDecoder(listResp.Body).Decode(&items), "Error decoding item list")
	listResp.Body.Close()

	var itemID int32
	for _, item := range items.Items {
		if item.CoinName == coinName {
			itemID = item.ID
		}
	}
	s.Require().NotZero(itemID, "Created item must appear in the list")

	// Record the sale through a partial update.
	resp, _ = s.submitForm(http.MethodPut, "/api/item", url.Values{
		"id":         {fmt.Sprint(itemID)},
		"sold":       {"true"},
		"sold_price": {"31.50"},
		"sold_date":  {"2021-02-01"},
		"sold_to":    {"local shop"},
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode, "Expected status 200 for item update")

	resp, _ = s.submitForm(http.MethodDelete, fmt.Sprintf("/api/item?id=%d", itemID), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, "Expected status 200 for item deletion")

	// With the item gone the coin can be deleted.
	resp, _ = s.submitForm(http.MethodDelete, "/api/coin?name="+url.QueryEscape(coinName), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, "Expected status 200 for coin deletion")
}

func (s *IntegrationTestSuite) TestItemCreationIsAtomic() {
	missing := "No Such Coin" + s.suffix

	resp, body := s.submitForm(http.MethodPost, "/api/item", url.Values{
		"coin_name":      {missing},
		"purchase_price": {"25.10"},
		"purchase_date":  {"2020-05-04"},
		"purchased_from": {"JM Bullion"},
		"purchase_spot":  {"17.25"},
		"sold":           {"false"},
	})
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode, "Expected status 400 for unknown coin")
	s.Require().Contains(body, "That coin does not exist")

	listResp, err := s.client.Get(s.server.URL + "/api/item")
	s.Require().NoError(err, "Error listing items")
	var items models.ItemsResponse
	s.Require().NoError(json.NewDecoder(listResp.Body).Decode(&items), "Error decoding item list")
	listResp.Body.Close()

	for _, item := range items.Items {
		s.Require().NotEqual(missing, item.CoinName, "Rejected item must not be persisted")
	}
}

func TestIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}
