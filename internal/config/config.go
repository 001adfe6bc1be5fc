// Package config loads the application configuration from the environment.
// A .env file is honored when present so local development does not require
// exporting every variable by hand.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

var (
	LogLevel         string
	ServerRunAddress string
	DatabaseURI      string

	// SecretKey signs session and confirmation tokens. There is no
	// fallback value; the entrypoint refuses to start without it.
	SecretKey string
	// ConfirmationSalt namespaces confirmation tokens so a session token
	// can never be replayed as a confirmation link.
	ConfirmationSalt string
	// HashingCost is the bcrypt cost used for password hashing.
	HashingCost int

	MailgunKey    string
	MailgunDomain string
	MailFrom      string

	// BaseURL is the externally reachable address used to build
	// confirmation links.
	BaseURL string
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	LogLevel = os.Getenv("LOG_LEVEL")
	if LogLevel == "" {
		LogLevel = "info"
	}

	ServerRunAddress = os.Getenv("SERVER_RUN_ADDRESS")
	if ServerRunAddress == "" {
		ServerRunAddress = "0.0.0.0:8080"
	}

	DatabaseURI = os.Getenv("DATABASE_URI")
	if DatabaseURI == "" {
		DatabaseURI = "host=db user=postgres password=password dbname=stacktracker sslmode=disable"
	}

	SecretKey = os.Getenv("SECRET_KEY")

	ConfirmationSalt = os.Getenv("SECURITY_SALT")
	if ConfirmationSalt == "" {
		ConfirmationSalt = "email-confirmation"
	}

	HashingCost = bcrypt.DefaultCost
	if rounds := os.Getenv("HASHING_ROUNDS"); rounds != "" {
		if parsed, err := strconv.Atoi(rounds); err == nil {
			HashingCost = parsed
		}
	}

	MailgunKey = os.Getenv("MAILGUN_API_KEY")
	MailgunDomain = os.Getenv("MAILGUN_DOMAIN")
	MailFrom = os.Getenv("MAIL_FROM")
	if MailFrom == "" && MailgunDomain != "" {
		MailFrom = "stacktracker@" + MailgunDomain
	}

	BaseURL = os.Getenv("BASE_URL")
	if BaseURL == "" {
		BaseURL = "http://localhost:8080"
	}
}
