// Command manage is the operator CLI: schema bootstrap and user
// administration against the same storage layer the server uses.
//
// Usage:
//
//	manage initdb
//	manage dumpconfig
//	manage adduser <email> <password>
//	manage removeuser <email>
//	manage admin <email>
//	manage unadmin <email>
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"stack_tracker/internal/config"
	"stack_tracker/internal/models"
	"stack_tracker/internal/pkg/logger"
	"stack_tracker/internal/pkg/security"
	"stack_tracker/internal/storage"
)

const commandTimeout = 30 * time.Second

func usage() {
	fmt.Fprintln(os.Stderr, "usage: manage <initdb|dumpconfig|adduser|removeuser|admin|unadmin> [args]")
	os.Exit(2)
}

// redacted reports whether a secret is present without printing it.
func redacted(value string) string {
	if value == "" {
		return "(unset)"
	}
	return "(set)"
}

// dumpConfig prints the effective configuration. Credentials and signing
// material are reported as set or unset, never echoed.
func dumpConfig() {
	fmt.Println("LOG_LEVEL          =", config.LogLevel)
	fmt.Println("SERVER_RUN_ADDRESS =", config.ServerRunAddress)
	fmt.Println("DATABASE_URI       =", redacted(config.DatabaseURI))
	fmt.Println("SECRET_KEY         =", redacted(config.SecretKey))
	fmt.Println("SECURITY_SALT      =", config.ConfirmationSalt)
	fmt.Println("HASHING_ROUNDS     =", config.HashingCost)
	fmt.Println("MAILGUN_API_KEY    =", redacted(config.MailgunKey))
	fmt.Println("MAILGUN_DOMAIN     =", config.MailgunDomain)
	fmt.Println("MAIL_FROM          =", config.MailFrom)
	fmt.Println("BASE_URL           =", config.BaseURL)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	// No database connection needed to inspect the configuration.
	if os.Args[1] == "dumpconfig" {
		dumpConfig()
		return
	}

	l, err := logger.CreateLogger(config.LogLevel)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}

	db, err := storage.NewPostgreSQL(config.DatabaseURI, l)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch os.Args[1] {
	case "initdb":
		if err := db.InitSchema(ctx); err != nil {
			log.Fatal(err)
		}
		fmt.Println("Database initialized")

	case "adduser":
		if len(os.Args) != 4 {
			usage()
		}
		email, password := os.Args[2], os.Args[3]
		if _, err := db.GetUser(ctx, email); err == nil {
			fmt.Println("User already exists")
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			log.Fatal(err)
		}
		hash, err := security.HashPassword(password, config.HashingCost)
		if err != nil {
			log.Fatal(err)
		}
		user := &models.User{Email: email, PasswordHash: hash, Confirmed: true}
		if err := db.CreateUser(ctx, user); err != nil {
			log.Fatal(err)
		}
		fmt.Println("User added")

	case "removeuser":
		if len(os.Args) != 3 {
			usage()
		}
		if err := db.DeleteUser(ctx, os.Args[2]); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				fmt.Println("No such user")
				return
			}
			log.Fatal(err)
		}
		fmt.Println("Deleted user")

	case "admin", "unadmin":
		if len(os.Args) != 3 {
			usage()
		}
		email := os.Args[2]
		user, err := db.GetUser(ctx, email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				fmt.Println("That is not a valid user")
				return
			}
			log.Fatal(err)
		}
		user.IsAdmin = os.Args[1] == "admin"
		if err := db.UpdateUser(ctx, user); err != nil {
			log.Fatal(err)
		}
		if user.IsAdmin {
			fmt.Printf("User %s is now an admin\n", email)
		} else {
			fmt.Printf("User %s is no longer an admin\n", email)
		}

	default:
		usage()
	}
}
