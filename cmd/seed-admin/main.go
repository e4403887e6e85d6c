// seed-admin creates the backend login user.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed-admin --username shopadmin --password 'secret'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/gananathtech/inventory_backend/config"
	"bitbucket.org/gananathtech/inventory_backend/models"
	"bitbucket.org/gananathtech/inventory_backend/utils"
)

func main() {
	username := flag.String("username", "shopadmin", "login username")
	password := flag.String("password", "", "Required: login password")
	flag.Parse()

	if strings.TrimSpace(*password) == "" {
		fmt.Fprintln(os.Stderr, "--password is required")
		os.Exit(1)
	}

	ctx := context.Background()
	db := config.ConnectDatabaseWithRetry()
	models.MigrateTable(db)

	user, err := models.CreateUser(ctx, db, *username, *password)
	if err != nil {
		if utils.IsValidationError(err) {
			fmt.Fprintf(os.Stderr, "user %q already exists\n", *username)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "failed to create user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created user %q (id=%d)\n", user.Username, user.ID)
}
