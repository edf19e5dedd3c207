package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"contactdesk.org/internal/directory"
	"contactdesk.org/internal/ids"
	"contactdesk.org/internal/store/pg"
)

// seed bootstraps the first administrator account. The permission catalog and
// built-in roles come from the SQL seeds; this creates the user that can use
// them.
func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	var (
		dsn      = flag.String("dsn", os.Getenv("CONTACTDESK_PG_DSN"), "PostgreSQL DSN")
		username = flag.String("username", "admin", "Administrator username")
		email    = flag.String("email", "admin@example.com", "Administrator email")
		password = flag.String("password", os.Getenv("ADMIN_PASSWORD"), "Administrator password")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or CONTACTDESK_PG_DSN")
	}
	if *password == "" {
		log.Fatal("missing password: provide via -password or ADMIN_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	taken, err := store.UsernameTaken(ctx, *username, "")
	if err != nil {
		log.Fatalf("check username: %v", err)
	}
	if taken {
		log.Printf("user %q already exists, nothing to do", *username)
		return
	}

	hash, err := directory.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	user := directory.User{
		ID:           ids.New(),
		Username:     *username,
		Email:        strings.ToLower(*email),
		PasswordHash: hash,
	}
	if err := store.CreateUser(ctx, &user); err != nil {
		log.Fatalf("create user: %v", err)
	}

	role, err := store.FindRoleByName(ctx, "Admin")
	if err != nil {
		log.Fatalf("lookup Admin role (run migrate seed first): %v", err)
	}
	if err := store.ReplaceUserRoles(ctx, user.ID, []string{role.ID}); err != nil {
		log.Fatalf("assign Admin role: %v", err)
	}

	log.Printf("created administrator %q (%s)", user.Username, user.ID)
}
