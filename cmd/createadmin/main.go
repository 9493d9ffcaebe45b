// Command createadmin seeds the first province_admin account so someone can
// log in to a fresh deployment.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/nccaalumbini/cadet-api/internal/config"
	"github.com/nccaalumbini/cadet-api/internal/crypto"
	"github.com/nccaalumbini/cadet-api/internal/db"
	"github.com/nccaalumbini/cadet-api/internal/model"
	"github.com/nccaalumbini/cadet-api/internal/policy"
	"github.com/nccaalumbini/cadet-api/internal/repository"
)

func main() {
	cadetNumber := flag.String("cadet-number", "", "cadet number of the admin account")
	username := flag.String("username", "", "login username")
	email := flag.String("email", "", "login email")
	password := flag.String("password", "", "initial password")
	district := flag.String("district", "", "optional home district")
	flag.Parse()

	if *cadetNumber == "" || *username == "" || *email == "" || *password == "" {
		log.Fatal("usage: createadmin -cadet-number N -username U -email E -password P [-district D]")
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}

	hash, err := crypto.HashPassword(*password)
	if err != nil {
		log.Fatalf("password hash failed: %v", err)
	}

	user := model.User{
		CadetNumber:  strings.TrimSpace(*cadetNumber),
		Username:     strings.TrimSpace(*username),
		Email:        strings.TrimSpace(strings.ToLower(*email)),
		Role:         string(policy.RoleProvinceAdmin),
		PasswordHash: hash,
	}
	if trimmed := strings.TrimSpace(*district); trimmed != "" {
		user.District = &trimmed
	}

	created, err := repository.NewStore(pool).CreateUser(ctx, user)
	if err != nil {
		log.Fatalf("create admin failed: %v", err)
	}

	log.Printf("created province_admin %s (id %d)", created.Username, created.ID)
}
