// Package main provides account administration utilities for YNetwork.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"ynetwork/internal/config"
	"ynetwork/internal/database"
	"ynetwork/internal/models"
	"ynetwork/internal/repository"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <user_id>   - Grant the admin role")
	fmt.Println("  go run ./cmd/admin demote <user_id>    - Revoke the admin role")
	fmt.Println("  go run ./cmd/admin ban <user_id>       - Ban a student account")
	fmt.Println("  go run ./cmd/admin unban <user_id>     - Lift a ban")
	fmt.Println("  go run ./cmd/admin list-admins         - List all admins")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	command := os.Args[1]
	if command == "list-admins" {
		listAdmins(ctx, db)
		return
	}

	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}
	id, err := strconv.ParseUint(os.Args[2], 10, 64)
	if err != nil || id == 0 {
		log.Fatalf("Invalid user id %q", os.Args[2])
	}

	switch command {
	case "promote":
		setRole(ctx, db, uint(id), models.RoleAdmin)
	case "demote":
		setRole(ctx, db, uint(id), models.RoleStudent)
	case "ban":
		setBanned(ctx, db, uint(id), true)
	case "unban":
		setBanned(ctx, db, uint(id), false)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func loadUser(ctx context.Context, db *gorm.DB, id uint) *models.User {
	var user models.User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User with ID %d not found\n", id)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}
	return &user
}

func setRole(ctx context.Context, db *gorm.DB, id uint, role models.Role) {
	user := loadUser(ctx, db, id)
	if user.Role == role {
		fmt.Printf("User %s (ID: %d) already has role %s\n", user.Username, user.ID, role)
		return
	}
	if err := repository.NewUserRepository(db).UpdateFields(ctx, id, map[string]any{"role": role}); err != nil {
		log.Fatalf("Failed to update role: %v", err)
	}
	fmt.Printf("Set role of %s (ID: %d) to %s\n", user.Username, user.ID, role)
}

func setBanned(ctx context.Context, db *gorm.DB, id uint, banned bool) {
	user := loadUser(ctx, db, id)
	if user.Role == models.RoleAdmin && banned {
		fmt.Printf("User %s (ID: %d) is an admin; demote them first\n", user.Username, user.ID)
		os.Exit(1)
	}
	if err := repository.NewUserRepository(db).UpdateFields(ctx, id, map[string]any{"is_banned": banned}); err != nil {
		log.Fatalf("Failed to update ban: %v", err)
	}
	state := "Banned"
	if !banned {
		state = "Unbanned"
	}
	fmt.Printf("%s %s (ID: %d)\n", state, user.Username, user.ID)
}

func listAdmins(ctx context.Context, db *gorm.DB) {
	var admins []models.User
	if err := db.WithContext(ctx).Where("role = ?", models.RoleAdmin).Order("id").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("Current admins:")
	for _, admin := range admins {
		fmt.Printf("ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.UniversityEmail)
	}
}
