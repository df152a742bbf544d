package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/agenthub/backend/internal/config"
	"github.com/agenthub/backend/internal/database"
	"github.com/agenthub/backend/internal/models"
)

func main() {
	godotenv.Load()

	email := flag.String("email", "", "Email address of user to promote to admin")
	revoke := flag.Bool("revoke", false, "Revoke admin privileges instead of granting")
	flag.Parse()

	if *email == "" {
		fmt.Println("Usage: promote-admin -email=user@example.com")
		fmt.Println("       promote-admin -email=user@example.com -revoke")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := database.Initialize(cfg.Database.Driver, cfg.Database.URL); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	var user models.User
	if err := database.DB.Where("LOWER(email) = LOWER(?)", *email).First(&user).Error; err != nil {
		fmt.Printf("User not found: %s\n", *email)
		return
	}

	if *revoke {
		if !user.IsAdmin() {
			fmt.Printf("User %s is not an admin\n", user.Username)
			return
		}
		roles := models.StringArray{}
		for _, r := range user.Roles {
			if r != models.RoleAdmin {
				roles = append(roles, r)
			}
		}
		user.Roles = roles
		if err := database.DB.Save(&user).Error; err != nil {
			log.Fatalf("Failed to revoke admin privileges: %v", err)
		}
		fmt.Printf("Revoked admin privileges from %s\n", user.Username)
		return
	}

	if user.IsAdmin() {
		fmt.Printf("User %s is already an admin\n", user.Username)
		return
	}

	user.Roles = append(user.Roles, models.RoleAdmin)
	if !user.IsActive {
		now := time.Now().UTC()
		user.IsActive = true
		user.ApprovedAt = &now
	}
	if err := database.DB.Save(&user).Error; err != nil {
		log.Fatalf("Failed to grant admin privileges: %v", err)
	}
	fmt.Printf("Granted admin privileges to %s\n", user.Username)
}
