package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"identity/internal/database"
	"identity/internal/domain"
	"identity/internal/repository"
)

// Bootstraps the base roles and a first admin account. Safe to run more
// than once: roles are idempotent and the admin is skipped if present.
func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "identity.db"
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := db.AutoMigrate(&domain.User{}, &domain.Role{}); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	ctx := context.Background()
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)

	for _, name := range []string{domain.RoleUser, domain.RoleAdmin} {
		if _, err := roleRepo.Ensure(ctx, name); err != nil {
			log.Fatal("role seed failed:", err)
		}
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		log.Println("ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin bootstrap")
		return
	}

	exists, err := userRepo.ExistsByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatal(err)
	}
	if exists {
		log.Println("Admin already exists:", adminEmail)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal(err)
	}

	admin := domain.User{
		Email:        adminEmail,
		PasswordHash: string(hash),
		FirstName:    "Admin",
		LastName:     "Account",
		IsActive:     true,
	}
	if err := userRepo.Create(ctx, &admin); err != nil {
		log.Fatal("admin create failed:", err)
	}
	for _, name := range []string{domain.RoleUser, domain.RoleAdmin} {
		if err := roleRepo.Grant(ctx, admin.ID, name); err != nil {
			log.Fatal("admin role grant failed:", err)
		}
	}

	log.Println("Admin created:", adminEmail)
}
