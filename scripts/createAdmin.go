package main

// Seeds reviewer accounts. Registration only ever creates students, so
// admins come from here: either one account from flags or many from a CSV
// file with name,email,password rows.
//
//	go run ./scripts -email admin@ncit.edu.np -name Registrar -password ...
//	go run ./scripts -csv admins.csv

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"certportal/apperror"
	"certportal/config"
	"certportal/database"
	"certportal/models"
	"certportal/repository"

	"golang.org/x/crypto/bcrypt"
)

type adminRow struct {
	Name     string
	Email    string
	Password string
}

func main() {
	name := flag.String("name", "Admin", "display name")
	email := flag.String("email", "", "admin email")
	password := flag.String("password", "", "admin password (min 8 characters)")
	csvPath := flag.String("csv", "", "CSV file with name,email,password rows")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	var rows []adminRow
	if *csvPath != "" {
		file, err := os.Open(*csvPath)
		if err != nil {
			log.Error("failed to open CSV file", "err", err)
			os.Exit(1)
		}
		rows, err = readRows(file)
		file.Close()
		if err != nil {
			log.Error("failed to read CSV file", "err", err)
			os.Exit(1)
		}
	} else {
		rows = []adminRow{{Name: *name, Email: *email, Password: *password}}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	db, err := database.ConnectDb(cfg, log)
	if err != nil {
		log.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer database.Close(db)

	users := repository.NewUserRepository(db)
	ctx := context.Background()

	failed := 0
	for i, row := range rows {
		if err := upsertAdmin(ctx, users, row, cfg.SaltRound); err != nil {
			log.Error("skipping row", "row", i+1, "email", row.Email, "err", err)
			failed++
			continue
		}
		log.Info("admin ready", "email", strings.ToLower(row.Email))
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// readRows parses name,email,password records. A header row is skipped.
func readRows(r io.Reader) ([]adminRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([]adminRow, 0, len(records))
	for i, rec := range records {
		if i == 0 && strings.EqualFold(rec[1], "email") {
			continue
		}
		rows = append(rows, adminRow{Name: rec[0], Email: rec[1], Password: rec[2]})
	}
	return rows, nil
}

// upsertAdmin creates a verified admin, or promotes and re-keys an existing account.
func upsertAdmin(ctx context.Context, users *repository.UserRepository, row adminRow, cost int) error {
	email := strings.ToLower(strings.TrimSpace(row.Email))
	if email == "" || !strings.Contains(email, "@") {
		return errors.New("a valid email is required")
	}
	if len(row.Password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(row.Password), cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		u.Role = models.RoleAdmin
		u.Password = string(hashed)
		u.IsEmailVerified = true
		return users.Save(ctx, u)
	case apperror.Is(err, apperror.CodeNotFound):
		return users.Create(ctx, &models.User{
			Name:            strings.TrimSpace(row.Name),
			Email:           email,
			Role:            models.RoleAdmin,
			Password:        string(hashed),
			IsEmailVerified: true,
		})
	default:
		return err
	}
}
