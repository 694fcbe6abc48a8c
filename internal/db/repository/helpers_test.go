package repository_test

import (
	"path/filepath"
	"testing"

	"github.com/adamscao/permitserver/internal/db"
	"github.com/adamscao/permitserver/internal/models"
)

// newTestDB opens a migrated database in a per-test temporary directory.
func newTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.RunMigrations(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func sampleRequest() *models.AccessRequest {
	return &models.AccessRequest{
		RequesterID:  "user-1",
		HolderName:   "Maria Gonzalez",
		HolderID:     "12345678-9",
		Email:        "maria@example.edu",
		Phone:        "+56911112222",
		Program:      "Mechanical Engineering",
		VehiclePlate: "abcd12",
		VehicleModel: "Toyota Yaris",
		VehicleColor: "red",
	}
}
