package repository_test

import (
	"errors"
	"testing"

	"github.com/adamscao/permitserver/internal/db/repository"
	"github.com/adamscao/permitserver/internal/models"
)

func sampleUser() *models.User {
	return &models.User{
		Username:     "mgonzalez",
		Name:         "Maria Gonzalez",
		Role:         models.RoleRequester,
		PasswordHash: "hash",
		Enabled:      true,
	}
}

func TestUserCreateAndGet(t *testing.T) {
	database := newTestDB(t)
	repo := repository.NewUserRepository(database.DB)

	user := sampleUser()
	if err := repo.Create(user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected a generated id")
	}

	byName, err := repo.GetByUsername("mgonzalez")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if byName.ID != user.ID || byName.Role != models.RoleRequester || !byName.Enabled {
		t.Errorf("unexpected user: %+v", byName)
	}

	byID, err := repo.GetByID(user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.Username != "mgonzalez" {
		t.Errorf("unexpected user: %+v", byID)
	}
}

func TestUserDuplicateUsername(t *testing.T) {
	database := newTestDB(t)
	repo := repository.NewUserRepository(database.DB)

	if err := repo.Create(sampleUser()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(sampleUser()); err == nil {
		t.Error("expected a uniqueness error for the duplicate username")
	}
}

func TestUserUpdate(t *testing.T) {
	database := newTestDB(t)
	repo := repository.NewUserRepository(database.DB)

	user := sampleUser()
	if err := repo.Create(user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	user.Role = models.RoleAdminLevel1
	user.Enabled = false
	if err := repo.Update(user); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByID(user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Role != models.RoleAdminLevel1 || got.Enabled {
		t.Errorf("update not persisted: %+v", got)
	}

	missing := sampleUser()
	missing.ID = "no-such-id"
	missing.Username = "other"
	if err := repo.Update(missing); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserDelete(t *testing.T) {
	database := newTestDB(t)
	repo := repository.NewUserRepository(database.DB)

	user := sampleUser()
	if err := repo.Create(user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Delete(user.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(user.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
