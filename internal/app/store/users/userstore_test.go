package userstore_test

import (
	"errors"
	"fmt"
	"testing"

	userstore "github.com/dalemusser/alumnihub/internal/app/store/users"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		ID:          primitive.NewObjectID(),
		Email:       " Ann@Example.com ",
		DisplayName: "  Ann Lee ",
	}, 42)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Email != "ann@example.com" {
		t.Errorf("Email = %q", created.Email)
	}
	if created.DisplayName != "Ann Lee" || created.DisplayNameCI == "" {
		t.Errorf("name = %q / %q", created.DisplayName, created.DisplayNameCI)
	}
	if created.Role != models.RoleStudent {
		t.Errorf("Role = %q, want student default", created.Role)
	}
	if created.CreatedAt != 42 || created.UpdatedAt != 42 {
		t.Errorf("timestamps = %d/%d", created.CreatedAt, created.UpdatedAt)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Email != created.Email {
		t.Errorf("GetByID email = %q", got.Email)
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}

	if _, err := store.Create(ctx, models.User{Email: "dup@example.com", DisplayName: "One"}, 1); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.User{Email: "DUP@example.com", DisplayName: "Two"}, 2)
	if !errors.Is(err, userstore.ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestStore_UpdateProfileAndAdminUpdate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{Email: "b@example.com", DisplayName: "Bo"}, 1)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	name, headline := "Bo Diddley", "Engineer at Acme"
	got, err := store.UpdateProfile(ctx, u.ID, models.ProfileUpdate{DisplayName: &name, Headline: &headline}, 5)
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if got.DisplayName != name || got.Headline != headline || got.UpdatedAt != 5 {
		t.Errorf("UpdateProfile result = %+v", got)
	}

	role, suspended := models.RoleAlumni, true
	got, err = store.AdminUpdate(ctx, u.ID, &role, &suspended, 6)
	if err != nil {
		t.Fatalf("AdminUpdate failed: %v", err)
	}
	if got.Role != models.RoleAlumni || !got.Suspended {
		t.Errorf("AdminUpdate result = %+v", got)
	}

	if _, err := store.AdminUpdate(ctx, primitive.NewObjectID(), &role, nil, 7); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("AdminUpdate(missing) err = %v", err)
	}
}

func TestStore_List_PagesByName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 60; i++ {
		role := models.RoleStudent
		if i%2 == 0 {
			role = models.RoleAlumni
		}
		_, err := store.Create(ctx, models.User{
			Email:       fmt.Sprintf("u%02d@example.com", i),
			DisplayName: fmt.Sprintf("User %02d", i),
			Role:        role,
		}, int64(i))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	rows, page, err := store.List(ctx, userstore.ListQuery{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 50 || page.Next == "" || page.Prev != "" {
		t.Fatalf("first page: %d rows, page=%+v", len(rows), page)
	}
	if rows[0].DisplayName != "User 00" {
		t.Errorf("first row = %q", rows[0].DisplayName)
	}

	rows, page, err = store.List(ctx, userstore.ListQuery{After: page.Next})
	if err != nil {
		t.Fatalf("List page 2 failed: %v", err)
	}
	if len(rows) != 10 || page.Next != "" || page.Prev == "" {
		t.Errorf("second page: %d rows, page=%+v", len(rows), page)
	}

	alumni, _, err := store.List(ctx, userstore.ListQuery{Role: models.RoleAlumni})
	if err != nil {
		t.Fatalf("List alumni failed: %v", err)
	}
	if len(alumni) != 30 {
		t.Errorf("alumni = %d, want 30", len(alumni))
	}

	ids, err := store.IDs(ctx, "")
	if err != nil || len(ids) != 60 {
		t.Errorf("IDs = %d, %v", len(ids), err)
	}
}

func TestFetcher_FetchProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	f := userstore.NewFetcher(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{Email: "c@example.com", DisplayName: "Cy", Role: models.RoleAdmin}, 1)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	got, err := f.FetchProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("FetchProfile failed: %v", err)
	}
	if got.EffectiveRole() != models.RoleAdmin {
		t.Errorf("role = %q", got.Role)
	}
	if _, err := f.FetchProfile(ctx, primitive.NewObjectID()); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("missing profile err = %v, want ErrNoDocuments", err)
	}
}
