package users

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMockUserRepository_FindByIDs(t *testing.T) {
	alice := &User{ID: primitive.NewObjectID(), Firstname: "Alice", Lastname: "Doe"}
	bob := &User{ID: primitive.NewObjectID(), Firstname: "Bob"}
	repository := MockUserRepository{Users: []*User{alice, bob}}

	found, err := repository.FindByIDs(context.Background(), []primitive.ObjectID{bob.ID, primitive.NewObjectID()})
	if err != nil {
		t.Fatal(err)
	}

	if len(found) != 1 || found[0] != bob {
		t.Errorf("FindByIDs returned %v", found)
	}

	if alice.FullName() != "Alice Doe" || bob.FullName() != "Bob" {
		t.Errorf("unexpected full names %q %q", alice.FullName(), bob.FullName())
	}
}
