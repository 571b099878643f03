package actorctx

import (
	"context"
	"testing"

	"github.com/geocoder89/storefront/internal/domain/user"
)

func TestWithUser(t *testing.T) {
	if _, ok := UserFrom(context.Background()); ok {
		t.Fatalf("empty context should carry no user")
	}

	ctx := WithUser(context.Background(), user.User{ID: "u1", Role: user.RoleAdmin})

	u, ok := UserFrom(ctx)
	if !ok || u.ID != "u1" || u.Role != user.RoleAdmin {
		t.Fatalf("UserFrom = %+v, %v", u, ok)
	}

	if _, ok := UserFrom(WithUser(context.Background(), user.User{})); ok {
		t.Fatalf("a user without id must not count as authenticated")
	}
}
