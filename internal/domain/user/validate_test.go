package user

import (
	"errors"
	"testing"
	"time"
)

func TestValidate_RegisterRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       RegisterRequest
		wantRules map[string]string
	}{
		{
			name: "valid",
			req:  RegisterRequest{Name: "A", Email: "a@x.com", Password: "secret123"},
		},
		{
			name:      "missing_everything",
			req:       RegisterRequest{},
			wantRules: map[string]string{"name": "required", "email": "required", "password": "required"},
		},
		{
			name:      "bad_email_short_password",
			req:       RegisterRequest{Name: "A", Email: "not-an-email", Password: "123"},
			wantRules: map[string]string{"email": "email", "password": "min"},
		},
		{
			name:      "name_too_long",
			req:       RegisterRequest{Name: "abcdefghijabcdefghijabcdefghijk", Email: "a@x.com", Password: "secret123"},
			wantRules: map[string]string{"name": "max"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)

			if len(tt.wantRules) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}

			found := map[string]string{}
			for _, fe := range verrs {
				found[fe.Field] = fe.Rule
				if fe.Message == "" {
					t.Fatalf("field %q has empty message", fe.Field)
				}
			}

			for field, rule := range tt.wantRules {
				if found[field] != rule {
					t.Fatalf("field %q rule = %q, want %q (all=%v)", field, found[field], rule, found)
				}
			}
		})
	}
}

func TestValidate_AdminRoleAllowList(t *testing.T) {
	err := Validate(AdminUpdateRequest{Name: "B", Email: "b@x.com", Role: "superuser"})

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if verrs[0].Field != "role" || verrs[0].Rule != "oneof" {
		t.Fatalf("unexpected field error: %+v", verrs[0])
	}

	if err := Validate(AdminUpdateRequest{Name: "B", Email: "b@x.com", Role: RoleAdmin}); err != nil {
		t.Fatalf("admin role should be accepted: %v", err)
	}
}

func TestResetFieldsMoveTogether(t *testing.T) {
	u := NewFromRegister(RegisterRequest{Name: " A ", Email: "a@x.com"}, "hash")

	if u.Role != RoleUser || u.Avatar != DefaultAvatar() || u.Name != "A" {
		t.Fatalf("unexpected defaults: %+v", u)
	}

	now := u.CreatedAt
	u.SetReset("digest", now.Add(30*time.Minute))
	if !u.HasPendingReset(now) {
		t.Fatalf("expected pending reset")
	}
	if u.HasPendingReset(now.Add(30*time.Minute)) {
		t.Fatalf("reset must not be pending at its expiry instant")
	}

	u.ClearReset()
	if u.ResetPasswordTokenHash != nil || u.ResetPasswordExpiry != nil {
		t.Fatalf("expected both reset fields cleared")
	}
}
