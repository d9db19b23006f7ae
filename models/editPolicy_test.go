package models_test

import (
	"testing"
	"time"

	"github.com/mmdatafocus/printworks_backend/models"
)

func TestCanEdit(t *testing.T) {
	tests := []struct {
		role    string
		age     time.Duration
		isOwner bool
		want    bool
	}{
		{models.RoleAdmin, 0, false, true},
		{models.RoleAdmin, 90 * 24 * time.Hour, false, true},
		{models.RoleManager, 48 * time.Hour, false, true},
		{models.RoleEmployee, time.Hour, true, true},
		{models.RoleEmployee, 23*time.Hour + 59*time.Minute, true, true},
		{models.RoleEmployee, 24 * time.Hour, true, false},
		{models.RoleEmployee, time.Hour, false, false},
		{models.RoleEmployee, -time.Minute, true, false},
		{"auditor", 0, true, false},
		{"", 0, true, false},
	}
	for _, tt := range tests {
		if got := models.CanEdit(tt.role, tt.age, tt.isOwner); got != tt.want {
			t.Fatalf("CanEdit(%q, %v, %v) = %v; want %v", tt.role, tt.age, tt.isOwner, got, tt.want)
		}
	}

	t.Setenv("EMPLOYEE_EDIT_WINDOW_HOURS", "2")
	if models.CanEdit(models.RoleEmployee, 3*time.Hour, true) {
		t.Fatalf("window from EMPLOYEE_EDIT_WINDOW_HOURS not applied")
	}
}
