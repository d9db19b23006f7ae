package utils_test

import (
	"reflect"
	"testing"

	"github.com/mmdatafocus/printworks_backend/utils"
	"github.com/shopspring/decimal"
)

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"OrderItemId":  "order_item_id",
		"Quantity":     "quantity",
		"CgstRate":     "cgst_rate",
		"ID":           "id",
		"GSTINNumber":  "gstin_number",
		"already_done": "already_done",
	}
	for in, want := range tests {
		if got := utils.ToSnakeCase(in); got != want {
			t.Fatalf("ToSnakeCase(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in     string
		region string
		want   string
		ok     bool
	}{
		{"98450 12345", "IN", "+919845012345", true},
		{"098450-12345", "IN", "+919845012345", true},
		{"+91 98450 12345", "US", "+919845012345", true},
		{"12345", "IN", "", false},
		{"not a phone", "IN", "", false},
	}
	for _, tt := range tests {
		got, err := utils.NormalizePhone(tt.in, tt.region)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Fatalf("NormalizePhone(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
			continue
		}
		if utils.RuleOf(err) != "invalid_phone" {
			t.Fatalf("NormalizePhone(%q): expected invalid_phone; got %q, %v", tt.in, got, err)
		}
	}
}

func TestUniqueSlice(t *testing.T) {
	got := utils.UniqueSlice([]int{3, 1, 3, 2, 1})
	if !reflect.DeepEqual(got, []int{3, 1, 2}) {
		t.Fatalf("UniqueSlice kept order wrong: %v", got)
	}
}

func TestValidateStructChecksDecimals(t *testing.T) {
	type line struct {
		Quantity decimal.Decimal `validate:"gt=0"`
		Rate     decimal.Decimal `validate:"gte=0,lte=100"`
	}
	if err := utils.ValidateStruct(&line{Quantity: decimal.NewFromFloat(0.5), Rate: decimal.NewFromInt(18)}); err != nil {
		t.Fatalf("valid line rejected: %v", err)
	}
	if err := utils.ValidateStruct(&line{Quantity: decimal.Zero, Rate: decimal.NewFromInt(18)}); utils.RuleOf(err) != "invalid_quantity" {
		t.Fatalf("expected invalid_quantity; got %v", err)
	}
	if err := utils.ValidateStruct(&line{Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(120)}); utils.RuleOf(err) != "invalid_rate" {
		t.Fatalf("expected invalid_rate; got %v", err)
	}
}

func TestValidateStructCapsDecimalPlaces(t *testing.T) {
	type payment struct {
		Amount   decimal.Decimal  `validate:"gt=0,dp=2"`
		Quantity *decimal.Decimal `validate:"omitempty,gt=0,dp=4"`
	}
	qty := decimal.RequireFromString("1.2345")
	tests := []struct {
		name     string
		input    payment
		wantRule string
	}{
		{name: "two places", input: payment{Amount: decimal.RequireFromString("10.25"), Quantity: &qty}},
		{name: "trailing zeros", input: payment{Amount: decimal.RequireFromString("10.2500")}},
		{name: "three places", input: payment{Amount: decimal.RequireFromString("10.255")}, wantRule: "invalid_amount"},
		{name: "below column scale", input: payment{Amount: decimal.RequireFromString("0.00001")}, wantRule: "invalid_amount"},
		{name: "quantity five places", input: payment{Amount: decimal.NewFromInt(1), Quantity: decPtr("0.12345")}, wantRule: "invalid_quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := utils.ValidateStruct(&tt.input)
			if tt.wantRule == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if utils.RuleOf(err) != tt.wantRule {
				t.Fatalf("expected %s; got %v", tt.wantRule, err)
			}
		})
	}
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("API_SECRET", "unit-test-secret")
	token, err := utils.JwtGenerate(utils.Actor{ID: 4, Name: "Devi", Role: "manager"})
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	actor, err := utils.ActorFromToken(token)
	if err != nil {
		t.Fatalf("ActorFromToken: %v", err)
	}
	if actor != (utils.Actor{ID: 4, Name: "Devi", Role: "manager"}) {
		t.Fatalf("unexpected actor %+v", actor)
	}

	t.Setenv("API_SECRET", "rotated-secret")
	if _, err := utils.ActorFromToken(token); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}
