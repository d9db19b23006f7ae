package models_test

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/printworks_backend/models"
	"github.com/mmdatafocus/printworks_backend/utils"
	"gorm.io/gorm"
)

func TestNextNumberConcurrentCallersGetDistinctValues(t *testing.T) {
	ctx, _ := setupTestDB(t)

	const callers = 20
	var wg sync.WaitGroup
	numbers := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = utils.RunInTransaction(ctx, "NextNumberTest", func(tx *gorm.DB) error {
				var err error
				numbers[i], err = models.NextNumber(tx, models.PrefixChallan, 2026)
				return err
			})
		}(i)
	}
	wg.Wait()

	seqs := make([]int, 0, callers)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		prefix, year, seq, err := models.ParseDocumentNumber(numbers[i])
		if err != nil {
			t.Fatalf("ParseDocumentNumber(%q): %v", numbers[i], err)
		}
		if prefix != models.PrefixChallan || year != 2026 {
			t.Fatalf("unexpected number %s", numbers[i])
		}
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	for i, seq := range seqs {
		if seq != i+1 {
			t.Fatalf("expected sequences 1..%d without gaps or repeats; got %v", callers, seqs)
		}
	}
}

func TestNextNumberSeriesAreIndependent(t *testing.T) {
	ctx, _ := setupTestDB(t)

	next := func(prefix string, year int) string {
		t.Helper()
		var n string
		err := utils.RunInTransaction(ctx, "NextNumberTest", func(tx *gorm.DB) error {
			var err error
			n, err = models.NextNumber(tx, prefix, year)
			return err
		})
		if err != nil {
			t.Fatalf("NextNumber(%s, %d): %v", prefix, year, err)
		}
		return n
	}

	if got := next("INV", 2025); got != "INV-2025-0001" {
		t.Fatalf("got %s", got)
	}
	if got := next("INV", 2025); got != "INV-2025-0002" {
		t.Fatalf("got %s", got)
	}
	if got := next("INV", 2026); got != "INV-2026-0001" {
		t.Fatalf("new year should restart; got %s", got)
	}
	if got := next("pay", 2026); got != "PAY-2026-0001" {
		t.Fatalf("got %s", got)
	}

	// a rolled back transaction hands its number out again
	err := utils.RunInTransaction(ctx, "NextNumberTest", func(tx *gorm.DB) error {
		if _, err := models.NextNumber(tx, "INV", 2026); err != nil {
			return err
		}
		return utils.NewBusinessRuleError("abort", "abort")
	})
	expectRule(t, err, utils.KindBusinessRule, "abort")
	if got := next("INV", 2026); got != "INV-2026-0002" {
		t.Fatalf("expected rolled back number to be reused; got %s", got)
	}

	err = utils.RunInTransaction(ctx, "NextNumberTest", func(tx *gorm.DB) error {
		_, err := models.NextNumber(tx, "BAD-PREFIX", 2026)
		return err
	})
	expectRule(t, err, utils.KindValidation, "invalid_prefix")
}

func TestDocumentNumberFormatting(t *testing.T) {
	tests := []struct {
		prefix string
		year   int
		seq    int
		want   string
	}{
		{"ORD", 2026, 1, "ORD-2026-0001"},
		{"DC", 2026, 42, "DC-2026-0042"},
		{"INV", 2027, 9999, "INV-2027-9999"},
		{"PAY", 2027, 12345, "PAY-2027-12345"},
	}
	for _, tt := range tests {
		got := models.FormatDocumentNumber(tt.prefix, tt.year, tt.seq)
		if got != tt.want {
			t.Fatalf("FormatDocumentNumber(%s, %d, %d) = %s; want %s", tt.prefix, tt.year, tt.seq, got, tt.want)
		}
		prefix, year, seq, err := models.ParseDocumentNumber(got)
		if err != nil || prefix != tt.prefix || year != tt.year || seq != tt.seq {
			t.Fatalf("ParseDocumentNumber(%s) = %s %d %d %v", got, prefix, year, seq, err)
		}
	}

	for _, bad := range []string{"", "INV-2026", "INV-26-0001", "INV-2026-01", "INV-2026-abcd", "-2026-0001", "INV-2026-0000"} {
		if _, _, _, err := models.ParseDocumentNumber(bad); utils.RuleOf(err) != "invalid_document_number" {
			t.Fatalf("ParseDocumentNumber(%q) should fail; got %v", bad, err)
		}
	}
}

func TestDocumentYearUsesBusinessTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Asia/Kolkata")
	// 2026-12-31 20:00 UTC is already 2027-01-01 in India
	if got := models.DocumentYear(time.Date(2026, 12, 31, 20, 0, 0, 0, time.UTC)); got != 2027 {
		t.Fatalf("expected 2027; got %d", got)
	}
	t.Setenv("APP_TIMEZONE", "UTC")
	if got := models.DocumentYear(time.Date(2026, 12, 31, 20, 0, 0, 0, time.UTC)); got != 2026 {
		t.Fatalf("expected 2026; got %d", got)
	}
}
