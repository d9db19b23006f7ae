package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberSeries is the per-(prefix, year) document counter. LastValue is the
// last number handed out; it only moves inside the transaction that consumes it.
type NumberSeries struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Prefix    string    `gorm:"size:10;not null;uniqueIndex:idx_number_series_prefix_year" json:"prefix"`
	Year      int       `gorm:"not null;uniqueIndex:idx_number_series_prefix_year" json:"year"`
	LastValue int       `gorm:"not null;default:0" json:"last_value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NumberSeries) TableName() string { return "number_series" }

// NextNumber increments the counter row of (prefix, year) inside tx and returns
// the formatted number. The upsert takes the row lock, so a concurrent caller
// blocks until tx ends; if tx rolls back the value is handed out again.
func NextNumber(tx *gorm.DB, prefix string, year int) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" || strings.Contains(prefix, "-") {
		return "", utils.NewValidationError("invalid_prefix", "invalid document prefix %q", prefix)
	}
	if year < 1 || year > 9999 {
		return "", utils.NewValidationError("invalid_year", "invalid document year %d", year)
	}

	seed := NumberSeries{Prefix: prefix, Year: year, LastValue: 1}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "prefix"}, {Name: "year"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_value": gorm.Expr("last_value + 1")}),
	}).Create(&seed).Error
	if err != nil {
		return "", err
	}

	var current NumberSeries
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix = ? AND year = ?", prefix, year).
		First(&current).Error
	if err != nil {
		return "", err
	}
	return FormatDocumentNumber(prefix, year, current.LastValue), nil
}

// DocumentYear is the calendar year of t in the business timezone.
func DocumentYear(t time.Time) int {
	return t.In(config.AppLocation()).Year()
}

// FormatDocumentNumber renders PREFIX-YYYY-NNNN. Past 9999 the sequence simply widens.
func FormatDocumentNumber(prefix string, year int, seq int) string {
	return fmt.Sprintf("%s-%04d-%04d", prefix, year, seq)
}

func ParseDocumentNumber(s string) (prefix string, year int, seq int, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] == "" || len(parts[1]) != 4 || len(parts[2]) < 4 {
		return "", 0, 0, utils.NewValidationError("invalid_document_number", "malformed document number %q", s)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, utils.NewValidationError("invalid_document_number", "malformed year in %q", s)
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil || seq <= 0 {
		return "", 0, 0, utils.NewValidationError("invalid_document_number", "malformed sequence in %q", s)
	}
	return parts[0], year, seq, nil
}
