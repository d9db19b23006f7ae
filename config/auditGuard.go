package config

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/mmdatafocus/printworks_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// ErrHardDelete is returned when code tries to physically delete a row of a
// soft-deletable table. Use utils.SoftDelete instead.
var ErrHardDelete = errors.New("physical delete of an audited record is not allowed")

const isDeletedColumn = "is_deleted"

// AuditGuardPlugin is the single persistence-boundary interceptor for audit and
// soft-delete bookkeeping:
//   - create stamps created_by/updated_by from the request actor
//   - update stamps updated_by
//   - query/row/update only see rows with is_deleted = false
//   - delete is refused for models carrying is_deleted
//
// NOTE:
//   - This does NOT apply to Raw/Exec SQL. Those must filter is_deleted manually.
//   - Joined tables are not filtered; add "<table>.is_deleted = false" to the join.
//   - Audit reads bypass the filter with appctx.ContextKeyIncludeDeleted or Unscoped().
type AuditGuardPlugin struct{}

func NewAuditGuardPlugin() *AuditGuardPlugin { return &AuditGuardPlugin{} }

func (p *AuditGuardPlugin) Name() string { return "audit_guard" }

func UseAuditGuard(d *gorm.DB) error {
	return d.Use(NewAuditGuardPlugin())
}

func (p *AuditGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("audit_guard:create", auditCreateCallback); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("audit_guard:query", softDeleteFilterCallback); err != nil {
		return err
	}
	// Row (Scan/Rows/Pluck)
	if err := db.Callback().Row().Before("gorm:row").Register("audit_guard:row", softDeleteFilterCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("audit_guard:update", auditUpdateCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("audit_guard:delete", hardDeleteCallback); err != nil {
		return err
	}
	return nil
}

func auditCreateCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil || db.Statement.Context == nil {
		return
	}
	uid, ok := appctx.GetInt(db.Statement.Context, appctx.ContextKeyUserId)
	if !ok || uid == 0 {
		return
	}
	for _, name := range []string{"CreatedBy", "UpdatedBy"} {
		field := db.Statement.Schema.LookUpField(name)
		if field == nil {
			continue
		}
		rv := db.Statement.ReflectValue
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				elem := reflect.Indirect(rv.Index(i))
				if elem.Kind() != reflect.Struct {
					continue
				}
				if err := field.Set(db.Statement.Context, elem, uid); err != nil {
					db.AddError(err)
					return
				}
			}
		case reflect.Struct:
			if err := field.Set(db.Statement.Context, rv, uid); err != nil {
				db.AddError(err)
				return
			}
		}
	}
}

func auditUpdateCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil || db.Statement.Context == nil {
		return
	}
	if uid, ok := appctx.GetInt(db.Statement.Context, appctx.ContextKeyUserId); ok && uid != 0 {
		if db.Statement.Schema.LookUpField("UpdatedBy") != nil && updatesAreMutable(db.Statement) {
			db.Statement.SetColumn("UpdatedBy", uid, true)
		}
	}
	softDeleteFilterCallback(db)
}

// SetColumn can only write into map destinations or addressable structs.
func updatesAreMutable(stmt *gorm.Statement) bool {
	switch stmt.Dest.(type) {
	case map[string]interface{}:
		return true
	}
	if !stmt.ReflectValue.IsValid() {
		return false
	}
	return stmt.ReflectValue.Kind() == reflect.Struct && stmt.ReflectValue.CanAddr()
}

func softDeleteFilterCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return
	}
	if db.Statement.Unscoped || includeDeleted(db.Statement.Context) {
		return
	}
	if !hasIsDeleted(db.Statement.Schema) {
		return
	}
	if whereHasIsDeleted(db.Statement.Clauses["WHERE"], db.Statement.Table) {
		return
	}
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: isDeletedColumn},
				Value:  false,
			},
		},
	})
}

func hardDeleteCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return
	}
	if hasIsDeleted(db.Statement.Schema) {
		db.AddError(ErrHardDelete)
	}
}

func includeDeleted(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := appctx.GetBool(ctx, appctx.ContextKeyIncludeDeleted)
	return ok && v
}

func hasIsDeleted(s *schema.Schema) bool {
	_, ok := s.FieldsByDBName[isDeletedColumn]
	return ok
}

// Don't duplicate an explicit soft-delete filter on the statement's own table.
func whereHasIsDeleted(c clause.Clause, table string) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasIsDeleted(e, table) {
			return true
		}
	}
	return false
}

func exprHasIsDeleted(e clause.Expression, table string) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsDeleted(v.Column, table)
	case clause.Neq:
		return colIsDeleted(v.Column, table)
	case clause.IN:
		return colIsDeleted(v.Column, table)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasIsDeleted(x, table) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasIsDeleted(x, table) {
				return true
			}
		}
		return false
	case clause.Expr:
		return sqlMentionsIsDeleted(v.SQL, table)
	case clause.NamedExpr:
		return sqlMentionsIsDeleted(v.SQL, table)
	default:
		return false
	}
}

func colIsDeleted(col any, table string) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, isDeletedColumn) || strings.EqualFold(c, table+"."+isDeletedColumn)
	case clause.Column:
		if !strings.EqualFold(c.Name, isDeletedColumn) {
			return false
		}
		return c.Table == "" || c.Table == clause.CurrentTable || strings.EqualFold(c.Table, table)
	default:
		return false
	}
}

// Best-effort for raw expressions: an unqualified is_deleted, or one qualified
// with the statement's table, counts as an explicit filter.
func sqlMentionsIsDeleted(sql string, table string) bool {
	s := strings.ToLower(sql)
	for {
		i := strings.Index(s, isDeletedColumn)
		if i < 0 {
			return false
		}
		prefix := strings.TrimRight(s[:i], "`\"")
		if !strings.HasSuffix(prefix, ".") {
			return true
		}
		qualifier := strings.TrimSuffix(prefix, ".")
		qualifier = strings.TrimRight(qualifier, "`\"")
		if j := strings.LastIndexAny(qualifier, " (,`\"="); j >= 0 {
			qualifier = qualifier[j+1:]
		}
		if strings.EqualFold(qualifier, table) {
			return true
		}
		s = s[i+len(isDeletedColumn):]
	}
}
