// Package ledger renders the SQL that rewrites the migration history table so
// that a squashed range is recorded as a single migration.
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

type Dialect string

const (
	SQLServer Dialect = "sqlserver"
	MySQL     Dialect = "mysql"
)

const (
	DefaultTable          = "__EFMigrationsHistory"
	DefaultProductVersion = "5.0.5"
)

var ErrUnknownDialect = errors.New("unknown ledger dialect")

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case "", SQLServer:
		return SQLServer, nil
	case MySQL:
		return MySQL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, s)
	}
}

// Fixup describes one ledger rewrite: if TargetID was applied, every row up to
// and including it is replaced by a single NewID row.
type Fixup struct {
	Dialect        Dialect
	Table          string
	ProductVersion string
	TargetID       string
	NewID          string
}

func (f Fixup) SQL() (string, error) {
	if f.TargetID == "" || f.NewID == "" {
		return "", errors.New("ledger fixup requires target and new migration ids")
	}
	if f.Table == "" {
		f.Table = DefaultTable
	}
	if f.ProductVersion == "" {
		f.ProductVersion = DefaultProductVersion
	}
	switch f.Dialect {
	case "", SQLServer:
		return f.sqlServer(), nil
	case MySQL:
		return f.mysql(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, f.Dialect)
	}
}

func (f Fixup) sqlServer() string {
	table := quoteParts(f.Table, "[", "]")
	target := "N" + literal(f.TargetID)
	return fmt.Sprintf(`IF EXISTS(SELECT * FROM %[1]s WHERE [MigrationId] = %[2]s)
BEGIN
    WITH Migrations AS
    (
        SELECT
        ROW_NUMBER() OVER(ORDER BY MigrationId ASC) AS Row, MigrationId
        FROM %[1]s
    )
    DELETE
    FROM Migrations
    WHERE Row <= (SELECT Row FROM Migrations WHERE [MigrationId] = %[2]s);
    INSERT INTO %[1]s ([MigrationId], [ProductVersion]) VALUES (N%[3]s, N%[4]s);
END`, table, target, literal(f.NewID), literal(f.ProductVersion))
}

// MySQL has no IF outside stored programs and rejects a DELETE that selects
// from its own table, so the guard is captured in a session variable first.
func (f Fixup) mysql() string {
	table := quoteParts(f.Table, "`", "`")
	target, next := literal(f.TargetID), literal(f.NewID)
	return fmt.Sprintf("SET @migsquash_target_applied = (SELECT COUNT(*) FROM %[1]s WHERE `MigrationId` = %[2]s);\n"+
		"INSERT INTO %[1]s (`MigrationId`, `ProductVersion`)\n"+
		"SELECT %[3]s, %[4]s FROM DUAL\n"+
		"WHERE @migsquash_target_applied > 0\n"+
		"  AND NOT EXISTS (SELECT 1 FROM %[1]s WHERE `MigrationId` = %[3]s);\n"+
		"DELETE FROM %[1]s\n"+
		"WHERE @migsquash_target_applied > 0\n"+
		"  AND `MigrationId` <= %[2]s\n"+
		"  AND `MigrationId` <> %[3]s;",
		table, target, next, literal(f.ProductVersion))
}

func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteParts quotes each dot separated part of a possibly schema qualified
// table name.
func quoteParts(name, lq, rq string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		p = strings.Trim(p, lq+rq)
		parts[i] = lq + strings.ReplaceAll(p, rq, rq+rq) + rq
	}
	return strings.Join(parts, ".")
}
