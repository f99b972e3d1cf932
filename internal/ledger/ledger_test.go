package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("")
	require.NoError(t, err)
	assert.Equal(t, SQLServer, d)

	d, err = ParseDialect(" MySQL ")
	require.NoError(t, err)
	assert.Equal(t, MySQL, d)

	_, err = ParseDialect("oracle")
	require.ErrorIs(t, err, ErrUnknownDialect)
}

func TestSQLServerFixup(t *testing.T) {
	sql, err := Fixup{TargetID: "20230101000000_Initial", NewID: "20230101000000_Squashed"}.SQL()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql,
		"IF EXISTS(SELECT * FROM [__EFMigrationsHistory] WHERE [MigrationId] = N'20230101000000_Initial')"))
	assert.Contains(t, sql, "ROW_NUMBER() OVER(ORDER BY MigrationId ASC) AS Row, MigrationId")
	assert.Contains(t, sql, "WHERE Row <= (SELECT Row FROM Migrations WHERE [MigrationId] = N'20230101000000_Initial');")
	assert.Contains(t, sql,
		"INSERT INTO [__EFMigrationsHistory] ([MigrationId], [ProductVersion]) VALUES (N'20230101000000_Squashed', N'5.0.5');")
	assert.True(t, strings.HasSuffix(sql, "END"))
	assert.NotContains(t, sql, `"`, "sql is embedded in a verbatim C# string")
}

func TestSQLServerQualifiedTable(t *testing.T) {
	sql, err := Fixup{
		Dialect: SQLServer, Table: "dbo.__EFMigrationsHistory", ProductVersion: "8.0.4",
		TargetID: "20230101000000_Initial", NewID: "20230101000000_Squashed",
	}.SQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM [dbo].[__EFMigrationsHistory]")
	assert.Contains(t, sql, "N'8.0.4'")
}

func TestMySQLFixup(t *testing.T) {
	sql, err := Fixup{Dialect: MySQL, TargetID: "20230101000000_Initial", NewID: "20230101000000_Squashed"}.SQL()
	require.NoError(t, err)

	assert.Contains(t, sql, "SELECT COUNT(*) FROM `__EFMigrationsHistory` WHERE `MigrationId` = '20230101000000_Initial'")
	assert.Contains(t, sql, "SELECT '20230101000000_Squashed', '5.0.5' FROM DUAL")
	assert.Contains(t, sql, "AND `MigrationId` <= '20230101000000_Initial'")
	assert.Contains(t, sql, "AND `MigrationId` <> '20230101000000_Squashed';")
	assert.Less(t, strings.Index(sql, "INSERT INTO"), strings.Index(sql, "DELETE FROM"),
		"the new row is inserted before older rows are removed")
}

func TestFixupEscapesLiterals(t *testing.T) {
	sql, err := Fixup{TargetID: "a'b", NewID: "c"}.SQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "N'a''b'")
}

func TestFixupValidation(t *testing.T) {
	_, err := Fixup{NewID: "x"}.SQL()
	require.Error(t, err)

	_, err = Fixup{Dialect: "db2", TargetID: "a", NewID: "b"}.SQL()
	require.ErrorIs(t, err, ErrUnknownDialect)
}
