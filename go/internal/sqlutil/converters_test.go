package sqlutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullStringRoundTrip(t *testing.T) {
	assert.Equal(t, sql.NullString{}, ToNullString(""))
	assert.Equal(t, sql.NullString{String: "gg", Valid: true}, ToNullString("gg"))

	assert.Equal(t, "fallback", FromSqlString(sql.NullString{}, "fallback"))
	assert.Equal(t, "gg", FromSqlString(ToNullString("gg"), "fallback"))
}
