package audit

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
)

var sample = []salesforce.BulkResult{
	{Success: true, Created: true, ID: "00Q1", SubmittedAt: 1709294400000},
	{ID: "", SubmittedAt: 1709294400000, Errors: []salesforce.BulkError{
		{StatusCode: "REQUIRED_FIELD_MISSING", Message: "Required fields are missing: [Company]", Fields: []string{"Company"}},
		{Message: "second"},
	}},
}

func TestRows(t *testing.T) {
	rows := Rows("Lead", sample)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{
		Object:      "Lead",
		RecordID:    "00Q1",
		Success:     true,
		Created:     true,
		SubmittedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}, rows[0])
	assert.Equal(t, "REQUIRED_FIELD_MISSING: Required fields are missing: [Company] [Company]; second", rows[1].Errors)
	assert.False(t, rows[1].Success)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Log{Logger: zerolog.New(&buf)}.Record(context.Background(), "Lead", sample))
	assert.Contains(t, buf.String(), "record rejected")
	assert.Contains(t, buf.String(), `"failed":1`)
	assert.NoError(t, Nop{}.Record(context.Background(), "Lead", sample))
}

func TestOpen_WithoutDSNLogs(t *testing.T) {
	sink, closeFn, err := Open(context.Background(), "", zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, Log{}, sink)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("AUDIT_DATABASE_URL")
	if dsn == "" {
		t.Skip("AUDIT_DATABASE_URL not set")
	}
	ctx := context.Background()
	pg, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer pg.Close()

	object := "AuditTest" + time.Now().Format("150405")
	require.NoError(t, pg.Record(ctx, object, sample))
	n, err := pg.Count(ctx, object)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
