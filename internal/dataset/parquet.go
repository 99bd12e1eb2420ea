package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/nucleus/ucl-salesforce/internal/entity"
)

var parquetMagic = []byte("PAR1")

// EncodeParquet writes entities as a Parquet file. Every column becomes an
// optional UTF8 string; multi-valued cells are joined with a comma. A
// "uri" column carries the row identifier.
func EncodeParquet(entities *entity.Entities) ([]byte, error) {
	if entities == nil || entities.Schema == nil {
		return nil, errors.New("parquet: schema is required")
	}
	columns := entities.Schema.Columns()
	names := parquetNames(append([]string{"uri"}, columns...))

	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewJSONWriter(parquetSchema(names), pfw, 4)
	if err != nil {
		return nil, fmt.Errorf("parquet: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range entities.Entities {
		rec := make(map[string]string, len(names))
		rec[names[0]] = row.URI
		for i := range columns {
			if i < len(row.Values) {
				rec[names[i+1]] = entity.JoinCell(row.Values[i])
			}
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		if err := pw.Write(string(line)); err != nil {
			_ = pw.WriteStop()
			return nil, fmt.Errorf("parquet: write row %s: %w", row.URI, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("parquet: %w", err)
	}
	if err := pfw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parquetSchema(names []string) string {
	fields := make([]map[string]string, 0, len(names))
	for _, n := range names {
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", n),
		})
	}
	b, _ := json.Marshal(map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	})
	return string(b)
}

// parquetNames turns column paths into unique Parquet field names.
// "Account.Name" becomes "Account_Name".
func parquetNames(columns []string) []string {
	seen := map[string]int{}
	out := make([]string, len(columns))
	for i, c := range columns {
		var b strings.Builder
		for _, r := range c {
			if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			} else {
				b.WriteByte('_')
			}
		}
		name := b.String()
		if name == "" || (name[0] >= '0' && name[0] <= '9') {
			name = "c_" + name
		}
		key := strings.ToLower(name)
		if n := seen[key]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[key]++
		out[i] = name
	}
	return out
}
