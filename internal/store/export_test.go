package store

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestExportImportJSONL(t *testing.T) {
	ctx := context.Background()
	src := NewInMemoryResultStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second"} {
		if err := src.SaveRun(ctx, testResult(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, src, &buf)
	if err != nil {
		t.Fatalf("ExportJSONL() error = %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d runs, want 2", n)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"first"`) {
		t.Fatalf("export should be oldest first, got %d lines", len(lines))
	}

	dst := NewInMemoryResultStore()
	// A corrupt line is skipped, not fatal.
	input := buf.String() + "{not json\n"
	n, err = ImportJSONL(ctx, dst, strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("ImportJSONL() error = %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d runs, want 2", n)
	}

	want, _ := src.GetRun(ctx, "second")
	got, err := dst.GetRun(ctx, "second")
	if err != nil {
		t.Fatalf("GetRun() after import error = %v", err)
	}
	if !reflect.DeepEqual(got.Rows, want.Rows) {
		t.Errorf("imported rows differ")
	}
	if got.Config.BaseSeed != want.Config.BaseSeed {
		t.Errorf("BaseSeed = %d, want %d", got.Config.BaseSeed, want.Config.BaseSeed)
	}
}
