package core

import (
	"context"
	"testing"
	"time"

	"github.com/printsmart/printd/internal/db"
)

func TestRegistryCreateAssignsID(t *testing.T) {
	database := testDB(t)
	registry := NewRegistry(database, newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	first := &db.Printer{Name: "Front Desk", PrinterType: "laser", MaxPaperSize: "A4", IsActive: true}
	if err := registry.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first.ID == "" {
		t.Fatal("Create() left the printer ID empty")
	}
	if first.Status != string(PrinterOffline) {
		t.Errorf("Status = %s, want offline default", first.Status)
	}

	second := &db.Printer{Name: "Back Office", PrinterType: "inkjet", MaxPaperSize: "A4", IsActive: true}
	if err := registry.Create(ctx, second); err != nil {
		t.Fatalf("Create() second printer error = %v", err)
	}
	if second.ID == "" || second.ID == first.ID {
		t.Fatalf("second printer ID = %q, want a fresh unique ID", second.ID)
	}

	got, err := registry.Get(ctx, second.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Back Office" {
		t.Errorf("Get() Name = %s, want Back Office", got.Name)
	}
}

func TestRegistryCreateKeepsGivenID(t *testing.T) {
	database := testDB(t)
	registry := NewRegistry(database, newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))

	p := &db.Printer{ID: "printer-7", Name: "Label", PrinterType: "thermal", MaxPaperSize: "A6", IsActive: true}
	if err := registry.Create(context.Background(), p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.ID != "printer-7" {
		t.Errorf("ID = %s, want the caller-supplied one", p.ID)
	}
}
