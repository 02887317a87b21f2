package core

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/printsmart/printd/internal/db"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(db.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type notified struct {
	userID   string
	title    string
	category string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notified
}

func (n *recordingNotifier) Notify(_ context.Context, userID, title, _, category string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notified{userID: userID, title: title, category: category})
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.title
	}
	return out
}

type fakeProber struct {
	mu        sync.Mutex
	reachable map[string]bool
	portOpen  map[string]bool
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		reachable: make(map[string]bool),
		portOpen:  make(map[string]bool),
	}
}

func (p *fakeProber) Reachable(_ context.Context, host string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reachable[host]
}

func (p *fakeProber) PortOpen(_ context.Context, host string, _ int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.portOpen[host]
}

func (p *fakeProber) set(host string, reachable, portOpen bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reachable[host] = reachable
	p.portOpen[host] = portOpen
}

func seedUser(t *testing.T, database *sql.DB, balance float64) string {
	t.Helper()
	user := &db.User{
		ID:            uuid.NewString(),
		Email:         uuid.NewString() + "@example.com",
		WalletBalance: balance,
	}
	if err := db.CreateUser(context.Background(), database, user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user.ID
}

func seedPrinter(t *testing.T, database *sql.DB, mutate func(*db.Printer)) string {
	t.Helper()
	printer := &db.Printer{
		ID:             uuid.NewString(),
		Name:           "Office Laser " + uuid.NewString()[:8],
		PrinterType:    "laser",
		IPAddress:      "192.0.2.10",
		Port:           9100,
		SupportsColor:  true,
		SupportsDuplex: true,
		MaxPaperSize:   "A4",
		Status:         string(PrinterOnline),
		IsActive:       true,
	}
	if mutate != nil {
		mutate(printer)
	}
	if err := db.CreatePrinter(context.Background(), database, printer); err != nil {
		t.Fatalf("failed to seed printer: %v", err)
	}
	return printer.ID
}

func seedFile(t *testing.T, database *sql.DB, userID, fileType string, pages int) string {
	t.Helper()
	file := &db.File{
		ID:        uuid.NewString(),
		UserID:    userID,
		Filename:  "report." + fileType,
		FileType:  fileType,
		PageCount: pages,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.CreateFile(context.Background(), database, file); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}
	return file.ID
}

func getJob(t *testing.T, database *sql.DB, id string) *db.PrintJob {
	t.Helper()
	job, err := db.GetJob(context.Background(), database, id)
	if err != nil {
		t.Fatalf("failed to get job %s: %v", id, err)
	}
	return job
}

func getBalance(t *testing.T, database *sql.DB, userID string) float64 {
	t.Helper()
	user, err := db.GetUser(context.Background(), database, userID)
	if err != nil {
		t.Fatalf("failed to get user %s: %v", userID, err)
	}
	return user.WalletBalance
}
