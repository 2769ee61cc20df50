package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"lifai-relay/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// newTestDB opens a private in-memory database. One connection keeps every
// query on the same memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestLedger(t *testing.T) (*LedgerService, *GormStores) {
	t.Helper()
	stores := NewGormStores(newTestDB(t))
	l := NewLedgerService(stores, DefaultRateTable(), nil, time.UTC)
	l.Now = func() time.Time { return fixedNow }
	return l, stores
}

func seedMember(t *testing.T, stores *GormStores, loginID, refCode string, plan models.Plan, referrer string) *models.Member {
	t.Helper()
	m := &models.Member{
		LoginID:         loginID,
		RefCode:         refCode,
		Email:           loginID + "@example.com",
		Plan:            plan,
		ReferrerLoginID: referrer,
		SourceApplyID:   "src-" + loginID,
		Active:          true,
	}
	require.NoError(t, stores.UpsertMember(context.Background(), m))
	return m
}

// seedApproved registers an application and moves it straight to approved.
func seedApproved(t *testing.T, l *LedgerService, applyID string, plan models.Plan, refID, email string) *models.Application {
	t.Helper()
	ctx := context.Background()
	_, _, err := l.RegisterApplication(ctx, &models.Application{
		ApplyID: applyID,
		Plan:    plan,
		Email:   email,
		Name:    "Test " + applyID,
		RefID:   refID,
	})
	require.NoError(t, err)
	app, _, err := l.Stores.Applications().AdvanceStatus(ctx, applyID, models.ApplicationStatusApproved, fixedNow)
	require.NoError(t, err)
	return app
}

// setCapUsage pretends part of a tier's monthly budget is already spent.
func setCapUsage(t *testing.T, stores *GormStores, referrer string, plan models.Plan, period string, count int, ep int64) {
	t.Helper()
	ctx := context.Background()
	st, err := stores.LockCapState(ctx, referrer, plan, period)
	require.NoError(t, err)
	st.ReferralCountThisMonth = count
	st.EPGrantedThisMonth = ep
	require.NoError(t, stores.SaveCapState(ctx, st))
}

type gasCall struct {
	Method string
	Query  url.Values
	Body   map[string]interface{}
}

func (c gasCall) action() string {
	if a := c.Query.Get("action"); a != "" {
		return a
	}
	a, _ := c.Body["action"].(string)
	return a
}

// fakeGAS stands in for the spreadsheet web app and records every call.
type fakeGAS struct {
	srv   *httptest.Server
	mu    sync.Mutex
	calls []gasCall
	reply func(c gasCall) (int, string)
}

func newFakeGAS(t *testing.T, reply func(c gasCall) (int, string)) *fakeGAS {
	t.Helper()
	f := &fakeGAS{reply: reply}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := gasCall{Method: r.Method, Query: r.URL.Query()}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &call.Body)
		}
		f.mu.Lock()
		f.calls = append(f.calls, call)
		f.mu.Unlock()

		status, body := http.StatusOK, `{"ok":true}`
		if f.reply != nil {
			status, body = f.reply(call)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGAS) client() *GASClient {
	return NewGASClient(f.srv.URL, "test-key", "admin-key", 2*time.Second)
}

func (f *fakeGAS) callsFor(action string) []gasCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gasCall
	for _, c := range f.calls {
		if c.action() == action {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeGAS) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
