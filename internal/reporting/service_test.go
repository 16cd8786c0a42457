package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"ops-dashboard/internal/billing"
	"ops-dashboard/internal/calls"
	"ops-dashboard/internal/store"
	"ops-dashboard/internal/timewindow"
	"ops-dashboard/pkg/logger"

	"github.com/shopspring/decimal"
)

// 2024-05-15 16:00 UTC is noon Wednesday in New York.
var testNow = time.Date(2024, 5, 15, 16, 0, 0, 0, time.UTC)

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func at(t time.Time) *time.Time { return &t }

func mustEqual(t *testing.T, name string, got decimal.NullDecimal, want string) {
	t.Helper()
	if !got.Valid {
		t.Fatalf("%s: expected %s, got null", name, want)
	}
	if !got.Decimal.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: expected %s, got %s", name, want, got.Decimal)
	}
}

func newTestService(t *testing.T, acc store.Accessor, opts Options) *Service {
	t.Helper()
	r, err := timewindow.NewResolver(timewindow.DefaultZone)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	return NewService(acc, r, opts)
}

func seededStore() *store.MemoryStore {
	s := store.NewMemoryStore()
	s.Calls = []calls.Record{
		{ID: "c1", OccurredAt: testNow.Add(-time.Hour), DurationSeconds: 120, Booked: true},
		{ID: "c2", OccurredAt: testNow.Add(-2 * time.Hour), DurationSeconds: 60, Transcript: strPtr("basement flooding, please call back")},
		{ID: "test-1", OccurredAt: testNow, DurationSeconds: 0, CallerNumber: "+15551234567"},
		{ID: "old", OccurredAt: testNow.Add(-72 * time.Hour), DurationSeconds: 60, Booked: true},
	}
	s.Jobs = []billing.Job{
		{ID: "j1", Status: billing.JobStatusArchived, Revenue: dec("500"), EndAt: at(testNow.Add(-time.Hour))},
		{ID: "j2", Status: billing.JobStatusActive, Revenue: dec("300"), EndAt: at(testNow.Add(-time.Hour))},
		{ID: "j3", Status: billing.JobStatusComplete, Revenue: dec("250.50"), EndAt: at(time.Date(2024, 4, 20, 15, 0, 0, 0, time.UTC))},
	}
	s.Invoices = []billing.Invoice{
		{ID: "i1", Status: billing.InvoiceStatusSent, Total: dec("100"), Balance: dec("100"), IssuedAt: at(testNow.Add(-time.Hour))},
		{ID: "i2", Status: billing.InvoiceStatusPaid, Total: dec("75"), Balance: dec("0"), IssuedAt: at(testNow.Add(-48 * time.Hour))},
		{ID: "i3", Status: billing.InvoiceStatusBadDebt, Total: dec("50"), Balance: dec("50"), IssuedAt: at(time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC))},
	}
	s.Payments = []billing.Payment{
		{ID: "p1", Amount: dec("75"), PaidAt: at(testNow.Add(-30 * time.Minute))},
		{ID: "p2", PaidAt: at(testNow.Add(-40 * time.Minute))},
	}
	return s
}

func strPtr(s string) *string { return &s }

func TestReconcile_OnlyClosedJobsCount(t *testing.T) {
	w := timewindow.Window{Start: testNow.Add(-12 * time.Hour), End: testNow.Add(12 * time.Hour)}
	jobs := []billing.Job{
		{ID: "j1", Status: billing.JobStatusArchived, Revenue: dec("500"), EndAt: at(testNow)},
		{ID: "j2", Status: billing.JobStatusActive, Revenue: dec("300"), EndAt: at(testNow)},
	}
	sum, stats := Reconcile(w, jobs, nil, nil)
	mustEqual(t, "jobRevenue", sum.JobRevenue, "500")
	if stats.Jobs != 1 {
		t.Fatalf("expected 1 job counted, got %d", stats.Jobs)
	}
}

func TestReconcile_NullAmountsCountAsZeroButKeepRows(t *testing.T) {
	w := timewindow.Window{Start: testNow.Add(-time.Hour), End: testNow.Add(time.Hour)}
	invoices := []billing.Invoice{
		{ID: "i1", Status: billing.InvoiceStatusDraft, Total: dec("10.10"), IssuedAt: at(testNow)},
		{ID: "i2", Status: billing.InvoiceStatusSent, IssuedAt: at(testNow)},
		{ID: "i3", Status: billing.InvoiceStatusSent, Total: dec("5")},
	}
	payments := []billing.Payment{
		{ID: "p1", Amount: dec("0.10"), PaidAt: at(testNow)},
		{ID: "p2", Amount: dec("0.20"), PaidAt: at(testNow)},
		{ID: "p3", PaidAt: at(testNow)},
	}
	sum, stats := Reconcile(w, nil, invoices, payments)
	mustEqual(t, "invoicedAmount", sum.InvoicedAmount, "10.10")
	mustEqual(t, "collectedAmount", sum.CollectedAmount, "0.30")
	mustEqual(t, "jobRevenue", sum.JobRevenue, "0")
	if stats.Invoices != 2 || stats.Payments != 3 {
		t.Fatalf("unexpected row counts: %+v", stats)
	}
	if stats.NullInvoiceTotals != 1 || stats.NullPaymentAmounts != 1 {
		t.Fatalf("unexpected malformed counts: %+v", stats)
	}
	if u := CountUndated(nil, invoices, payments); u != (UndatedCounts{Invoices: 1}) {
		t.Fatalf("unexpected undated counts: %+v", u)
	}
}

// rawStore returns every stored row regardless of window, as a store whose
// date filter lets NULL dates through would.
type rawStore struct{ *store.MemoryStore }

func (s rawStore) QueryJobs(context.Context, store.JobQuery) ([]billing.Job, error) {
	return s.Jobs, nil
}
func (s rawStore) QueryInvoices(ctx context.Context, q store.InvoiceQuery) ([]billing.Invoice, error) {
	if q.Window == nil {
		return s.MemoryStore.QueryInvoices(ctx, q)
	}
	return s.Invoices, nil
}
func (s rawStore) QueryPayments(context.Context, store.PaymentQuery) ([]billing.Payment, error) {
	return s.Payments, nil
}

func TestAssemble_UndatedRowsLoggedOnce(t *testing.T) {
	ms := seededStore()
	ms.Jobs = append(ms.Jobs, billing.Job{ID: "j-undated", Status: billing.JobStatusComplete, Revenue: dec("10")})
	ms.Invoices = append(ms.Invoices, billing.Invoice{ID: "i-undated", Status: billing.InvoiceStatusSent, Total: dec("10")})
	ms.Payments = append(ms.Payments, billing.Payment{ID: "p-undated", Amount: dec("10")})

	var buf bytes.Buffer
	ctx := logger.With(context.Background(), logger.NewTo(&buf, "local"))
	m, err := newTestService(t, rawStore{ms}, Options{}).Assemble(ctx, testNow)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	mustEqual(t, "thisMonth.invoicedAmount", m.Revenue.ThisMonth.InvoicedAmount, "175")
	mustEqual(t, "thisMonth.jobRevenue", m.Revenue.ThisMonth.JobRevenue, "500")

	var undatedLines int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.Contains(line, "undated records skipped") {
			continue
		}
		undatedLines++
		var entry struct {
			Jobs     int `json:"jobs"`
			Invoices int `json:"invoices"`
			Payments int `json:"payments"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if entry.Jobs != 1 || entry.Invoices != 1 || entry.Payments != 1 {
			t.Fatalf("unexpected undated counts %s", line)
		}
	}
	if undatedLines != 1 {
		t.Fatalf("expected one undated warning, got %d:\n%s", undatedLines, buf.String())
	}
}

func TestOutstanding_StatusAndBalanceGuard(t *testing.T) {
	invoices := []billing.Invoice{
		{ID: "i1", Status: billing.InvoiceStatusSent, Balance: dec("100")},
		{ID: "i2", Status: billing.InvoiceStatusPaid, Balance: dec("0")},
		{ID: "i3", Status: billing.InvoiceStatusBadDebt, Balance: dec("50")},
	}
	got := Outstanding(invoices)
	if got.Count != 2 || !got.TotalOutstanding.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected 150/2, got %s/%d", got.TotalOutstanding, got.Count)
	}

	// Zero-balance unpaid (voided) and null balance are excluded.
	invoices = append(invoices,
		billing.Invoice{ID: "i4", Status: billing.InvoiceStatusSent, Balance: dec("0")},
		billing.Invoice{ID: "i5", Status: billing.InvoiceStatusViewed},
	)
	if again := Outstanding(invoices); again.Count != 2 {
		t.Fatalf("expected guard to exclude zero balances, got %d", again.Count)
	}
}

func TestOutstanding_MonotonicInPositiveBalances(t *testing.T) {
	var invoices []billing.Invoice
	prev := decimal.Zero
	for i, b := range []string{"10", "0.01", "999.99", "3"} {
		invoices = append(invoices, billing.Invoice{ID: string(rune('a' + i)), Status: billing.InvoiceStatusSent, Balance: dec(b)})
		got := Outstanding(invoices).TotalOutstanding
		if got.LessThan(prev) {
			t.Fatalf("total decreased from %s to %s", prev, got)
		}
		prev = got
	}
}

func TestAssemble_FullSnapshot(t *testing.T) {
	svc := newTestService(t, seededStore(), Options{})

	m, err := svc.Assemble(context.Background(), testNow)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(m.Unavailable) != 0 {
		t.Fatalf("expected no unavailable metrics, got %v", m.Unavailable)
	}
	if m.Today == nil {
		t.Fatalf("expected today counts")
	}
	if m.Today.Total != 2 || m.Today.Booked != 1 || m.Today.Emergency != 1 || m.Today.FollowUp != 1 {
		t.Fatalf("unexpected today counts: %+v", *m.Today)
	}

	mustEqual(t, "today.jobRevenue", m.Revenue.Today.JobRevenue, "500")
	mustEqual(t, "today.invoicedAmount", m.Revenue.Today.InvoicedAmount, "100")
	mustEqual(t, "today.collectedAmount", m.Revenue.Today.CollectedAmount, "75")
	mustEqual(t, "thisWeek.invoicedAmount", m.Revenue.ThisWeek.InvoicedAmount, "175")
	mustEqual(t, "thisMonth.jobRevenue", m.Revenue.ThisMonth.JobRevenue, "500")
	mustEqual(t, "lastMonth.jobRevenue", m.Revenue.LastMonth.JobRevenue, "250.50")
	mustEqual(t, "lastMonth.invoicedAmount", m.Revenue.LastMonth.InvoicedAmount, "0")

	if m.Outstanding == nil || m.Outstanding.Count != 2 || !m.Outstanding.TotalOutstanding.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("unexpected outstanding: %+v", m.Outstanding)
	}
}

func TestAssemble_TestCallsNeverCounted(t *testing.T) {
	s := store.NewMemoryStore()
	s.Calls = []calls.Record{{ID: "test-abc", OccurredAt: testNow, DurationSeconds: 0, CallerNumber: "+15551234567"}}
	svc := newTestService(t, s, Options{Policy: calls.Policy{IncludeNonVoice: true}})

	m, err := svc.Assemble(context.Background(), testNow)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if m.Today == nil || *m.Today != (calls.Counts{}) {
		t.Fatalf("expected all-zero counts, got %+v", m.Today)
	}
}

// failingStore wraps a MemoryStore and fails or hangs selected reads.
type failingStore struct {
	*store.MemoryStore
	failInvoices    bool
	failOutstanding bool
	failAll         bool
	hangPayments    chan struct{}
}

var errBoom = errors.New("boom")

func (f failingStore) QueryCalls(ctx context.Context, q store.CallQuery) ([]calls.Record, error) {
	if f.failAll {
		return nil, errBoom
	}
	return f.MemoryStore.QueryCalls(ctx, q)
}

func (f failingStore) QueryJobs(ctx context.Context, q store.JobQuery) ([]billing.Job, error) {
	if f.failAll {
		return nil, errBoom
	}
	return f.MemoryStore.QueryJobs(ctx, q)
}

func (f failingStore) QueryInvoices(ctx context.Context, q store.InvoiceQuery) ([]billing.Invoice, error) {
	if f.failAll {
		return nil, errBoom
	}
	outstanding := q.BalanceGt != nil
	if outstanding && f.failOutstanding || !outstanding && f.failInvoices {
		return nil, errBoom
	}
	return f.MemoryStore.QueryInvoices(ctx, q)
}

func (f failingStore) QueryPayments(ctx context.Context, q store.PaymentQuery) ([]billing.Payment, error) {
	if f.failAll {
		return nil, errBoom
	}
	if f.hangPayments != nil {
		<-f.hangPayments
	}
	return f.MemoryStore.QueryPayments(ctx, q)
}

func TestAssemble_InvoiceReadFailureMarksOnlyInvoicedAmount(t *testing.T) {
	svc := newTestService(t, failingStore{MemoryStore: seededStore(), failInvoices: true}, Options{})

	m, err := svc.Assemble(context.Background(), testNow)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !reflect.DeepEqual(m.Unavailable, []string{MetricInvoicedAmount}) {
		t.Fatalf("expected [%s], got %v", MetricInvoicedAmount, m.Unavailable)
	}
	if m.Revenue.Today.InvoicedAmount.Valid || m.Revenue.LastMonth.InvoicedAmount.Valid {
		t.Fatalf("expected invoicedAmount to be null in every window")
	}
	mustEqual(t, "today.jobRevenue", m.Revenue.Today.JobRevenue, "500")
	mustEqual(t, "today.collectedAmount", m.Revenue.Today.CollectedAmount, "75")
	if m.Today == nil || m.Outstanding == nil {
		t.Fatalf("expected other metrics populated")
	}

	raw, err := json.Marshal(m.Revenue.Today)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := decoded["invoicedAmount"]; !ok || v != nil {
		t.Fatalf("expected invoicedAmount null in JSON, got %s", raw)
	}
}

func TestAssemble_OutstandingFailure(t *testing.T) {
	svc := newTestService(t, failingStore{MemoryStore: seededStore(), failOutstanding: true}, Options{})

	m, err := svc.Assemble(context.Background(), testNow)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !reflect.DeepEqual(m.Unavailable, []string{MetricOutstanding}) {
		t.Fatalf("expected [outstanding], got %v", m.Unavailable)
	}
	if m.Outstanding != nil {
		t.Fatalf("expected outstanding nil")
	}
}

func TestAssemble_HungReadTimesOut(t *testing.T) {
	hang := make(chan struct{})
	t.Cleanup(func() { close(hang) })
	svc := newTestService(t, failingStore{MemoryStore: seededStore(), hangPayments: hang}, Options{ReadTimeout: 50 * time.Millisecond})

	done := make(chan DashboardMetrics, 1)
	go func() {
		m, err := svc.Assemble(context.Background(), testNow)
		if err != nil {
			t.Errorf("unexpected err: %v", err)
		}
		done <- m
	}()

	select {
	case m := <-done:
		if !reflect.DeepEqual(m.Unavailable, []string{MetricCollectedAmount}) {
			t.Fatalf("expected [%s], got %v", MetricCollectedAmount, m.Unavailable)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("assembly hung on a blocked read")
	}
}

func TestAssemble_AllReadsFail(t *testing.T) {
	svc := newTestService(t, failingStore{MemoryStore: seededStore(), failAll: true}, Options{})
	_, err := svc.Assemble(context.Background(), testNow)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected underlying error preserved, got %v", err)
	}
}

func TestAssemble_NoResolverIsFatal(t *testing.T) {
	svc := NewService(seededStore(), nil, Options{})
	if _, err := svc.Assemble(context.Background(), testNow); !errors.Is(err, ErrTimezoneUnavailable) {
		t.Fatalf("expected ErrTimezoneUnavailable, got %v", err)
	}
}

func TestAssemble_Idempotent(t *testing.T) {
	svc := newTestService(t, seededStore(), Options{})

	a, err := svc.Assemble(context.Background(), testNow)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	b, err := svc.Assemble(context.Background(), testNow)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatalf("expected identical snapshots:\n%s\n%s", ja, jb)
	}
}

type recordingObserver struct {
	calls       int
	unavailable []string
}

func (o *recordingObserver) ObserveAssembly(_ time.Duration, unavailable []string) {
	o.calls++
	o.unavailable = unavailable
}

func TestAssemble_NotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	svc := newTestService(t, failingStore{MemoryStore: seededStore(), failInvoices: true}, Options{Observer: obs})
	if _, err := svc.Assemble(context.Background(), testNow); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if obs.calls != 1 || len(obs.unavailable) != 1 {
		t.Fatalf("unexpected observer state: %+v", obs)
	}
}
