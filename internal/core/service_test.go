package core

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/opsdash/internal/config"
	"github.com/JonMunkholm/opsdash/internal/database"
	"github.com/JonMunkholm/opsdash/internal/metrics"
)

var testEpoch = time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, cfg *config.Config, rec *metrics.Recorder) *Service {
	t.Helper()

	store, err := database.OpenSQLite(filepath.Join(t.TempDir(), "opsdash.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.EnsureSchema(context.Background()))

	svc := NewService(store, cfg, rec)

	// Each clock read advances one second so job ordering is deterministic.
	var mu sync.Mutex
	clock := testEpoch
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return svc
}

const mixedCSV = "SKU,Name,Quantity,Threshold\n" +
	"A1,Widget,10,2\n" +
	",Nameless,1,1\n" +
	"B2,Gadget,1.5,1\n" +
	"C3,Gizmo,7,0\n"

// =============================================================================
// Ingest Tests
// =============================================================================

func TestIngest_MixedRows(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	res, err := svc.Ingest(ctx, "stock.csv", []byte(mixedCSV))
	require.NoError(t, err)

	assert.Equal(t, SourceCSV, res.Source)
	assert.Equal(t, EncodingUTF8, res.Encoding)
	assert.Equal(t, ",", res.Delimiter)
	assert.Equal(t, 4, res.TotalRows)
	assert.Equal(t, 2, res.ValidRows)
	assert.Equal(t, 2, res.InvalidRows)

	job, err := svc.GetJob(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, database.JobCompleted, job.Status)
	assert.Equal(t, "csv", job.Source)
	assert.Equal(t, "stock.csv", job.Filename)
	assert.Equal(t, 4, job.TotalRows)
	assert.Equal(t, 2, job.ValidRows)
	assert.Equal(t, 2, job.InvalidRows)
	assert.Equal(t, 0, job.ProcessedRows)
	assert.NotNil(t, job.CompletedAt)
	assert.Nil(t, job.Error)

	invalid, err := svc.ListInvalidRows(ctx, res.JobID)
	require.NoError(t, err)
	require.Len(t, invalid, 2)
	assert.Equal(t, 2, invalid[0].RowNumber)
	assert.Equal(t, MsgSKURequired, *invalid[0].Error)
	assert.Equal(t, 3, invalid[1].RowNumber)
	assert.Equal(t, MsgQuantityInteger, *invalid[1].Error)
	assert.JSONEq(t, `{"SKU":"B2","Name":"Gadget","Quantity":"1.5","Threshold":"1"}`, invalid[1].RawText)

	valid, err := svc.store.ListStagingRows(ctx, res.JobID, database.RowValid)
	require.NoError(t, err)
	require.Len(t, valid, 2)
	assert.Equal(t, "A1", *valid[0].SKU)
	assert.Equal(t, int32(10), *valid[0].Quantity)
	assert.Nil(t, valid[0].Error)
	assert.True(t, valid[0].Complete())
}

func TestIngest_InputFailures(t *testing.T) {
	utf16Blank := encodeUTF16("\r\n  \r\n", binary.LittleEndian, true)

	tests := []struct {
		name       string
		data       []byte
		wantReason string
		wantTotal  int
	}{
		{"zero bytes", nil, ReasonEmpty, 0},
		{"whitespace only", []byte(" \n\r\n\t "), ReasonEmpty, 0},
		{"utf-16 blank", utf16Blank, ReasonEmpty, 0},
		{"header only", []byte("sku,name,quantity,threshold\n"), ReasonUnparseable, 0},
		{"missing column", []byte("sku,name,quantity\nA,B,1\nC,D,2\n"), "missing-column:threshold", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc := newTestService(t, nil, nil)

			res, err := svc.Ingest(ctx, "bad.csv", tt.data)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, KindInput, KindOf(err))
			assert.Equal(t, tt.wantReason, ReasonOf(err))

			var e *Error
			require.ErrorAs(t, err, &e)
			require.NotEmpty(t, e.JobID, "input errors carry the failed job id")

			job, err := svc.GetJob(ctx, e.JobID)
			require.NoError(t, err)
			assert.Equal(t, database.JobFailed, job.Status)
			assert.Equal(t, tt.wantTotal, job.TotalRows)
			assert.Equal(t, tt.wantTotal, job.InvalidRows)
			assert.Equal(t, 0, job.ValidRows)
			require.NotNil(t, job.Error)
			assert.Equal(t, tt.wantReason, *job.Error)

			for _, status := range []database.RowStatus{database.RowValid, database.RowInvalid} {
				rows, err := svc.store.ListStagingRows(ctx, e.JobID, status)
				require.NoError(t, err)
				assert.Empty(t, rows, "no rows staged for a rejected upload")
			}
		})
	}
}

func TestIngest_UTF16Semicolon(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	data := encodeUTF16("sku;name;quantity;threshold\r\nA1;Café;3;1\r\n", binary.LittleEndian, true)
	res, err := svc.Ingest(ctx, "export.csv", data)
	require.NoError(t, err)

	assert.Equal(t, EncodingUTF16LE, res.Encoding)
	assert.Equal(t, ";", res.Delimiter)
	assert.Equal(t, 1, res.ValidRows)

	rows, err := svc.store.ListStagingRows(ctx, res.JobID, database.RowValid)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Café", *rows[0].Name)
}

func TestIngest_TabEmptyCellDoesNotShiftColumns(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	data := "sku\tname\tquantity\tthreshold\tnote\n" +
		"A1\t\t5\t2\t7\n" +
		"B2\tGadget\t\t1\tx\n" +
		"C3\tGizmo\t4\t1\t\n"
	res, err := svc.Ingest(ctx, "stock.tsv", []byte(data))
	require.NoError(t, err)
	assert.Equal(t, "tab", res.Delimiter)
	assert.Equal(t, 1, res.ValidRows)
	assert.Equal(t, 2, res.InvalidRows)

	invalid, err := svc.ListInvalidRows(ctx, res.JobID)
	require.NoError(t, err)
	require.Len(t, invalid, 2)
	assert.Equal(t, MsgNameRequired, *invalid[0].Error)
	assert.Equal(t, MsgQuantityInteger, *invalid[1].Error)

	promoted, err := svc.Promote(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted.Created)

	_, err = svc.store.GetProductBySKU(ctx, "A1")
	assert.ErrorIs(t, err, database.ErrNotFound)
	p, err := svc.store.GetProductBySKU(ctx, "C3")
	require.NoError(t, err)
	assert.Equal(t, "Gizmo", p.Name)
	assert.Equal(t, int32(4), p.Quantity)
}

func TestIngest_Spreadsheet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf, TemplateXLSX))

	res, err := svc.Ingest(ctx, "template.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, SourceXLSX, res.Source)
	assert.Equal(t, "xlsx", res.Delimiter)
	assert.Equal(t, 1, res.ValidRows)

	job, err := svc.GetJob(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", job.Source)
}

func TestIngest_CorruptSpreadsheetIsUnparseable(t *testing.T) {
	svc := newTestService(t, nil, nil)

	_, err := svc.Ingest(context.Background(), "broken.xlsx", []byte("definitely not a workbook"))
	require.Error(t, err)
	assert.Equal(t, ReasonUnparseable, ReasonOf(err))
}

func TestIngest_BusyLimiter(t *testing.T) {
	cfg := &config.Config{Upload: config.UploadConfig{MaxConcurrent: 1, MaxWaitTime: 20 * time.Millisecond}}
	svc := newTestService(t, cfg, nil)

	require.NoError(t, svc.Limiter().Acquire(context.Background()))
	defer svc.Limiter().Release()

	_, err := svc.Ingest(context.Background(), "stock.csv", []byte(mixedCSV))
	require.Error(t, err)
	assert.Equal(t, KindBusy, KindOf(err))
	assert.Equal(t, "UPL002", MapError(err).Code)

	jobs, err := svc.ListJobs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, jobs, "a rejected upload creates no job")
}

// =============================================================================
// Promote Tests
// =============================================================================

func TestPromote_CreatesProductsAndSnapshots(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	res, err := svc.Ingest(ctx, "stock.csv", []byte(mixedCSV))
	require.NoError(t, err)

	out, err := svc.Promote(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, &PromoteResult{JobID: res.JobID, Created: 2, Updated: 0, Snapshots: 2}, out)

	p, err := svc.store.GetProductBySKU(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Name)
	assert.Equal(t, int32(10), p.Quantity)
	assert.Equal(t, int32(2), p.Threshold)

	levels, err := svc.store.ListInventoryLevels(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, int32(10), levels[0].Quantity)

	job, err := svc.GetJob(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, 2, job.ProcessedRows)

	processed, err := svc.store.ListStagingRows(ctx, res.JobID, database.RowProcessed)
	require.NoError(t, err)
	require.Len(t, processed, 2)
	for _, row := range processed {
		assert.NotNil(t, row.ProcessedAt)
	}

	invalid, err := svc.ListInvalidRows(ctx, res.JobID)
	require.NoError(t, err)
	assert.Len(t, invalid, 2, "invalid rows are never promoted")
}

func TestPromote_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	res, err := svc.Ingest(ctx, "stock.csv", []byte(mixedCSV))
	require.NoError(t, err)
	_, err = svc.Promote(ctx, res.JobID)
	require.NoError(t, err)

	again, err := svc.Promote(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, &PromoteResult{JobID: res.JobID}, again)

	p, err := svc.store.GetProductBySKU(ctx, "C3")
	require.NoError(t, err)
	levels, err := svc.store.ListInventoryLevels(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, levels, 1, "second promotion appends no snapshots")

	job, err := svc.GetJob(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, 2, job.ProcessedRows)
}

func TestPromote_DuplicateSKULastRowWins(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	csv := "sku,name,quantity,threshold\nA1,First,5,1\nB2,Other,1,1\nA1,Second,9,3\n"
	res, err := svc.Ingest(ctx, "dupes.csv", []byte(csv))
	require.NoError(t, err)

	out, err := svc.Promote(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Created)
	assert.Equal(t, 1, out.Updated)
	assert.Equal(t, 2, out.Snapshots, "one snapshot per distinct product")

	p, err := svc.store.GetProductBySKU(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Second", p.Name)
	assert.Equal(t, int32(9), p.Quantity)

	levels, err := svc.store.ListInventoryLevels(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, int32(9), levels[0].Quantity)

	job, err := svc.GetJob(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, 2, job.ProcessedRows)
	assert.LessOrEqual(t, job.ProcessedRows, job.ValidRows)
}

func TestPromote_UpdatesExistingProducts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	first, err := svc.Ingest(ctx, "a.csv", []byte("sku,name,quantity,threshold\nA1,Widget,10,2\n"))
	require.NoError(t, err)
	_, err = svc.Promote(ctx, first.JobID)
	require.NoError(t, err)

	second, err := svc.Ingest(ctx, "b.csv", []byte("sku,name,quantity,threshold\nA1,Widget v2,4,2\nZ9,New,1,0\n"))
	require.NoError(t, err)
	out, err := svc.Promote(ctx, second.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Created)
	assert.Equal(t, 1, out.Updated)

	p, err := svc.store.GetProductBySKU(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Widget v2", p.Name)
	assert.Equal(t, int32(4), p.Quantity)

	levels, err := svc.store.ListInventoryLevels(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, levels, 2, "each promotion appends a snapshot")
}

func TestPromote_UnknownJob(t *testing.T) {
	svc := newTestService(t, nil, nil)

	_, err := svc.Promote(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "IMP004", MapError(err).Code)
}

func TestPromote_FailedJobHasNothingToPromote(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	_, err := svc.Ingest(ctx, "bad.csv", []byte("sku\nA1\n"))
	var e *Error
	require.ErrorAs(t, err, &e)

	out, err := svc.Promote(ctx, e.JobID)
	require.NoError(t, err)
	assert.Zero(t, out.Created+out.Updated+out.Snapshots)
}

func TestPromote_ConcurrentCallsPromoteOnce(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	res, err := svc.Ingest(ctx, "stock.csv", []byte(mixedCSV))
	require.NoError(t, err)

	const workers = 4
	results := make([]*PromoteResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.Promote(ctx, res.JobID)
		}()
	}
	wg.Wait()

	var created, snapshots int
	for i := range workers {
		require.NoError(t, errs[i])
		created += results[i].Created + results[i].Updated
		snapshots += results[i].Snapshots
	}
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, snapshots)
	assert.Zero(t, svc.locks.size(), "job locks are released")
}

// =============================================================================
// Job Query/Admin Tests
// =============================================================================

func TestListJobs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	var ids []string
	for _, name := range []string{"one.csv", "two.csv", "three.csv"} {
		res, err := svc.Ingest(ctx, name, []byte(mixedCSV))
		require.NoError(t, err)
		ids = append(ids, res.JobID)
	}

	jobs, err := svc.ListJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, ids[2], jobs[0].ID, "newest first")
	assert.Equal(t, ids[0], jobs[2].ID)

	limited, err := svc.ListJobs(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	capped, err := svc.ListJobs(ctx, MaxListLimit*10)
	require.NoError(t, err)
	assert.Len(t, capped, 3)
}

func TestListJobs_EmptyIsNotNil(t *testing.T) {
	svc := newTestService(t, nil, nil)

	jobs, err := svc.ListJobs(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestGetJobAndInvalidRows_NotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	_, err := svc.GetJob(ctx, "nope")
	assert.True(t, IsNotFound(err))

	_, err = svc.ListInvalidRows(ctx, "nope")
	assert.True(t, IsNotFound(err))
}

func TestDeleteJob(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	res, err := svc.Ingest(ctx, "stock.csv", []byte(mixedCSV))
	require.NoError(t, err)
	_, err = svc.Promote(ctx, res.JobID)
	require.NoError(t, err)

	out, err := svc.DeleteJob(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Jobs: 1, Rows: 4}, out)

	_, err = svc.GetJob(ctx, res.JobID)
	assert.True(t, IsNotFound(err))

	_, err = svc.store.GetProductBySKU(ctx, "A1")
	assert.NoError(t, err, "promoted products survive job deletion")

	_, err = svc.DeleteJob(ctx, res.JobID)
	assert.True(t, IsNotFound(err))
}

func TestDeleteAllJobs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	for range 2 {
		_, err := svc.Ingest(ctx, "stock.csv", []byte(mixedCSV))
		require.NoError(t, err)
	}
	_, err := svc.Ingest(ctx, "empty.csv", nil)
	require.Error(t, err)

	out, err := svc.DeleteAllJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Jobs: 3, Rows: 8}, out)

	jobs, err := svc.ListJobs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

// =============================================================================
// Preview Tests
// =============================================================================

func TestPreview(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &config.Config{Upload: config.UploadConfig{PreviewSampleSize: 1}}, nil)

	seed, err := svc.Ingest(ctx, "seed.csv", []byte("sku,name,quantity,threshold\nA1,Widget,1,1\n"))
	require.NoError(t, err)
	_, err = svc.Promote(ctx, seed.JobID)
	require.NoError(t, err)

	csv := "sku,name,quantity,threshold\n" +
		"A1,Widget,5,1\n" +
		"N1,New,2,0\n" +
		"N1,New again,3,0\n" +
		",Bad,1,1\n" +
		"X,Bad,-1,1\n"
	out, err := svc.Preview(ctx, "next.csv", []byte(csv))
	require.NoError(t, err)

	assert.Equal(t, PreviewSummary{
		TotalRows:       5,
		ValidRows:       3,
		InvalidRows:     2,
		NewProducts:     1,
		UpdatedProducts: 1,
		DuplicateInFile: 1,
	}, out.Summary)
	require.Len(t, out.ErrorSamples, 1, "samples capped by configuration")
	assert.Equal(t, 4, out.ErrorSamples[0].LineNumber)
	assert.Equal(t, MsgSKURequired, out.ErrorSamples[0].Error)
	require.Len(t, out.DuplicateSamples, 1)
	assert.Equal(t, DuplicatePreview{SKU: "N1", LineNumbers: []int{2, 3}}, out.DuplicateSamples[0])

	jobs, err := svc.ListJobs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "preview persists nothing")
}

func TestPreview_InputErrorsHaveNoJob(t *testing.T) {
	svc := newTestService(t, nil, nil)

	_, err := svc.Preview(context.Background(), "x.csv", []byte("sku,name\nA,B\n"))
	require.Error(t, err)
	assert.Equal(t, "missing-column:quantity", ReasonOf(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Empty(t, e.JobID)
}

// =============================================================================
// Reaper Tests
// =============================================================================

func TestReapStaleJobs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	_, err := svc.store.CreateJob(ctx, database.CreateJobParams{
		ID:        "stale",
		Source:    SourceCSV,
		Filename:  "crashed.csv",
		Status:    database.JobProcessing,
		CreatedAt: testEpoch.Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.store.CreateJob(ctx, database.CreateJobParams{
		ID:        "fresh",
		Source:    SourceCSV,
		Filename:  "running.csv",
		Status:    database.JobProcessing,
		CreatedAt: testEpoch,
	})
	require.NoError(t, err)

	n, err := svc.ReapStaleJobs(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stale, err := svc.GetJob(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, database.JobFailed, stale.Status)
	require.NotNil(t, stale.Error)
	assert.Equal(t, StaleJobReason, *stale.Error)

	fresh, err := svc.GetJob(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, database.JobProcessing, fresh.Status)
}

func TestStartStaleJobReaper_StopsOnCancel(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartStaleJobReaper(ctx, ReaperConfig{StaleAfter: time.Minute, CheckInterval: 10 * time.Millisecond})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}

// =============================================================================
// Metrics Wiring
// =============================================================================

func TestServiceRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	rec := metrics.New()
	svc := newTestService(t, nil, rec)

	res, err := svc.Ingest(ctx, "stock.csv", []byte(mixedCSV))
	require.NoError(t, err)
	_, err = svc.Promote(ctx, res.JobID)
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "empty.csv", nil)
	require.Error(t, err)

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Contains(t, body, `opsdash_import_jobs_total{status="COMPLETED"} 1`)
	assert.Contains(t, body, `opsdash_import_jobs_total{status="FAILED"} 1`)
	assert.Contains(t, body, `opsdash_staging_rows_total{status="VALID"} 2`)
	assert.Contains(t, body, `opsdash_staging_rows_total{status="PROCESSED"} 2`)
	assert.Contains(t, body, `opsdash_promotion_products_total{outcome="created"} 2`)
	assert.Contains(t, body, "opsdash_inventory_snapshots_total 2")
	assert.Contains(t, body, "opsdash_uploads_active 0")
}

func TestJobLocksReleased(t *testing.T) {
	l := newJobLocks()
	unlockA := l.lock("a")
	unlockB := l.lock("b")
	assert.Equal(t, 2, l.size())

	acquired := make(chan struct{})
	go func() {
		unlock := l.lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same id should block")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()
	assert.Eventually(t, func() bool { return l.size() == 0 }, time.Second, 5*time.Millisecond)
}
