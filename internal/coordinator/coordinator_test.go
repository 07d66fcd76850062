package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fapiao-client/internal/api"
	"github.com/garyjia/fapiao-client/internal/auth"
	"github.com/garyjia/fapiao-client/internal/client"
	"github.com/garyjia/fapiao-client/internal/history"
	"github.com/garyjia/fapiao-client/internal/models"
	"github.com/garyjia/fapiao-client/internal/storage"
	"github.com/garyjia/fapiao-client/internal/store"
	"github.com/garyjia/fapiao-client/internal/voucher"
	"github.com/garyjia/fapiao-client/pkg/database"
)

func envelope(w http.ResponseWriter, data any) {
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

type testApp struct {
	coord   *Coordinator
	state   *store.Store
	history *history.Repository
	dir     string
}

// newTestApp wires a full coordinator against an httptest backend and logs in
func newTestApp(t *testing.T, mux *http.ServeMux) *testApp {
	t.Helper()
	logger := zap.NewNop()
	dir := t.TempDir()

	mux.HandleFunc("/qywechat/web/login", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, api.LoginResult{
			UserID:     "u1",
			UserName:   "张三",
			SessionKey: "key-1",
			Region:     "华东",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	backend := client.New(srv.URL, 5*time.Second, logger)
	authAPI := api.NewAuthAPI(backend)
	session := auth.NewStore(authAPI, storage.NewFileSnapshotStore(dir, logger), logger)
	backend.SetSessionProvider(session)

	ok, err := session.Login(context.Background(), "code")
	require.NoError(t, err)
	require.True(t, ok)

	db, err := database.New(database.Config{Path: filepath.Join(dir, "history.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	historyRepo, err := history.NewRepository(db, logger)
	require.NoError(t, err)

	state := store.New(logger)
	state.SeedSubmitter(session.UserName(), session.Region())

	coord := New(
		api.NewUploadAPI(backend, 0, 0),
		api.NewReimbursementAPI(backend),
		session,
		state,
		historyRepo,
		voucher.NewExporter(filepath.Join(dir, "vouchers"), logger),
		10,
		logger,
	)
	return &testApp{coord: coord, state: state, history: historyRepo, dir: dir}
}

func (a *testApp) stageFakeInvoices(t *testing.T, count int) {
	t.Helper()
	paths := make([]string, count)
	for i := range paths {
		paths[i] = filepath.Join(a.dir, fmt.Sprintf("inv_%d.jpg", i))
		require.NoError(t, os.WriteFile(paths[i], []byte("jpegdata"), 0o644))
	}
	require.NoError(t, a.coord.StageFiles(paths))
}

func TestStageFilesRejectsBadType(t *testing.T) {
	app := newTestApp(t, http.NewServeMux())
	path := filepath.Join(app.dir, "doc.docx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	assert.Error(t, app.coord.StageFiles([]string{path}))
}

func TestUploadPairsValidationsByInvoiceIndex(t *testing.T) {
	mux := http.NewServeMux()
	idx0, idx1 := 0, 1
	mux.HandleFunc("/upload/invoice", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, api.UploadResult{
			InvoiceInfos: []models.InvoiceInfo{
				{InvoiceNo: "I0", TotalAmount: "10", MediaID: "m0"},
				{InvoiceNo: "I1", TotalAmount: "20", MediaID: "m1"},
			},
			MediaIDs: "m0,m1",
			ValidationResult: &api.BatchValidationResult{
				Results: []api.ValidationEntry{
					{InvoiceIndex: &idx1, ValidationResult: &models.ValidationResult{
						Valid:      false,
						Violations: []models.Violation{{Message: "X"}},
					}},
					{InvoiceIndex: &idx0, ValidationResult: &models.ValidationResult{
						Valid:      false,
						Violations: []models.Violation{{Message: "Y"}},
					}},
				},
			},
		})
	})

	app := newTestApp(t, mux)
	app.stageFakeInvoices(t, 2)

	stats, err := app.coord.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)

	// results arrived out of order; invoiceIndex wins over slice position
	assert.Equal(t, "Y", app.state.Validation(0).Violations[0].Message)
	assert.Equal(t, "X", app.state.Validation(1).Violations[0].Message)
	assert.Equal(t, "30.00", app.state.TotalAmount())
}

func TestUploadPairsByPositionWithoutInvoiceIndex(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/invoice", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, api.UploadResult{
			InvoiceInfos: []models.InvoiceInfo{{InvoiceNo: "I0", MediaID: "m0"}},
			ValidationResult: &api.BatchValidationResult{
				Results: []api.ValidationEntry{
					{ValidationResult: &models.ValidationResult{
						Valid:      false,
						Violations: []models.Violation{{Message: "Z"}},
					}},
				},
			},
		})
	})

	app := newTestApp(t, mux)
	app.stageFakeInvoices(t, 1)

	_, err := app.coord.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Z", app.state.Validation(0).Violations[0].Message)
}

func TestComputeTravelDays(t *testing.T) {
	tests := []struct {
		name                     string
		start, startP, end, endP string
		want                     string
	}{
		{"single full day", "2025-06-10", models.PeriodMorning, "2025-06-10", models.PeriodAfternoon, "1"},
		{"single half day morning", "2025-06-10", models.PeriodMorning, "2025-06-10", models.PeriodMorning, "0.5"},
		{"afternoon start", "2025-06-10", models.PeriodAfternoon, "2025-06-12", models.PeriodAfternoon, "2.5"},
		{"both half deductions", "2025-06-10", models.PeriodAfternoon, "2025-06-12", models.PeriodMorning, "2"},
		{"full range", "2025-06-10", models.PeriodMorning, "2025-06-12", models.PeriodAfternoon, "3"},
		{"end before start", "2025-06-12", models.PeriodMorning, "2025-06-10", models.PeriodMorning, "0"},
		{"garbage input", "not-a-date", models.PeriodMorning, "2025-06-10", models.PeriodMorning, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeTravelDays(tt.start, tt.startP, tt.end, tt.endP))
		})
	}
}

func TestPrefillTravelDates(t *testing.T) {
	app := newTestApp(t, http.NewServeMux())
	app.state.SetFormType(models.FormTypeCustomerTravel)
	app.state.UpdateForm(func(f *models.ReimbursementForm) {
		f.FormReimbursementReason = "出差 2024-03-04 到 2024-03-20"
	})

	app.coord.PrefillTravelDates()

	form := app.state.Form()
	assert.Equal(t, "2024-03-04", form.TravelStartDate)
	assert.Equal(t, "2024-03-20", form.TravelEndDate)
	assert.Equal(t, models.PeriodMorning, form.TravelStartPeriod)
	assert.Equal(t, models.PeriodMorning, form.TravelEndPeriod)
	assert.Equal(t, "16.5", form.TravelDays)
}

func TestPrefillNeverOverwrites(t *testing.T) {
	app := newTestApp(t, http.NewServeMux())
	app.state.SetFormType(models.FormTypeCustomerTravel)
	app.state.UpdateForm(func(f *models.ReimbursementForm) {
		f.FormReimbursementReason = "出差 2024-03-04 到 2024-03-20"
		f.TravelStartDate = "2025-01-01"
	})

	app.coord.PrefillTravelDates()

	assert.Equal(t, "2025-01-01", app.state.Form().TravelStartDate)
	assert.Empty(t, app.state.Form().TravelEndDate)
}

func fillValidForm(state *store.Store) {
	state.UpdateForm(func(f *models.ReimbursementForm) {
		f.Region = "华东"
		f.CostDepartment = "客户成功部"
		f.FormReimbursementReason = "日常采购"
	})
}

func TestSubmitPipeline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/invoice", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, api.UploadResult{
			InvoiceInfos: []models.InvoiceInfo{
				{InvoiceNo: "N1", InvoiceDate: "2025-06-01", ReimbursementType: "交通", TotalAmount: "100", MediaID: "m1"},
			},
			MediaIDs: "m1",
		})
	})
	var submitted models.ReimbursementSubmitData
	mux.HandleFunc("/reimbursement/submit", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&submitted)
		envelope(w, "R-1")
	})

	app := newTestApp(t, mux)
	app.state.SetFormType("日常报销单")
	app.stageFakeInvoices(t, 1)
	_, err := app.coord.Upload(context.Background())
	require.NoError(t, err)
	fillValidForm(app.state)

	result, err := app.coord.Submit(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "R-1", result.ReceiptID)
	assert.Equal(t, "u1", submitted.UserID)
	assert.Equal(t, "100.00", submitted.TotalAmount)
	assert.Equal(t, "m1", submitted.MediaIDs)

	// the voucher landed on disk
	require.NotEmpty(t, result.VoucherPath)
	_, statErr := os.Stat(result.VoucherPath)
	assert.NoError(t, statErr)

	// the submission is in the local log
	subs, err := app.history.List(10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "R-1", subs[0].ReceiptID)

	// state is reset for the next claim
	assert.Equal(t, 0, app.state.InvoiceCount())
}

func TestSubmitBlocksLocalDuplicates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/invoice", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, api.UploadResult{
			InvoiceInfos: []models.InvoiceInfo{
				{InvoiceNo: "N1", InvoiceDate: "2025-06-01", ReimbursementType: "交通", TotalAmount: "100", MediaID: "m1"},
			},
		})
	})
	mux.HandleFunc("/reimbursement/submit", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, "R-2")
	})

	app := newTestApp(t, mux)
	require.NoError(t, app.history.Record(&history.Submission{
		ReceiptID:   "R-1",
		FormType:    "日常报销单",
		TotalAmount: "100",
		SubmittedAt: time.Now(),
	}, []models.InvoiceInfo{{InvoiceNo: "N1", InvoiceDate: "2025-06-01"}}))

	app.state.SetFormType("日常报销单")
	app.stageFakeInvoices(t, 1)
	_, err := app.coord.Upload(context.Background())
	require.NoError(t, err)
	fillValidForm(app.state)

	_, err = app.coord.Submit(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "疑似重复提交")

	// force pushes through
	result, err := app.coord.Submit(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "R-2", result.ReceiptID)
}

func TestSubmitBlocksSevereValidationError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/invoice", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, api.UploadResult{
			InvoiceInfos: []models.InvoiceInfo{
				{InvoiceNo: "N1", ReimbursementType: "交通", TotalAmount: "100", MediaID: "m1"},
			},
			ValidationResult: &api.BatchValidationResult{
				Results: []api.ValidationEntry{
					{ValidationResult: &models.ValidationResult{
						Valid: false,
						Violations: []models.Violation{{
							Field:   "verification_status",
							Message: "真伪验证失败",
						}},
					}},
				},
			},
		})
	})

	app := newTestApp(t, mux)
	app.state.SetFormType("日常报销单")
	app.stageFakeInvoices(t, 1)
	_, err := app.coord.Upload(context.Background())
	require.NoError(t, err)
	fillValidForm(app.state)

	_, err = app.coord.Submit(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "严重校验错误")
}

func TestSubmitRequiresMedia(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/invoice", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, api.UploadResult{
			InvoiceInfos: []models.InvoiceInfo{
				{InvoiceNo: "N1", ReimbursementType: "交通", TotalAmount: "100"},
			},
		})
	})

	app := newTestApp(t, mux)
	app.state.SetFormType("日常报销单")
	app.stageFakeInvoices(t, 1)
	_, err := app.coord.Upload(context.Background())
	require.NoError(t, err)
	fillValidForm(app.state)

	_, err = app.coord.Submit(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "缺少附件")
}
