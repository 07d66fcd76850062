package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/fapiao-client/internal/api"
	"github.com/garyjia/fapiao-client/internal/auth"
	"github.com/garyjia/fapiao-client/internal/client"
	"github.com/garyjia/fapiao-client/internal/config"
	"github.com/garyjia/fapiao-client/internal/coordinator"
	"github.com/garyjia/fapiao-client/internal/history"
	"github.com/garyjia/fapiao-client/internal/models"
	"github.com/garyjia/fapiao-client/internal/storage"
	"github.com/garyjia/fapiao-client/internal/store"
	"github.com/garyjia/fapiao-client/internal/voucher"
	"github.com/garyjia/fapiao-client/pkg/database"
	"github.com/garyjia/fapiao-client/pkg/utils"
)

const usage = `Usage: fapiao [flags] <command> [args]

Commands:
  login                      Log in through WeCom OAuth
  logout                     Clear the local session
  upload <file>...           Upload invoice files for OCR and validation
                             (--chunked for per-file sessions, --wedrive for drive tickets)
  submit                     Submit the staged claim
  list                       Show the server-side submission history
  history                    Show the local submission log
  departments                Show the department tree
  reset                      Discard the staged claim
  health                     Check backend availability
`

// app bundles the wired components handed to each command
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	authAPI     *api.AuthAPI
	departments *api.DepartmentAPI
	session     *auth.Store
	state       *store.Store
	coord       *coordinator.Coordinator
	history     *history.Repository
	records     *api.ReimbursementAPI
	flows       storage.FlowStore
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// .env mirrors the browser client's VITE_* variables
	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.New(database.Config{Path: cfg.Storage.HistoryDB}, logger)
	if err != nil {
		logger.Fatal("Failed to open local database", zap.Error(err))
	}
	defer db.Close()

	historyRepo, err := history.NewRepository(db, logger)
	if err != nil {
		logger.Fatal("Failed to initialize history log", zap.Error(err))
	}

	// the backend client and the session store reference each other, so the
	// session hooks are attached after both exist
	backend := client.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	authAPI := api.NewAuthAPI(backend)
	snapshots := storage.NewFileSnapshotStore(cfg.Storage.SnapshotDir, logger)
	session := auth.NewStore(authAPI, snapshots, logger)
	backend.SetSessionProvider(session)
	backend.SetUnauthorizedHandler(session.ForceLogout)

	state := store.New(logger)
	if session.IsLoggedIn() {
		state.SeedSubmitter(session.UserName(), session.Region())
	}
	flows := storage.NewFileFlowStore(cfg.Storage.SnapshotDir, logger)

	coord := coordinator.New(
		api.NewUploadAPI(backend, cfg.Upload.BatchTimeout, cfg.Upload.SingleTimeout),
		api.NewReimbursementAPI(backend),
		session,
		state,
		historyRepo,
		voucher.NewExporter(cfg.Voucher.OutputDir, logger),
		cfg.Upload.MaxFileSizeMB,
		logger,
	)

	a := &app{
		cfg:         cfg,
		logger:      logger,
		authAPI:     authAPI,
		departments: api.NewDepartmentAPI(backend),
		session:     session,
		state:       state,
		coord:       coord,
		history:     historyRepo,
		records:     api.NewReimbursementAPI(backend),
		flows:       flows,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, client.UserMessage(err))
		logger.Error("Command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx)
	case "logout":
		a.session.Logout()
		fmt.Println("已退出登录")
		return nil
	case "upload":
		return a.upload(ctx, args)
	case "submit":
		return a.submit(ctx, args)
	case "list":
		return a.list(ctx)
	case "history":
		return a.localHistory()
	case "departments":
		return a.departmentTree(ctx)
	case "reset":
		return a.reset()
	case "health":
		return a.health(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) login(ctx context.Context) error {
	if a.session.IsLoggedIn() && a.session.CheckSession(ctx) {
		fmt.Printf("已登录: %s\n", a.session.UserName())
		return nil
	}

	oauthCfg := auth.OAuthConfig{
		CorpID:       a.cfg.WeCom.CorpID,
		AgentID:      a.cfg.WeCom.AgentID,
		RedirectURI:  a.cfg.WeCom.RedirectURI,
		State:        a.cfg.WeCom.State,
		CallbackAddr: a.cfg.WeCom.CallbackAddr,
	}
	fmt.Printf("请在浏览器中打开以下地址完成企业微信登录:\n%s\n", oauthCfg.AuthorizeURL())

	code, err := auth.CaptureCode(ctx, oauthCfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to capture login code: %w", err)
	}

	ok, err := a.session.Login(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("登录失败，请重试")
	}

	a.state.SeedSubmitter(a.session.UserName(), a.session.Region())
	fmt.Printf("登录成功: %s (%s)\n", a.session.UserName(), a.session.Region())
	return nil
}

func (a *app) upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	formType := fs.String("form-type", "日常报销单", "reimbursement form type")
	chunked := fs.Bool("chunked", false, "upload files one at a time under a shared session")
	wedrive := fs.Bool("wedrive", false, "treat arguments as drive-picker tickets instead of local files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("请指定要上传的发票文件")
	}
	if !a.session.IsLoggedIn() {
		return fmt.Errorf("请先登录")
	}

	// earlier staged uploads accumulate until submit or reset
	a.restoreFlow()
	a.state.SetFormType(*formType)

	var stats *models.UploadStats
	var err error
	switch {
	case *wedrive:
		if err = a.coord.UploadWedrive(ctx, fs.Args()); err != nil {
			return err
		}
	case *chunked:
		if err = a.coord.StageFiles(fs.Args()); err != nil {
			return err
		}
		stats, err = a.coord.UploadChunked(ctx)
	default:
		if err = a.coord.StageFiles(fs.Args()); err != nil {
			return err
		}
		stats, err = a.coord.Upload(ctx)
	}
	if err != nil {
		return err
	}

	snap := a.coord.Snapshot()
	if err := a.flows.Save(&snap); err != nil {
		a.logger.Warn("Failed to persist staged claim", zap.Error(err))
	}

	if stats != nil {
		fmt.Printf("上传完成: 共 %d 个文件 (图片 %d, PDF %d)\n", stats.Total, stats.Images, stats.Documents)
	} else {
		fmt.Printf("上传完成: 微盘文件 %d 个\n", fs.NArg())
	}
	for _, invoice := range a.state.Invoices() {
		fmt.Printf("  [%d] %s %s %s元\n", invoice.Index+1, invoice.InvoiceNo, invoice.SellerName,
			strings.TrimSuffix(invoice.TotalAmount, "元"))
	}
	fmt.Printf("合计: %s元\n", a.state.TotalAmount())
	if subsidy := a.coord.DailySubsidyAmount(); subsidy != "" {
		fmt.Printf("参考每日补助: %s元 (不会自动填入)\n", subsidy)
	}
	return nil
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	reason := fs.String("reason", "", "reimbursement reason")
	region := fs.String("region", "", "region, defaults to the login region")
	costDept := fs.String("cost-department", "", "cost-bearing department")
	force := fs.Bool("force", false, "skip the local duplicate check")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.restoreFlow()
	a.state.UpdateForm(func(f *models.ReimbursementForm) {
		if *reason != "" {
			f.FormReimbursementReason = *reason
		}
		if *region != "" {
			f.Region = *region
		}
		if *costDept != "" {
			f.CostDepartment = *costDept
		}
	})
	a.coord.PrefillTravelDates()
	a.coord.RecomputeTravelDays()

	result, err := a.coord.Submit(ctx, *force)
	if err != nil {
		return err
	}
	if err := a.flows.Clear(); err != nil {
		a.logger.Warn("Failed to clear staged claim", zap.Error(err))
	}

	fmt.Printf("提交成功，单据编号: %s\n", result.ReceiptID)
	if result.VoucherPath != "" {
		fmt.Printf("凭证已导出: %s\n", result.VoucherPath)
	}
	return nil
}

func (a *app) list(ctx context.Context) error {
	if !a.session.IsLoggedIn() {
		return fmt.Errorf("请先登录")
	}
	page, err := a.records.List(ctx, api.ListParams{UserID: a.session.UserID(), Page: 1, Size: 20})
	if err != nil {
		return err
	}
	fmt.Printf("共 %d 条记录:\n", page.Total)
	mirror := make([]*history.Submission, 0, len(page.Records))
	for _, record := range page.Records {
		fmt.Printf("  %s  %-10s  %8s元  %s\n", record.ID, record.Status, record.TotalAmount, record.FormType)
		mirror = append(mirror, &history.Submission{
			ReceiptID:   record.ID,
			FormType:    record.FormType,
			TotalAmount: record.TotalAmount,
			Reason:      record.Reason,
			SubmittedAt: parseRecordTime(record.SubmittedAt),
		})
	}
	if err := a.history.MirrorRemote(mirror); err != nil {
		a.logger.Warn("Failed to mirror remote history", zap.Error(err))
	}
	return nil
}

func (a *app) localHistory() error {
	subs, err := a.history.List(20)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Println("暂无本地提交记录")
		return nil
	}
	for _, sub := range subs {
		fmt.Printf("  %s  %s  %8s元  %d张发票  %s\n",
			sub.SubmittedAt.Format("2006-01-02 15:04"),
			sub.ReceiptID, sub.TotalAmount, sub.InvoiceCount, sub.FormType)
	}
	return nil
}

func (a *app) departmentTree(ctx context.Context) error {
	if !a.session.IsLoggedIn() {
		return fmt.Errorf("请先登录")
	}
	flat, err := a.departments.List(ctx)
	if err != nil {
		return err
	}
	for _, root := range api.BuildDepartmentTree(flat) {
		printDepartment(root, 0)
	}
	return nil
}

func printDepartment(dept *models.Department, depth int) {
	line := strings.Repeat("  ", depth) + dept.Name
	if dept.Region != "" {
		line += " [" + dept.Region + "]"
	}
	fmt.Println(line)
	for _, child := range dept.Children {
		printDepartment(child, depth+1)
	}
}

// restoreFlow adopts the persisted staged claim, if any
func (a *app) restoreFlow() {
	snap, err := a.flows.Load()
	if err != nil {
		a.logger.Warn("Failed to load staged claim", zap.Error(err))
		return
	}
	if snap == nil {
		return
	}
	a.coord.Restore(snap)
	a.state.SeedSubmitter(a.session.UserName(), a.session.Region())
}

func (a *app) reset() error {
	a.state.Reset()
	if err := a.flows.Clear(); err != nil {
		return err
	}
	fmt.Println("已清空暂存的报销单")
	return nil
}

func parseRecordTime(value string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func (a *app) health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.authAPI.Health(ctx); err != nil {
		return err
	}
	fmt.Println("后端服务正常")
	return nil
}
