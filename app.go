package taprootscan

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

// Scanner 提供了运行一次 taproot 花费扫描所需的各种服务
type Scanner struct {
	ctx    context.Context // 全局上下文
	opt    *Options        // 选项配置
	db     *SqliteDB       // 见证数据集
	store  *ResultStore    // 分类结果存储
	files  *FileStore      // 报表文件存储
	survey *Survey         // 扫描任务
	app    *fx.App         // 依赖注入容器
}

// Open 返回一个新的扫描实例
func Open(ctx context.Context, opt *Options) (*Scanner, error) {
	// 1. 检查并设置选项
	if err := opt.CheckAndSetOptions(); err != nil {
		return nil, err
	}
	// 2. 本地文件夹
	if err := initDirectories(opt); err != nil {
		return nil, err
	}
	// 3. 日志
	if err := SetLog(opt); err != nil {
		return nil, err
	}

	sc := &Scanner{
		ctx: ctx,
		opt: opt,
	}

	// fx 配置项
	opts := []fx.Option{
		fx.NopLogger,
		sc.globalInit(),
		fx.Provide(
			NewSqliteDBService,    // 见证数据集
			NewResultStoreService, // 分类结果存储
			NewFileStoreService,   // 报表文件存储
			NewSurvey,             // 扫描任务
		),
		fx.Populate(
			&sc.db,
			&sc.store,
			&sc.files,
			&sc.survey,
		),
	}
	sc.app = fx.New(opts...)
	if err := sc.app.Err(); err != nil {
		return nil, err
	}

	// 启动所有服务的生命周期钩子
	if err := sc.app.Start(ctx); err != nil {
		return nil, err
	}

	opt.IsOpened = true // 扫描实例已打开
	return sc, nil
}

// 全局初始化
func (sc *Scanner) globalInit() fx.Option {
	return fx.Provide(
		// 获取上下文
		func() context.Context {
			return sc.ctx
		},
		func() *Options {
			return sc.opt
		},
	)
}

// initDirectories 确保所有预定义的文件夹都存在
func initDirectories(opt *Options) error {
	for _, dir := range opt.directories() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

type NewSqliteDBInput struct {
	fx.In

	Opt *Options // 选项配置
}

// NewSqliteDBService 打开见证数据集并确保数据表存在
func NewSqliteDBService(lc fx.Lifecycle, input NewSqliteDBInput) (*SqliteDB, error) {
	db, err := NewSqliteDB(input.Opt.DbPath(), input.Opt.DbFile)
	if err != nil {
		logrus.Errorf("[NewSqliteDBService] 启动失败:\t%v", err)
		return nil, err
	}
	// 数据库表
	if err := db.InitDBTable(input.Opt.Table); err != nil {
		db.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}

// NewResultStoreService 打开分类结果存储
func NewResultStoreService(lc fx.Lifecycle, opt *Options) (*ResultStore, error) {
	store, err := OpenResultStore(opt.StorePath(), opt.InMemory)
	if err != nil {
		logrus.Errorf("[NewResultStoreService] 启动失败:\t%v", err)
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

// NewFileStoreService 创建报表文件存储
func NewFileStoreService(opt *Options) (*FileStore, error) {
	return NewFileStore(opt.RootPath)
}

// DB 返回见证数据集
func (sc *Scanner) DB() *SqliteDB {
	return sc.db
}

// Store 返回分类结果存储
func (sc *Scanner) Store() *ResultStore {
	return sc.store
}

// Run 执行扫描并写出报表
func (sc *Scanner) Run(ctx context.Context) (StatsSnapshot, error) {
	stats, err := sc.survey.Run(ctx)
	if err != nil {
		return stats, err
	}

	rows, err := WriteReport(sc.files, reportsDir, sc.opt.ReportName, sc.store)
	if err != nil {
		return stats, err
	}
	logrus.Infof("[Scanner] 报表已写入 %s (%d 行)",
		filepath.Join(sc.opt.ReportsPath(), sc.opt.ReportName), rows)

	return stats, nil
}

// Close 停止所有服务并关闭数据库
func (sc *Scanner) Close() error {
	sc.opt.IsOpened = false
	return sc.app.Stop(context.Background())
}
