package taprootscan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/sirupsen/logrus"
)

const (
	logsDir    = "logs"    // 日志目录
	dbDir      = "db"      // 数据库目录
	storeDir   = "results" // 分类结果的 badger 目录
	reportsDir = "reports" // 报表目录

	DbFile     = "witness.db" // 见证数据集的 sqlite 文件名
	InputTable = "inputs"     // 默认的见证数据表
	ReportFile = "result.csv" // 默认的报表文件名
)

var (
	// ErrInvalidWorkers 表示工作协程数量不是正数
	ErrInvalidWorkers = errors.New("工作协程数量必须大于 0")
	// ErrInvalidTable 表示数据表名称不是合法的标识符
	ErrInvalidTable = errors.New("数据表名称不合法")
	// ErrUnknownNetwork 表示网络名称未知
	ErrUnknownNetwork = errors.New("未知的比特币网络")
	// ErrScannerOpened 表示扫描实例已经打开
	ErrScannerOpened = errors.New("扫描实例已打开")
)

// tableNamePattern 限制数据表名称，表名会被拼接进 SQL 语句
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// networks 是支持的网络名称与参数
var networks = map[string]*chaincfg.Params{
	"mainnet":  &chaincfg.MainNetParams,
	"testnet3": &chaincfg.TestNet3Params,
	"regtest":  &chaincfg.RegressionNetParams,
	"signet":   &chaincfg.SigNetParams,
	"simnet":   &chaincfg.SimNetParams,
}

// Options 是用于创建扫描实例的参数
type Options struct {
	IsOpened bool `optional:"false"  default:"false"` // 扫描实例是否已打开

	InstanceId string // 实例标识符，用于区分日志文件

	RootPath   string       // 工作根目录，数据库、结果与日志都保存在其下
	DbFile     string       // 见证数据集的 sqlite 文件名
	Table      string       // 见证数据表
	Network    string       // 比特币网络名称
	Workers    int          // 并发分类的工作协程数量
	ReportName string       // 报表文件名
	LogLevel   logrus.Level // 日志级别
	RawTx      bool         // 记录中保存的是完整交易而不是逗号分隔的见证
	InMemory   bool         // 结果存储仅保存在内存中
}

// DefaultOptions 设置一个推荐选项列表
func DefaultOptions() *Options {
	return &Options{
		RootPath:   defaultRootPath(),
		DbFile:     DbFile,
		Table:      InputTable,
		Network:    "mainnet",
		Workers:    4,
		ReportName: ReportFile,
		LogLevel:   logrus.InfoLevel,
	}
}

// defaultRootPath 返回当前工作目录下的 taprootscan 目录
func defaultRootPath() string {
	wd, err := os.Getwd()
	if err != nil {
		return "taprootscan"
	}
	return filepath.Join(wd, "taprootscan")
}

// BuildInstanceId 设置实例ID
func (opt *Options) BuildInstanceId(instanceId ...string) {
	if opt.IsOpened { // 扫描实例已打开
		return
	}

	if len(instanceId) > 0 && instanceId[0] != "" {
		opt.InstanceId = instanceId[0]
		return
	}
	// 生成随机字符串作为替代值
	opt.InstanceId, _ = generateRandomString(12)
}

// BuildRootPath 设置文件根路径
func (opt *Options) BuildRootPath(path string) {
	// 检查路径是否为空
	if path == "" {
		return
	}

	// 相对路径转换为绝对路径
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return
		}
		path = abs
	}

	opt.RootPath = path
}

// BuildDbFile 设置见证数据集文件
func (opt *Options) BuildDbFile(file string) {
	if file != "" {
		opt.DbFile = file
	}
}

// BuildTable 设置见证数据表
func (opt *Options) BuildTable(table string) {
	if table != "" {
		opt.Table = table
	}
}

// BuildNetwork 设置比特币网络
func (opt *Options) BuildNetwork(network string) {
	if network != "" {
		opt.Network = network
	}
}

// BuildWorkers 设置工作协程数量
func (opt *Options) BuildWorkers(workers int) {
	if workers != 0 {
		opt.Workers = workers
	}
}

// BuildReportName 设置报表文件名
func (opt *Options) BuildReportName(name string) {
	if name != "" {
		opt.ReportName = name
	}
}

// BuildLogLevel 设置日志级别，无法识别的级别保持原值
func (opt *Options) BuildLogLevel(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		opt.LogLevel = lvl
	}
}

// BuildRawTx 设置记录为完整交易模式
func (opt *Options) BuildRawTx(rawTx bool) {
	opt.RawTx = rawTx
}

// CheckAndSetOptions 检查并设置选项
func (opt *Options) CheckAndSetOptions() error {
	if opt.IsOpened { // 扫描实例已打开
		return fmt.Errorf("'%s' %w", opt.InstanceId, ErrScannerOpened)
	}
	if opt.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if !tableNamePattern.MatchString(opt.Table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, opt.Table)
	}
	if _, ok := networks[opt.Network]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNetwork, opt.Network)
	}
	if opt.RootPath == "" {
		opt.RootPath = defaultRootPath()
	}
	if opt.DbFile == "" {
		opt.DbFile = DbFile
	}
	if opt.ReportName == "" {
		opt.ReportName = ReportFile
	}
	if opt.InstanceId == "" {
		opt.BuildInstanceId()
	}

	return nil
}

// ChainParams 返回所选网络的参数
func (opt *Options) ChainParams() *chaincfg.Params {
	if params, ok := networks[opt.Network]; ok {
		return params
	}
	return &chaincfg.MainNetParams
}

// LogsPath 返回日志目录
func (opt *Options) LogsPath() string {
	return filepath.Join(opt.RootPath, logsDir)
}

// DbPath 返回 sqlite 数据库目录
func (opt *Options) DbPath() string {
	return filepath.Join(opt.RootPath, dbDir)
}

// StorePath 返回分类结果的 badger 目录，每个数据表各自一个目录
func (opt *Options) StorePath() string {
	return filepath.Join(opt.RootPath, storeDir, opt.Table)
}

// ReportsPath 返回报表目录
func (opt *Options) ReportsPath() string {
	return filepath.Join(opt.RootPath, reportsDir)
}

// directories 返回所有需要预先创建的目录
func (opt *Options) directories() []string {
	return []string{
		opt.LogsPath(),  // 日志目录
		opt.DbPath(),    // 数据库目录
		opt.StorePath(), // 结果目录
	}
}
