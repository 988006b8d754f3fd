package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/qinglongcn/taprootscan"
)

// config 是命令行选项，未指定的选项取配置文件中的值或默认值
type config struct {
	ConfigFile string `short:"C" long:"config" description:"YAML 配置文件路径"`
	Root       string `long:"root" description:"工作根目录，数据库、结果、报表与日志都保存在其下"`
	DbFile     string `long:"db" description:"见证数据集的 sqlite 文件名"`
	Table      string `long:"table" description:"见证数据表，例如 inputs_2023_may"`
	Network    string `long:"network" description:"比特币网络 {mainnet, testnet3, regtest, signet, simnet}"`
	Workers    int    `long:"workers" description:"并发分类的工作协程数量"`
	Report     string `long:"report" description:"报表文件名"`
	LogLevel   string `long:"loglevel" description:"日志级别 {trace, debug, info, warn, error}"`
	RawTx      bool   `long:"rawtx" description:"记录中保存的是完整交易而不是逗号分隔的见证"`
}

// loadConfig 解析命令行选项，按 默认值、配置文件、命令行 的顺序生成扫描选项
func loadConfig() (*taprootscan.Options, error) {
	var cfg config

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, err
	}

	opt := taprootscan.DefaultOptions()

	if cfg.ConfigFile != "" {
		conf, err := taprootscan.LoadYamlConf(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		conf.Apply(opt)
	}

	opt.BuildRootPath(cfg.Root)
	opt.BuildDbFile(cfg.DbFile)
	opt.BuildTable(cfg.Table)
	opt.BuildNetwork(cfg.Network)
	opt.BuildWorkers(cfg.Workers)
	opt.BuildReportName(cfg.Report)
	opt.BuildLogLevel(cfg.LogLevel)
	if cfg.RawTx {
		opt.BuildRawTx(true)
	}

	return opt, opt.CheckAndSetOptions()
}
