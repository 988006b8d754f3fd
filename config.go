package taprootscan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// YamlConf 是 YAML 配置文件的内容
type YamlConf struct {
	Network string     `yaml:"network"`
	Root    string     `yaml:"root"`
	DB      DBConf     `yaml:"db"`
	Survey  SurveyConf `yaml:"survey"`
	Report  ReportConf `yaml:"report"`
	Log     LogConf    `yaml:"log"`
}

type DBConf struct {
	File  string `yaml:"file"`
	Table string `yaml:"table"`
	RawTx bool   `yaml:"rawtx"`
}

type SurveyConf struct {
	Workers  int  `yaml:"workers"`
	InMemory bool `yaml:"in_memory"`
}

type ReportConf struct {
	Name string `yaml:"name"`
}

type LogConf struct {
	Level string `yaml:"level"`
}

// LoadYamlConf 读取并解码配置文件，缺失的字段使用默认值
func LoadYamlConf(cfgPath string) (*YamlConf, error) {
	confFile, err := os.Open(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cfg: %s, error: %w", cfgPath, err)
	}
	defer confFile.Close()

	ret := &YamlConf{}
	decoder := yaml.NewDecoder(confFile)
	if err := decoder.Decode(ret); err != nil {
		return nil, fmt.Errorf("failed to decode cfg: %s, error: %w", cfgPath, err)
	}

	if _, err := logrus.ParseLevel(ret.Log.Level); err != nil {
		ret.Log.Level = "info"
	}

	if ret.Network == "" {
		ret.Network = "mainnet"
	}

	if ret.Root != "" {
		ret.Root = filepath.FromSlash(ret.Root)
	}

	if ret.DB.File == "" {
		ret.DB.File = DbFile
	}

	if ret.DB.Table == "" {
		ret.DB.Table = InputTable
	}

	if ret.Survey.Workers <= 0 {
		ret.Survey.Workers = 4
	}

	if ret.Report.Name == "" {
		ret.Report.Name = ReportFile
	}

	return ret, nil
}

// Apply 将配置写入选项
func (c *YamlConf) Apply(opt *Options) {
	opt.BuildRootPath(c.Root)
	opt.BuildNetwork(c.Network)
	opt.BuildDbFile(c.DB.File)
	opt.BuildTable(c.DB.Table)
	opt.BuildRawTx(c.DB.RawTx)
	opt.BuildWorkers(c.Survey.Workers)
	opt.InMemory = c.Survey.InMemory
	opt.BuildReportName(c.Report.Name)
	opt.BuildLogLevel(c.Log.Level)
}
