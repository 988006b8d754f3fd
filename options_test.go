package taprootscan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// TestCheckAndSetOptions 测试选项校验。
func TestCheckAndSetOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Options)
		err    error
	}{
		{"default", func(*Options) {}, nil},
		{"zero workers", func(o *Options) { o.Workers = 0 }, ErrInvalidWorkers},
		{"negative workers", func(o *Options) { o.Workers = -1 }, ErrInvalidWorkers},
		{"sql in table", func(o *Options) { o.Table = "inputs; DROP TABLE x" }, ErrInvalidTable},
		{"empty table", func(o *Options) { o.Table = "" }, ErrInvalidTable},
		{"unknown network", func(o *Options) { o.Network = "litecoin" }, ErrUnknownNetwork},
		{"opened", func(o *Options) { o.IsOpened = true }, ErrScannerOpened},
	}

	for _, test := range tests {
		opt := DefaultOptions()
		test.modify(opt)
		err := opt.CheckAndSetOptions()
		if test.err == nil {
			require.NoError(t, err, test.name)
			require.NotEmpty(t, opt.InstanceId, test.name)
			continue
		}
		require.ErrorIs(t, err, test.err, test.name)
	}
}

// TestBuildOptions 测试选项的设置方法。
func TestBuildOptions(t *testing.T) {
	t.Parallel()

	opt := DefaultOptions()
	opt.BuildRootPath("/srv/scan")
	opt.BuildNetwork("signet")
	opt.BuildTable("inputs_2023_may")
	opt.BuildWorkers(8)
	opt.BuildReportName("may.csv")
	opt.BuildLogLevel("debug")
	opt.BuildLogLevel("nonsense")
	opt.BuildInstanceId("node1")

	require.Equal(t, "/srv/scan", opt.RootPath)
	require.Equal(t, filepath.Join("/srv/scan", "logs"), opt.LogsPath())
	require.Equal(t, filepath.Join("/srv/scan", "db"), opt.DbPath())
	require.Equal(t, filepath.Join("/srv/scan", "results", "inputs_2023_may"),
		opt.StorePath())
	require.Equal(t, filepath.Join("/srv/scan", "reports"), opt.ReportsPath())
	require.Equal(t, &chaincfg.SigNetParams, opt.ChainParams())
	require.Equal(t, "inputs_2023_may", opt.Table)
	require.Equal(t, 8, opt.Workers)
	require.Equal(t, "may.csv", opt.ReportName)
	require.Equal(t, logrus.DebugLevel, opt.LogLevel)
	require.Equal(t, "node1", opt.InstanceId)

	// 空值保持原值
	opt.BuildRootPath("")
	opt.BuildTable("")
	opt.BuildWorkers(0)
	require.Equal(t, "/srv/scan", opt.RootPath)
	require.Equal(t, "inputs_2023_may", opt.Table)
	require.Equal(t, 8, opt.Workers)

	// 相对路径转换为绝对路径
	wd, err := os.Getwd()
	require.NoError(t, err)
	opt.BuildRootPath("scan")
	require.Equal(t, filepath.Join(wd, "scan"), opt.RootPath)
}
