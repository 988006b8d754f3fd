package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/qinglongcn/taprootscan"
	"github.com/sirupsen/logrus"
	"github.com/vrecan/death/v3"
)

func main() {
	if err := run(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	opt, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanner, err := taprootscan.Open(ctx, opt)
	if err != nil {
		return err
	}
	defer scanner.Close()

	// death 管理应用程序的生命终止
	// syscall.SIGINT ctr+c触发
	// syscall.SIGTERM 当前进程被kill(即收到SIGTERM)
	go func() {
		d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
		d.WaitForDeathWithFunc(func() {
			logrus.Warn("收到终止信号，停止扫描")
			cancel()
		})
	}()

	stats, err := scanner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("numTaproot: %d\n", stats.Taproot)
	fmt.Printf("numKeyPath: %d\n", stats.KeyPath)
	fmt.Printf("numScriptPath: %d\n", stats.ScriptPath)
	fmt.Printf("numInvalid: %d\n", stats.Invalid)
	fmt.Printf("numMalformed: %d\n", stats.Malformed)
	fmt.Printf("numCommitmentMismatch: %d\n", stats.CommitmentMismatch)
	return nil
}
