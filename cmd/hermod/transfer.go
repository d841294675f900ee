package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gosuda/hermod/internal/client"
	"github.com/gosuda/hermod/internal/config"
	"github.com/gosuda/hermod/internal/hostfile"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <alias> <source> <destination>",
	Short: "Upload a local file or directory to an enrolled server",
	Args:  cobra.ExactArgs(3),
	RunE:  runUpload,
}

var downloadCmd = &cobra.Command{
	Use:   "download <alias> <source> <destination>",
	Short: "Download a file or directory from an enrolled server",
	Args:  cobra.ExactArgs(3),
	RunE:  runDownload,
}

func loadHost(alias string) (*hostfile.Host, error) {
	baseDir, err := config.BaseDir()
	if err != nil {
		return nil, err
	}
	h, err := hostfile.Load(hostfile.Path(baseDir, alias))
	if err != nil {
		return nil, fmt.Errorf("unknown host alias %q (run 'hermod share-key' first): %w", alias, err)
	}
	return h, nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	host, err := loadHost(args[0])
	if err != nil {
		return err
	}
	return client.Upload(host, args[1], args[2], &terminalReporter{})
}

func runDownload(cmd *cobra.Command, args []string) error {
	host, err := loadHost(args[0])
	if err != nil {
		return err
	}
	return client.Download(host, args[1], args[2], &terminalReporter{})
}
