package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/hermod/internal/client"
	"github.com/gosuda/hermod/internal/config"
	"github.com/gosuda/hermod/internal/hostfile"
	"github.com/gosuda/hermod/internal/noiseproto"
	"github.com/gosuda/hermod/internal/sharekey"
)

var (
	shareKeyAlias    string
	shareKeyHostname string
)

var shareKeyCmd = &cobra.Command{
	Use:   "share-key",
	Short: "Enroll this client with a server and save the resulting host record",
	RunE:  runShareKey,
}

func init() {
	shareKeyCmd.Flags().StringVar(&shareKeyAlias, "alias", "", "local name to save this host under (required)")
	shareKeyCmd.Flags().StringVar(&shareKeyHostname, "hostname", "", "server address, host:port (required)")
}

func runShareKey(cmd *cobra.Command, args []string) error {
	if shareKeyAlias == "" || shareKeyHostname == "" {
		return fmt.Errorf("--alias and --hostname are required")
	}

	baseDir, err := config.BaseDir()
	if err != nil {
		return err
	}

	local, err := noiseproto.GenerateStaticKeypair()
	if err != nil {
		return err
	}

	conn, err := client.Connect(shareKeyHostname)
	if err != nil {
		return err
	}
	defer conn.Close()

	host, err := sharekey.Enroll(conn, local, shareKeyAlias, shareKeyHostname)
	if err != nil {
		return err
	}

	path := hostfile.Path(baseDir, shareKeyAlias)
	if err := hostfile.Save(path, host); err != nil {
		return err
	}

	log.Info().Str("alias", shareKeyAlias).Str("path", path).Msg("enrolled and saved host record")
	return nil
}
