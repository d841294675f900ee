package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/hermod/internal/config"
	"github.com/gosuda/hermod/internal/hostfile"
	"github.com/gosuda/hermod/internal/noiseproto"
	"github.com/gosuda/hermod/internal/sharekey"
)

var (
	genKeyAlias string
	genKeyForce bool
)

var genKeyCmd = &cobra.Command{
	Use:   "gen-key",
	Short: "Generate a client keypair and id token, and store them under an alias",
	RunE:  runGenKey,
}

func init() {
	genKeyCmd.Flags().StringVar(&genKeyAlias, "alias", "", "local name to save this host under (required)")
	genKeyCmd.Flags().BoolVar(&genKeyForce, "force", false, "overwrite an existing host record for this alias")
}

// runGenKey mints a client static keypair and id token entirely locally, no
// server contact, and saves them as a host record under alias with an empty
// Hostname and ServerKey. Those fields are filled in once the record is
// pointed at a real server; share-key instead generates and enrolls in one
// step over the wire.
func runGenKey(cmd *cobra.Command, args []string) error {
	if genKeyAlias == "" {
		return fmt.Errorf("--alias is required")
	}

	baseDir, err := config.BaseDir()
	if err != nil {
		return err
	}

	path := hostfile.Path(baseDir, genKeyAlias)
	if !genKeyForce {
		if _, err := os.Stat(path); err == nil {
			log.Info().Str("alias", genKeyAlias).Str("path", path).Msg("host record already exists, leaving it in place (use --force to overwrite)")
			return nil
		}
	}

	local, err := noiseproto.GenerateStaticKeypair()
	if err != nil {
		return err
	}

	host := &hostfile.Host{
		Alias:      genKeyAlias,
		IDToken:    sharekey.NewIDToken(),
		PublicKey:  local.Public,
		PrivateKey: local.Private,
	}

	if err := hostfile.Save(path, host); err != nil {
		return err
	}

	log.Info().Str("alias", genKeyAlias).Str("path", path).Msg("generated client keypair and id token")
	return nil
}
