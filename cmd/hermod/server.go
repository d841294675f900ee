package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/hermod/internal/config"
	"github.com/gosuda/hermod/internal/identity"
	"github.com/gosuda/hermod/internal/keyfile"
	"github.com/gosuda/hermod/internal/noiseproto"
	"github.com/gosuda/hermod/internal/server"
)

var serverListenAddr string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run a Hermod server, accepting transfers from enrolled clients",
	RunE:  runServer,
}

var serverSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate this server's static keypair if one does not already exist",
	RunE:  runServerSetup,
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identity tokens this server has enrolled",
	RunE:  runServerList,
}

func init() {
	serverCmd.Flags().StringVar(&serverListenAddr, "listen", fmt.Sprintf(":%d", config.Port), "address to listen on")
	serverCmd.AddCommand(serverSetupCmd)
	serverCmd.AddCommand(serverListCmd)
}

func runServerSetup(cmd *cobra.Command, args []string) error {
	baseDir, err := config.BaseDir()
	if err != nil {
		return err
	}
	privPath := config.ServerPrivateKeyPath(baseDir)
	pubPath := config.ServerPublicKeyPath(baseDir)

	if _, err := os.Stat(privPath); err == nil {
		log.Info().Str("path", privPath).Msg("server key already exists, leaving it in place")
		return nil
	}

	key, err := noiseproto.GenerateStaticKeypair()
	if err != nil {
		return err
	}
	if err := keyfile.SavePair(privPath, pubPath, key); err != nil {
		return err
	}
	log.Info().Str("path", privPath).Msg("generated server static keypair")
	return nil
}

func runServerList(cmd *cobra.Command, args []string) error {
	baseDir, err := config.BaseDir()
	if err != nil {
		return err
	}
	store := identity.New(config.IdentityStorePath(baseDir))
	if err := store.Load(); err != nil {
		return err
	}
	for _, id := range store.Enumerate() {
		fmt.Println(id.IDToken)
	}
	return nil
}

func runServer(cmd *cobra.Command, args []string) error {
	baseDir, err := config.BaseDir()
	if err != nil {
		return err
	}

	local, err := keyfile.LoadPair(config.ServerPrivateKeyPath(baseDir), config.ServerPublicKeyPath(baseDir))
	if err != nil {
		return fmt.Errorf("load server key (run 'hermod server setup' first): %w", err)
	}

	idents := identity.New(config.IdentityStorePath(baseDir))
	if err := idents.Load(); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", serverListenAddr)
	if err != nil {
		return err
	}
	defer listener.Close()
	log.Info().Str("addr", serverListenAddr).Msg("listening")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		<-sig
		log.Info().Msg("shutting down")
		cancel()
	}()

	d := server.New(listener, local, idents)
	return d.Serve(ctx)
}
