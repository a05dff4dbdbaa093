package main

import (
	"context"
	"errors"
	"fmt"
	"ichat_backend/internal/syncclient"
	"ichat_backend/pkg/logger"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	serverFlag    = "server"
	tokenFlag     = "token"
	tokenFileFlag = "token-file"
	timeoutFlag   = "timeout"
	verboseFlag   = "verbose"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "chatcli",
	Short:         "Command line client for the iChat API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool(verboseFlag) {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			logger.Log = l
		}
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if syncclient.IsUnauthenticated(err) {
			fmt.Fprintln(os.Stderr, "session expired, run `chatcli login` again")
		}
		stop()
		os.Exit(1)
	}
}

// bindFlagHelper binds the named flag of cmd to viper.
func bindFlagHelper(key string, cmd *cobra.Command) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(key)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func bindPersistentFlag(key string, cmd *cobra.Command) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(key)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ichat_token"
	}
	return filepath.Join(home, ".ichat_token")
}

// newClient builds an API client, reading a saved token when none is given.
func newClient() *syncclient.Client {
	token := viper.GetString(tokenFlag)
	if token == "" {
		if b, err := os.ReadFile(viper.GetString(tokenFileFlag)); err == nil {
			token = strings.TrimSpace(string(b))
		}
	}
	return syncclient.NewClient(viper.GetString(serverFlag), syncclient.WithToken(token))
}

func saveToken(token string) error {
	path := viper.GetString(tokenFileFlag)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0600)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), viper.GetDuration(timeoutFlag))
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

func parseIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if part == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("no ids given")
	}
	return ids, nil
}

func init() {
	viper.SetEnvPrefix("ICHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String(serverFlag, "http://localhost:8080",
		"Base URL of the iChat server.")
	bindPersistentFlag(serverFlag, rootCmd)

	rootCmd.PersistentFlags().String(tokenFlag, "",
		"Session token. Defaults to the token saved by login.")
	bindPersistentFlag(tokenFlag, rootCmd)

	rootCmd.PersistentFlags().String(tokenFileFlag, defaultTokenFile(),
		"File the session token is saved to and read from.")
	bindPersistentFlag(tokenFileFlag, rootCmd)

	rootCmd.PersistentFlags().Duration(timeoutFlag, 30*time.Second,
		"Timeout for a single API call.")
	bindPersistentFlag(timeoutFlag, rootCmd)

	rootCmd.PersistentFlags().BoolP(verboseFlag, "v", false,
		"Verbose logging.")
	bindPersistentFlag(verboseFlag, rootCmd)
}
