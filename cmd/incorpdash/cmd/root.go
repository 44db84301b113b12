package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	redisbackend "github.com/jmcleod/incorpdash/backend/redis"
)

var rootCmd = &cobra.Command{
	Use:   "incorpdash",
	Short: "incorpdash serves the company formation dashboard",
	Long: `A local dashboard for tracking company formation: status, documents,
billing add-ons and support tickets, behind a signed-in session.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var (
	backendKind string
	redisAddr   string
	redisPrefix string
	clientID    string
	sessionTTL  time.Duration
	logLevel    string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	pf.StringVar(&backendKind, "backend", backendLocal, "Auth backend: local or redis")
	pf.StringVar(&redisAddr, "redis-addr", "127.0.0.1:6379", "Redis address for the redis backend")
	pf.StringVar(&redisPrefix, "redis-prefix", redisbackend.DefaultPrefix, "Key and channel prefix for the redis backend")
	pf.StringVar(&clientID, "client-id", "", "Dashboard client id for the redis backend (defaults to the hostname)")
	pf.DurationVar(&sessionTTL, "session-ttl", 12*time.Hour, "Lifetime of a signed-in session")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
}
