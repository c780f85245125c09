package cmd

import (
	"os"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"personabot/config"
	"personabot/sentry"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "personabot",
	Short: "Chat with a choice of personas; MusicBot answers with a song",
	Long: `personabot is a chat widget backed by a dialogue model. Pick a persona
(Default, RoastBot, ShakespeareBot, Emoji Translator Bot or MusicBot) and talk.
MusicBot replies with a song suggestion that is looked up on YouTube and
played back as audio.

Run "personabot serve" for the web widget or "personabot chat" for a
terminal session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Warnf("Error loading .env file: %v", err)
		}
		config.NewConfig()
		setupLogging(config.Config.Options.LogLevel)

		if err := sentry.Init(config.Config.Sentry); err != nil {
			log.Errorf("sentry init failed: %v", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		sentry.Flush()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) {
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		FieldsOrder:     []string{"module", "function"},
		TimestampFormat: time.RFC3339,
	})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown LOG_LEVEL %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
