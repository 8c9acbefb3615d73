// internal/cli/root.go
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Corphon/LiveVision/internal/config"
	"github.com/Corphon/LiveVision/internal/utils"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	formatFlag string
	verbose    bool
}

// NewRootCmd 创建根命令并挂载所有子命令
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "vision-cli",
		Short:        "Frame emotion analysis from the command line",
		Long:         "Run the face emotion pipeline on local images and manage the classifier endpoint configuration.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Emotion config file (default: $EMOTION_CONFIG_PATH or $DATA_DIR/emotion-config.json)")
	root.PersistentFlags().StringVarP(&opts.formatFlag, "format", "f", "json", "Output format: json or text")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline details to stderr")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newConfigCmd(opts),
		newSentimentCmd(opts),
	)
	return root
}

// load 读取环境配置并打开持久化的情绪配置
func (o *options) load(stderr io.Writer) (*config.Config, *config.EmotionConfigStore, *utils.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if o.configPath != "" {
		cfg.EmotionConfigPath = o.configPath
	}

	level := utils.WARNING
	if o.verbose {
		level = utils.DEBUG
	}
	logger := utils.NewLogger(stderr, level)

	store, err := config.NewEmotionConfigStore(cfg.EmotionConfigPath, cfg.EncryptionKey, cfg.EmotionDefaults, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, store, logger, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
