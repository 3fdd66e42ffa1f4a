package config

import "github.com/spf13/pflag"

// RegisterFlags 注册命令行参数。参数默认值留空，未显式设置时使用环境变量或默认配置。
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to a config file (yaml, json or toml)")
	flags.String("db-type", "", "Archive type: sqlite, postgres, pgx, mysql or json (default sqlite)")
	flags.String("dsn", "", "Archive DSN, or path to the JSON dump when --db-type=json")
	flags.String("db-key", "", "SQLCipher key for an encrypted sqlite archive")
	flags.StringP("output", "o", "", "Output directory (default export)")
	flags.String("attachments-dir", "", "Attachment directory, relative to the output directory (default attachments)")
	flags.String("debug-dir", "", "Write intermediate attachment decode stages to this directory")
	flags.IntP("workers", "w", 0, "Parallel attachment decoders (default 4)")
	flags.String("log-level", "", "Logging level: debug, info, warn, error (default info)")
	flags.String("log-file", "", "Also write logs to this file, rotated")
	flags.Bool("dev", false, "Human readable console logs")
	flags.String("metrics-addr", "", "Serve /metrics, /live and /ready on this address while exporting")
	flags.String("metrics-file", "", "Write metrics in textfile format to this path when finished")
}
