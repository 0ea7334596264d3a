package flagparse

import (
	"flag"
	"fmt"
	"strings"

	"github.com/fernwoodlabs/fw-backup/pkg/buildinfo"
)

// cliFlags holds pointers to all possible command-line flags.
// Fields are pointers so we can distinguish between "not registered for this
// command" (nil) and "registered but not set by user" (non-nil pointer to
// zero value).
type cliFlags struct {
	// Global
	Config   *string
	LogLevel *string
	LogFile  *string
	DryRun   *bool

	// Shared: Backup / Init
	Source            *string
	Target            *string
	Compress          *bool
	CompressionFormat *string
	CompressionLevel  *string
	ExcludeFiles      *string
	ExcludeDirs       *string
	BufferSizeKB      *int

	// Init specific
	Force *bool
}

func registerGlobalFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Config = fs.String("config", "", "Path to the configuration file. Defaults to ./"+ConfigFileHint)
	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'notice', 'info', 'warn', 'error'.")
	f.LogFile = fs.String("log-file", "", "Path to the append-only log file. Empty disables file logging.")
	f.DryRun = fs.Bool("dry-run", false, "Show what would be done without making any changes.")
}

func registerBackupFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Source = fs.String("source", "", "Source directory to back up.")
	f.Target = fs.String("target", "", "Base destination directory for backups.")
	f.Compress = fs.Bool("compress", false, "Compress the backup into a single archive instead of copying.")
	f.CompressionFormat = fs.String("compression-format", "", "Archive format: 'zip', 'tar.gz', or 'tar.zst'.")
	f.CompressionLevel = fs.String("compression-level", "", "Compression level: 'default', 'fastest', 'better', 'best'.")
	f.ExcludeFiles = fs.String("exclude-files", "", "Comma-separated list of case-insensitive file names to exclude (supports glob patterns).")
	f.ExcludeDirs = fs.String("exclude-dirs", "", "Comma-separated list of case-insensitive directory names to exclude (supports glob patterns).")
	f.BufferSizeKB = fs.Int("buffer-size-kb", 0, "Size of the I/O buffer in kilobytes for file copies and compression.")
}

func registerInitFlags(fs *flag.FlagSet, f *cliFlags) {
	// Init supports all backup flags (to seed the config file) plus 'force'.
	registerBackupFlags(fs, f)
	f.Force = fs.Bool("force", false, "Overwrite an existing configuration file without confirmation.")
}

func registerListFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Target = fs.String("target", "", "Base destination directory to list backups from.")
}

// ConfigFileHint is repeated in flag help text; the authoritative name lives in
// the config package (kept here to avoid an import cycle).
const ConfigFileHint = "fw-backup.config.json"

// Parse inspects the argument list, determines the command, and parses the
// command's flag set. It returns the command and a map containing only the
// flags that were explicitly set by the user.
func Parse(args []string) (Command, map[string]any, error) {
	command := Backup // The default command is backup.
	rest := args

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		parsed, err := ParseCommand(args[0])
		if err != nil {
			return None, nil, err
		}
		command = parsed
		rest = args[1:]
	}

	fs := flag.NewFlagSet(buildinfo.Name+" "+command.String(), flag.ContinueOnError)
	var f cliFlags

	switch command {
	case Backup:
		registerGlobalFlags(fs, &f)
		registerBackupFlags(fs, &f)
	case Init:
		registerGlobalFlags(fs, &f)
		registerInitFlags(fs, &f)
	case List:
		registerGlobalFlags(fs, &f)
		registerListFlags(fs, &f)
	case Version:
		// No flags.
	}

	if err := fs.Parse(rest); err != nil {
		return None, nil, err
	}
	if fs.NArg() > 0 {
		return None, nil, fmt.Errorf("unexpected argument: %q", fs.Arg(0))
	}

	return command, buildFlagMap(fs, &f), nil
}

// buildFlagMap collects the values of all flags the user explicitly set.
// This map is used to selectively override the persisted configuration.
func buildFlagMap(fs *flag.FlagSet, f *cliFlags) map[string]any {
	usedFlags := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { usedFlags[fl.Name] = true })

	flagMap := make(map[string]any)
	addIfUsed := func(name string, value any) {
		if usedFlags[name] {
			flagMap[name] = value
		}
	}
	addParsedIfUsed := func(name string, rawValue *string, parser func(string) []string) {
		if usedFlags[name] && rawValue != nil {
			flagMap[name] = parser(*rawValue)
		}
	}

	if f.Config != nil {
		addIfUsed("config", *f.Config)
	}
	if f.LogLevel != nil {
		addIfUsed("log-level", *f.LogLevel)
	}
	if f.LogFile != nil {
		addIfUsed("log-file", *f.LogFile)
	}
	if f.DryRun != nil {
		addIfUsed("dry-run", *f.DryRun)
	}
	if f.Source != nil {
		addIfUsed("source", *f.Source)
	}
	if f.Target != nil {
		addIfUsed("target", *f.Target)
	}
	if f.Compress != nil {
		addIfUsed("compress", *f.Compress)
	}
	if f.CompressionFormat != nil {
		addIfUsed("compression-format", *f.CompressionFormat)
	}
	if f.CompressionLevel != nil {
		addIfUsed("compression-level", *f.CompressionLevel)
	}
	if f.BufferSizeKB != nil {
		addIfUsed("buffer-size-kb", *f.BufferSizeKB)
	}
	if f.Force != nil {
		addIfUsed("force", *f.Force)
	}
	addParsedIfUsed("exclude-files", f.ExcludeFiles, ParseExcludeList)
	addParsedIfUsed("exclude-dirs", f.ExcludeDirs, ParseExcludeList)

	return flagMap
}

// ParseExcludeList splits a comma-separated exclusion list into trimmed,
// non-empty patterns.
func ParseExcludeList(raw string) []string {
	parts := strings.Split(raw, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}
