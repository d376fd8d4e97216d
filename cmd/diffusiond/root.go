package main

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"diffusiond/internal/config"
	"diffusiond/internal/logging"
)

// app carries the resolved configuration and logger shared by subcommands.
type app struct {
	cfgPath string
	envFile string

	cfg      config.Config
	log      zerolog.Logger
	closeLog io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "diffusiond",
		Short:         "Local diffusion model catalog and image generation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	pf.StringVar(&a.envFile, "env-file", ".env", "Dotenv file loaded before DIFFUSIOND_* variables are read")
	pf.String("models-dir", "", "Directory of model packages (default "+config.DefaultModelsDir+")")
	pf.String("conditioning-dir", "", "Directory of shared conditioning modules")
	pf.String("worker-url", "", "Base URL of the inference worker")
	pf.String("compute-units", "", "auto|cpu-only|cpu-and-gpu|cpu-and-neural-engine|all")
	pf.String("log-level", "", "Log level: debug|info|warn|error")
	pf.Bool("log-console", false, "Human-readable console logs instead of JSON")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(a.cfgPath, a.envFile, cmd.Flags().Changed("env-file"), os.LookupEnv)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd.Flags(), &cfg); err != nil {
			return err
		}
		if a.cfg, err = expandDirs(cfg.WithDefaults()); err != nil {
			return err
		}
		a.log, a.closeLog = logging.New(logging.Options{
			Level:   a.cfg.LogLevel,
			Console: a.cfg.LogConsole,
			File:    a.cfg.LogFile,
		})
		return nil
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if a.closeLog != nil {
			return a.closeLog.Close()
		}
		return nil
	}

	root.AddCommand(newServeCmd(a), newModelsCmd(a), newGenerateCmd(a))
	return root
}

// loadConfig layers the config file, the dotenv file and DIFFUSIOND_*
// variables, in that order. A missing dotenv file is an error only when it
// was named explicitly.
func loadConfig(cfgPath, envFile string, envExplicit bool, lookup func(string) (string, bool)) (config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && (envExplicit || !errors.Is(err, fs.ErrNotExist)) {
			return config.Config{}, err
		}
	}
	var cfg config.Config
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlags overrides cfg with every flag the user set explicitly.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	strs := map[string]*string{
		"models-dir":       &cfg.ModelsDir,
		"conditioning-dir": &cfg.ConditioningDir,
		"worker-url":       &cfg.WorkerURL,
		"compute-units":    &cfg.ComputeUnits,
		"log-level":        &cfg.LogLevel,
		"addr":             &cfg.Addr,
		"autosave-dir":     &cfg.AutosaveDir,
		"autosave-format":  &cfg.AutosaveFormat,
		"gallery":          &cfg.GalleryPath,
	}
	bools := map[string]*bool{
		"log-console":       &cfg.LogConsole,
		"reduce-memory":     &cfg.ReduceMemory,
		"no-gallery":        &cfg.NoGallery,
		"link-conditioning": &cfg.LinkConditioning,
		"no-previews":       &cfg.NoPreviews,
	}
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		if dst, ok := strs[f.Name]; ok {
			*dst = f.Value.String()
			return
		}
		if dst, ok := bools[f.Name]; ok {
			*dst, err = flags.GetBool(f.Name)
			return
		}
		switch f.Name {
		case "cors-origins":
			cfg.CORSOrigins = config.SplitCSV(f.Value.String())
		case "max-wait-sec":
			cfg.MaxWaitSec, err = flags.GetInt(f.Name)
		case "upscale-factor":
			cfg.UpscaleFactor, err = flags.GetInt(f.Name)
		}
	})
	return err
}
