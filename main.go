package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	godaemon "github.com/sevlyar/go-daemon"
	log "github.com/sirupsen/logrus"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/ohamelijnck/watchpdf/internal/app"
	"github.com/ohamelijnck/watchpdf/internal/config"
	"github.com/ohamelijnck/watchpdf/internal/daemon"
	"github.com/ohamelijnck/watchpdf/internal/journal"
	"github.com/ohamelijnck/watchpdf/internal/utils"
	"github.com/ohamelijnck/watchpdf/pkg/naming"
)

// Set at build time: go build -ldflags "-X main.version=1.2.3"
var version = "dev"

// globals holds the root flags once parsed.
type globals struct {
	configPath string
	dryRun     bool
	notify     *bool
}

func main() {
	configPath, err := config.DefaultPath()
	if err != nil {
		configPath = config.DefaultConfigFilename
	}

	if err := newApp(configPath).Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree. configPath is the default config location.
func newApp(configPath string) *cli.Command {
	g := &globals{configPath: configPath}

	return &cli.Command{
		Name:    "watchpdf",
		Usage:   "Rename PDFs in watched folders from their bibliographic metadata",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("WATCHPDF_CONFIG"),
				Value:       configPath,
				Destination: &g.configPath,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "logging level: debug, info, warn, error",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("WATCHPDF_LOG_LEVEL"),
					yaml.YAML("log_level", altsrc.NewStringPtrSourcer(&g.configPath)),
				),
				Value: "info",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "debug logging",
			},
			&cli.BoolFlag{
				Name:    "dry",
				Usage:   "log renames without touching any file",
				Sources: cli.EnvVars("WATCHPDF_DRY"),
			},
			&cli.BoolFlag{
				Name:  "notify",
				Usage: "send desktop notifications",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("WATCHPDF_NOTIFY"),
					yaml.YAML("notifications", altsrc.NewStringPtrSourcer(&g.configPath)),
				),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			setLogLevel(cmd.String("log-level"), cmd.Bool("verbose"))

			g.configPath = utils.ExpandTilde(g.configPath)
			g.dryRun = cmd.Bool("dry")
			if cmd.IsSet("notify") {
				notify := cmd.Bool("notify")
				g.notify = &notify
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			watchCommand(g),
			addCommand(g),
			removeCommand(g),
			clearCommand(g),
			scanCommand(g),
			listCommand(g),
			historyCommand(g),
			setFormatCommand(g),
		},
	}
}

func setLogLevel(level string, verbose bool) {
	if verbose {
		log.SetLevel(log.DebugLevel)
		return
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func (g *globals) overrides() app.Overrides {
	return app.Overrides{DryRun: g.dryRun, Notifications: g.notify}
}

func watchCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "watch the configured folders and rename new PDFs",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "daemonize",
				Usage:   "run as daemon",
				Sources: cli.EnvVars("WATCHPDF_DAEMONIZE"),
			},
			&cli.BoolFlag{
				Name:  "scan-first",
				Usage: "rename existing PDFs before watching",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if len(cfg.WatchFolderList) == 0 {
				fmt.Println("Nothing to watch!")
				return nil
			}

			if cmd.Bool("daemonize") {
				stateDir := filepath.Dir(g.configPath)
				if err := os.MkdirAll(stateDir, 0o755); err != nil {
					return fmt.Errorf("creating %s: %w", stateDir, err)
				}
				daemonCtx := &godaemon.Context{
					PidFileName: filepath.Join(stateDir, "watchpdf.pid"),
					PidFilePerm: 0644,
					LogFileName: filepath.Join(stateDir, "watchpdf.log"),
					LogFilePerm: 0640,
					WorkDir:     stateDir,
					Umask:       027,
				}

				d, err := daemonCtx.Reborn()
				if err != nil {
					return fmt.Errorf("unable to daemonize: %w", err)
				}
				if d != nil {
					fmt.Printf("Daemon started with pid %d\n", d.Pid)
					return nil // Parent process exits
				}
				defer daemonCtx.Release()
				log.Info("Daemon started")
			} else {
				log.Info("Running in foreground (not daemonized)")
			}

			p, err := app.Build(cfg, g.configPath, g.overrides())
			if err != nil {
				return err
			}

			if cmd.Bool("scan-first") {
				log.Info("Starting initial scan...")
				sum, err := app.ScanAll(ctx, p.Service, cfg.WatchFolderList, cfg.Recursive)
				if err != nil {
					log.Warnf("Initial scan incomplete: %v", err)
				}
				log.Infof("Initial scan complete: %d renamed, %d unchanged, %d unresolved", sum.Renamed, sum.Unchanged, sum.Unresolved)
			}

			err = daemon.RunDaemon(ctx, cfg.WatchFolderList, daemon.Options{Recursive: cfg.Recursive}, p.Service.HandleCreate)
			if errors.Is(err, daemon.ErrNothingToWatch) {
				fmt.Println("Nothing to watch!")
				return nil
			}
			return err
		},
	}
}

func addCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "add a folder to the watch list",
		ArgsUsage: "<folder>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			folder, err := folderArg(cmd)
			if err != nil {
				return err
			}

			var added bool
			_, err = config.Update(g.configPath, func(c *config.Config) error {
				added = c.AddFolder(folder)
				return nil
			})
			if err != nil {
				return err
			}

			if !added {
				fmt.Printf("%s is already watched\n", folder)
				return nil
			}
			if info, err := os.Stat(folder); err != nil || !info.IsDir() {
				log.Warnf("%s does not exist yet", folder)
			}
			fmt.Printf("Added %s\n", folder)
			return nil
		},
	}
}

func removeCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "remove a folder from the watch list",
		ArgsUsage: "<folder>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			folder, err := folderArg(cmd)
			if err != nil {
				return err
			}

			var removed bool
			_, err = config.Update(g.configPath, func(c *config.Config) error {
				removed = c.RemoveFolder(folder)
				return nil
			})
			if err != nil {
				return err
			}

			if removed {
				fmt.Printf("Removed %s\n", folder)
			} else {
				fmt.Printf("%s is not watched\n", folder)
			}
			return nil
		},
	}
}

func clearCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "clear_watch_folders",
		Usage: "empty the watch list",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, err := config.Update(g.configPath, func(c *config.Config) error {
				c.ClearFolders()
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Println("Watch list cleared")
			return nil
		},
	}
}

func scanCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "rename the PDFs already present in the watched folders",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "folder_path",
				Usage: "scan this folder instead of the watch list",
			},
			&cli.BoolFlag{
				Name:  "recursive",
				Usage: "descend into sub folders",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			folders := cfg.WatchFolderList
			if cmd.IsSet("folder_path") {
				folder, err := utils.NormalizePath(cmd.String("folder_path"))
				if err != nil {
					return err
				}
				folders = []string{folder}
			}
			out := cmd.Root().Writer
			if len(folders) == 0 {
				fmt.Fprintln(out, "Nothing to watch!")
				return nil
			}

			p, err := app.Build(cfg, g.configPath, g.overrides())
			if err != nil {
				return err
			}

			sum, err := app.ScanAll(ctx, p.Service, folders, cmd.Bool("recursive"))
			verb := "renamed"
			if g.dryRun {
				verb = "would rename"
			}
			fmt.Fprintf(out, "%d PDFs: %d %s, %d unchanged, %d unresolved, %d failed\n",
				sum.Total(), sum.Renamed, verb, sum.Unchanged, sum.Unresolved, sum.Failed)
			return err
		},
	}
}

func listCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "show the watch list and settings",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if len(cfg.WatchFolderList) == 0 {
				fmt.Println("No folders are watched")
			} else {
				fmt.Println(app.RenderFolders(cfg))
			}
			fmt.Println(app.RenderSettings(cfg))
			return nil
		},
	}
}

func historyCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "show recent renames",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "number of entries to show, 0 for all",
				Value: 20,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := app.JournalPath(g.configPath)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Println("No renames yet")
				return nil
			}

			j, err := journal.Open(path)
			if err != nil {
				return err
			}
			entries, err := j.Recent(cmd.Int("limit"))
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No renames yet")
				return nil
			}
			fmt.Println(app.RenderHistory(entries))
			return nil
		},
	}
}

func setFormatCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "set_format",
		Usage:     "set the filename template, e.g. \"{year} - {author_etal} - {title}\"",
		ArgsUsage: "<format>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format := cmd.Args().First()
			if _, err := naming.Validate(format); err != nil {
				return fmt.Errorf("%w (allowed tags: %v)", err, naming.AllowedTags)
			}

			_, err := config.Update(g.configPath, func(c *config.Config) error {
				c.Format = format
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Printf("Format set to %s\n", format)
			return nil
		},
	}
}

func folderArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("%s expects exactly one folder", cmd.Name)
	}
	return utils.NormalizePath(cmd.Args().First())
}
