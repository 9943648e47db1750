package main

import (
	"context"
	"flag"
	"github.com/peterbourgon/ff/v3"
	"github.com/shimmeringbee/logwrap"
	"os"
	"path/filepath"
)

const DefaultDirectoryPermissions = 0700

type Directories struct {
	Config string
	Data   string
	Log    string
}

// StartupOptions is everything the command line and environment decide: the
// working directories, where the task table lives and whether a run should
// start immediately instead of waiting for the interfaces.
type StartupOptions struct {
	Directories Directories

	TaskTable  string
	RunOnStart string
}

func enumerateOptions(ctx context.Context, l logwrap.Logger) StartupOptions {
	fs := flag.NewFlagSet("controller", flag.ExitOnError)

	defaultConfigDirectory, err := defaultDirectory("config")
	if err != nil {
		l.LogFatal(ctx, "Failed to construct default configuration directory.", logwrap.Err(err))
	}

	defaultDataDirectory, err := defaultDirectory("data")
	if err != nil {
		l.LogFatal(ctx, "Failed to construct default data directory.", logwrap.Err(err))
	}

	defaultLogDirectory, err := defaultDirectory("log")
	if err != nil {
		l.LogFatal(ctx, "Failed to construct default log directory.", logwrap.Err(err))
	}

	configDirectory := fs.String("config-directory", defaultConfigDirectory, "location of configuration files")
	dataDirectory := fs.String("data-directory", defaultDataDirectory, "location of data files")
	logDirectory := fs.String("log-directory", defaultLogDirectory, "location of log files")

	taskTable := fs.String("task-table", "", "location of the task table csv, defaults to tasks.csv in the configuration directory")
	runOnStart := fs.String("run-on-start", "", "run the task table immediately and exit: 'dry' or 'timed'")

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarNoPrefix()); err != nil {
		l.LogFatal(ctx, "Failed to parse environment/command line arguments.", logwrap.Err(err))
	}

	if err := os.MkdirAll(*configDirectory, DefaultDirectoryPermissions); err != nil {
		l.LogFatal(ctx, "Failed to initialise configuration directory.", logwrap.Err(err))
	}

	if err := os.MkdirAll(*dataDirectory, DefaultDirectoryPermissions); err != nil {
		l.LogFatal(ctx, "Failed to initialise data directory.", logwrap.Err(err))
	}

	if err := os.MkdirAll(*logDirectory, DefaultDirectoryPermissions); err != nil {
		l.LogFatal(ctx, "Failed to initialise log directory.", logwrap.Err(err))
	}

	if *taskTable == "" {
		*taskTable = filepath.Join(*configDirectory, "tasks.csv")
	}

	if *runOnStart != "" && *runOnStart != "dry" && *runOnStart != "timed" {
		l.LogFatal(ctx, "run-on-start must be 'dry' or 'timed'.", logwrap.Datum("runOnStart", *runOnStart))
	}

	return StartupOptions{
		Directories: Directories{
			Config: *configDirectory,
			Data:   *dataDirectory,
			Log:    *logDirectory,
		},
		TaskTable:  *taskTable,
		RunOnStart: *runOnStart,
	}
}

func defaultDirectory(t string) (string, error) {
	if configDir, err := os.UserConfigDir(); err != nil {
		return "", err
	} else {
		return filepath.Join(configDir, "ugokukun", "controller", t), nil
	}
}
