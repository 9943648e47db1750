package main

import (
	"context"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/shimmeringbee/logwrap/impl/nest"
	"github.com/ugokukun/controller/engine"
	"github.com/ugokukun/controller/keigan"
	"github.com/ugokukun/controller/state"
	"github.com/ugokukun/controller/task"
	"log"
	"os"
	"os/signal"
	"path/filepath"
)

func main() {
	ctx := context.Background()
	l := logwrap.New(golog.Wrap(log.New(os.Stderr, "", log.LstdFlags)))

	l.LogInfo(ctx, "Ugoku-kun: Controller - Starting...")

	options := enumerateOptions(ctx, l)
	directories := options.Directories

	l.LogInfo(ctx, "Directory enumeration complete.", logwrap.Datum("directories", directories))

	l, err := configureLogging(filepath.Join(directories.Config, "logging"), directories.Log, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to configure logging.", logwrap.Err(err))
	}

	deviceCfg, err := loadDeviceConfiguration(directories.Config)
	if err != nil {
		l.LogFatal(ctx, "Failed to load device configuration.", logwrap.Err(err))
	}

	interfaceCfgs, err := loadInterfaceConfigurations(filepath.Join(directories.Config, "interfaces"))
	if err != nil {
		l.LogFatal(ctx, "Failed to load interface configurations.", logwrap.Err(err))
	}

	l.LogInfo(ctx, "Connecting to devices.", logwrap.Datum("cameras", len(deviceCfg.Cameras)), logwrap.Datum("motors", len(deviceCfg.Motors)))

	cameras, motors, err := startDevices(ctx, deviceCfg, directories.Data, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to connect to devices.", logwrap.Err(err))
	}

	eventbus := state.NewEventBus()

	engineCameras := map[string]engine.Camera{}
	for id, session := range cameras {
		engineCameras[id] = session
	}

	engineMotors := map[string]engine.Motor{}
	for id, session := range motors {
		engineMotors[id] = session
	}

	el := logwrap.New(nest.Wrap(l))
	el.AddOptionsToLogger(logwrap.Source("engine"))
	e := engine.New(engineCameras, engineMotors, eventbus, el)

	table, err := task.LoadFile(options.TaskTable)
	if err != nil {
		if options.RunOnStart != "" {
			l.LogFatal(ctx, "Failed to load task table.", logwrap.Err(err))
		}

		l.LogWarn(ctx, "No valid task table loaded, one must be uploaded before a run can start.", logwrap.Err(err))
	} else {
		l.LogInfo(ctx, "Loaded task table.", logwrap.Datum("path", options.TaskTable), logwrap.Datum("rows", table.Len()))
	}

	tables := state.NewTableStore(table)

	if options.RunOnStart != "" {
		runOnStart(ctx, options.RunOnStart, e, table, l)
		shutdownMotors(ctx, motors, l)
		return
	}

	l.LogInfo(ctx, "Starting interfaces.")

	devices := Devices{Cameras: cameras, Motors: motors}
	startedInterfaces, err := startInterfaces(interfaceCfgs, devices, e, tables, eventbus, directories, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to start interfaces.", logwrap.Err(err))
	}

	l.LogInfo(ctx, "Controller ready.")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, os.Kill)

	s := <-signalCh
	l.LogInfo(ctx, "Signal received, shutting down.", logwrap.Datum("signal", s.String()))

	for _, intf := range startedInterfaces {
		l.LogInfo(ctx, "Shutting down interface.", logwrap.Datum("interface", intf.Name))

		if err := intf.Shutdown(); err != nil {
			l.LogError(ctx, "Failed to shutdown interface.", logwrap.Err(err), logwrap.Datum("interface", intf.Name))
		}
	}

	shutdownMotors(ctx, motors, l)

	l.LogInfo(ctx, "Shut down complete.")
}

func runOnStart(ctx context.Context, mode string, e *engine.Engine, table *task.Table, l logwrap.Logger) {
	var err error

	if mode == "dry" {
		err = e.DryRun(ctx, table)
	} else {
		err = e.Run(ctx, table)
	}

	if err != nil {
		l.LogFatal(ctx, "Run failed.", logwrap.Err(err))
	}

	l.LogInfo(ctx, "Run complete.")
}

func shutdownMotors(ctx context.Context, motors map[string]*keigan.Session, l logwrap.Logger) {
	for id, session := range motors {
		l.LogInfo(ctx, "Shutting down motor.", logwrap.Datum("motor", id))

		if err := session.Close(); err != nil {
			l.LogError(ctx, "Failed to close motor connection.", logwrap.Err(err), logwrap.Datum("motor", id))
		}
	}
}
