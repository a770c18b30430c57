// fetch-answer retrieves the answer document for an unattended
// installation and prints it to stdout, where the auto-installer picks
// it up. The source is selected by the mode file on the install medium
// or by command line arguments.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"autoinst/internal/config"
	"autoinst/internal/fetch"
	"autoinst/internal/logging"
)

func run() error {
	if err := logging.Init(config.LogPath("fetch-answer")); err != nil {
		return fmt.Errorf("could not initialize logging: %w", err)
	}

	cfg, err := config.New()
	if err != nil {
		return err
	}

	var settings *fetch.Settings
	if len(os.Args) > 1 {
		settings, err = fetch.ParseArgs(os.Args)
	} else {
		settings, err = fetch.LoadSettings(cfg.ModeFilePath())
	}
	if err != nil {
		return err
	}

	answer, err := fetch.FetchAnswer(cfg, settings)
	if err != nil {
		return fmt.Errorf("Aborting: %w", err)
	}
	logrus.Info("queried answer file for automatic installation successfully")

	fmt.Println(answer)
	return nil
}

func main() {
	if err := run(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
