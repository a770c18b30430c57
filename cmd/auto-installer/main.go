// auto-installer reads an answer document on stdin, validates it against
// the detected hardware and drives the low-level installer through a full
// unattended installation.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"autoinst/internal/answer"
	"autoinst/internal/config"
	"autoinst/internal/firstboot"
	"autoinst/internal/logging"
	"autoinst/internal/logwatcher"
	"autoinst/internal/lowlevel"
	"autoinst/internal/pidfile"
	"autoinst/internal/setup"
	"autoinst/internal/sysinfo"
)

func readAnswer(r io.Reader) (*answer.Answer, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading answer from stdin: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("no answer document on stdin")
	}
	ans, err := answer.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("error parsing answer file: %w", err)
	}
	return ans, nil
}

func install(cfg *config.Config, ans *answer.Answer) error {
	if err := pidfile.Acquire(cfg.PidfilePath()); err != nil {
		return err
	}
	defer pidfile.Release(cfg.PidfilePath())

	env, err := setup.LoadAll(cfg)
	if err != nil {
		return err
	}
	logrus.Infof("found %d disks and %d network interfaces",
		len(env.Runtime.Disks), len(env.Runtime.Network.Interfaces))

	installcfg, err := setup.Project(ans, env)
	if err != nil {
		return err
	}

	if _, err := firstboot.Prepare(cfg, ans.FirstBoot); err != nil {
		return err
	}

	watcher, err := logwatcher.Watch(cfg.LowLevelLogPath())
	if err != nil {
		logrus.Warnf("cannot follow the low-level installer log: %v", err)
	} else {
		defer watcher.Stop()
	}

	session, err := lowlevel.Start(cfg)
	if err != nil {
		return err
	}

	logrus.Infof("starting installation of %s %s",
		env.Setup.Config.FullName, env.Setup.IsoInfo.Release)
	err = session.Run(installcfg, lowlevel.Callbacks{
		OnMessage: func(msg string) {
			logrus.Info(msg)
		},
		OnError: func(msg string) {
			logrus.Errorf("low-level installer: %s", msg)
		},
		OnProgress: func(ratio float64, text string) {
			if text == "" {
				logrus.Infof("progress: %3.0f%%", ratio*100)
			} else {
				logrus.Infof("progress: %3.0f%% - %s", ratio*100, text)
			}
		},
	})
	if err != nil {
		return err
	}
	logrus.Info("installation finished")

	sysinfo.Notify(ans.PostHook, sysinfo.InstallReport(env, installcfg))
	return nil
}

func main() {
	if err := logging.Init(config.LogPath("auto-installer")); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}

	ans, err := readAnswer(os.Stdin)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}

	cfg, err := config.New()
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}

	if err := install(cfg, ans); err != nil {
		logrus.Error(err)
		if ans.Global.RebootOnError {
			// Distinct status tells the init wrapper to reboot.
			os.Exit(2)
		}
		os.Exit(1)
	}
}
