package main

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/cronos/pkg/app"
)

// program adapts the daemon loop to the service manager's lifecycle.
type program struct {
	params app.RunParams
	errCh  chan error
}

func (p *program) Start(_ service.Service) error {
	go func() { p.errCh <- app.Run(p.params) }()
	return nil
}

func (p *program) Stop(_ service.Service) error { return nil }

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run cronos under the system service manager",
	}

	var cfgPath string
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")

	newService := func() (service.Service, *program, error) {
		args := []string{"service", "run"}
		if cfgPath != "" {
			args = append(args, "--config", cfgPath)
		}
		prg := &program{
			params: app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
			},
			errCh: make(chan error, 1),
		}
		svc, err := service.New(prg, &service.Config{
			Name:        "cronos",
			DisplayName: "Cronos",
			Description: "Local scheduler for recurring shell and Claude jobs",
			Arguments:   args,
		})
		return svc, prg, err
	}

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Entry point invoked by the service manager",
		Hidden: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, prg, err := newService()
			if err != nil {
				return err
			}
			if err := svc.Run(); err != nil {
				return err
			}
			select {
			case err := <-prg.errCh:
				return err
			default:
				return nil
			}
		},
	})

	controls := []struct{ action, short string }{
		{"install", "Install cronos as a system service"},
		{"uninstall", "Remove the cronos service"},
		{"start", "Start the cronos service"},
		{"stop", "Stop the cronos service"},
		{"restart", "Restart the cronos service"},
	}
	for _, ctl := range controls {
		cmd.AddCommand(&cobra.Command{
			Use:   ctl.action,
			Short: ctl.short,
			RunE: func(c *cobra.Command, _ []string) error {
				svc, _, err := newService()
				if err != nil {
					return err
				}
				if err := service.Control(svc, c.Use); err != nil {
					return err
				}
				fmt.Printf("Service %s: done\n", c.Use)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report the service state",
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			status, err := svc.Status()
			if err != nil {
				return err
			}
			switch status {
			case service.StatusRunning:
				fmt.Println("running")
			case service.StatusStopped:
				fmt.Println("stopped")
			default:
				fmt.Println("unknown")
			}
			return nil
		},
	})

	return cmd
}
